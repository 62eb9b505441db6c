package domain

import "github.com/shopspring/decimal"

// TransactionDirection is the sign of a balance delta.
type TransactionDirection string

const (
	// DirectionCredit increases the cached quantity.
	DirectionCredit TransactionDirection = "credit"
	// DirectionDebit decreases the cached quantity, clamped at zero.
	DirectionDebit TransactionDirection = "debit"
)

// Valid reports whether the direction is one of the two known values.
func (d TransactionDirection) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// BalanceTransaction is one signed, directional balance delta detected for a
// wallet. A multi-leg transaction (e.g. a swap) is represented as multiple
// BalanceTransactions sharing composite signatures, one per token leg.
type BalanceTransaction struct {
	Signature string               // transaction signature, idempotence key
	Wallet    string               // affected wallet address
	Mint      string               // token mint of this leg
	Direction TransactionDirection // credit or debit
	Amount    decimal.Decimal      // delta in display units, non-negative
	Slot      int64                // slot the transaction landed in, 0 if unknown
}
