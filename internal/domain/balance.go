package domain

import (
	"github.com/shopspring/decimal"
)

// NativeMint is the pseudo-mint address used for native SOL balances.
const NativeMint = "So11111111111111111111111111111111111111112"

// LamportsPerSol is the number of lamports in one SOL.
const LamportsPerSol = 1_000_000_000

// TokenBalanceRecord holds the cached balance of one token for one wallet.
// Corresponds to the token_balances table in PostgreSQL. Records are never
// deleted; a zero quantity is a valid state, not absence.
type TokenBalanceRecord struct {
	Wallet        string          // wallet address (base58)
	Mint          string          // token mint address
	Quantity      decimal.Decimal // token amount in display units
	PriceUSD      decimal.Decimal // last known unit price in USD
	Symbol        string          // display symbol
	Name          string          // display name
	ImageURL      string          // token image URL
	LastSignature string          // signature of the last applied transaction
	UpdatedAt     int64           // last mutation timestamp (ms)
}

// USDValue returns quantity × price.
func (r *TokenBalanceRecord) USDValue() decimal.Decimal {
	return r.Quantity.Mul(r.PriceUSD)
}

// WalletTotals is the aggregate portfolio value of a wallet. It is a pure
// function of the wallet's TokenBalanceRecord set and is recomputed after
// every balance mutation, never mutated independently.
type WalletTotals struct {
	Wallet    string
	TotalUSD  decimal.Decimal
	TotalSOL  decimal.Decimal
	UpdatedAt int64 // recomputation timestamp (ms)
}

// ComputeTotals derives WalletTotals from the full record set of one wallet.
// solPriceUSD converts the USD total into a SOL equivalent; a zero price
// yields a zero SOL total.
func ComputeTotals(wallet string, records []*TokenBalanceRecord, solPriceUSD decimal.Decimal, nowMs int64) *WalletTotals {
	totalUSD := decimal.Zero
	for _, r := range records {
		totalUSD = totalUSD.Add(r.USDValue())
	}

	totalSOL := decimal.Zero
	if solPriceUSD.IsPositive() {
		totalSOL = totalUSD.Div(solPriceUSD)
	}

	return &WalletTotals{
		Wallet:    wallet,
		TotalUSD:  totalUSD,
		TotalSOL:  totalSOL,
		UpdatedAt: nowMs,
	}
}

// BalanceHistoryPoint is one append-only sample of a wallet's totals,
// recorded after each recomputation. Corresponds to the balance_history
// table in ClickHouse.
type BalanceHistoryPoint struct {
	Wallet      string
	TimestampMs int64
	TotalUSD    decimal.Decimal
	TotalSOL    decimal.Decimal
	TokenCount  int
}
