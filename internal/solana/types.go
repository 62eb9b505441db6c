package solana

import "github.com/shopspring/decimal"

// TokenProgramID is the SPL token program address.
const TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

// TokenAccountBalance is one token holding from getTokenAccountsByOwner.
type TokenAccountBalance struct {
	Mint     string          // token mint address
	Amount   decimal.Decimal // balance in display units (uiAmountString)
	Decimals int             // mint decimals
}
