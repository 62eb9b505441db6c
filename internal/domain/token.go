package domain

import "github.com/shopspring/decimal"

// TokenInfo is display metadata plus a unit price for a token mint, produced
// by the pricing resolution chain. A resolver that knows the token but cannot
// price it returns a zero PriceUSD rather than failing.
type TokenInfo struct {
	Mint     string
	Name     string
	Symbol   string
	Decimals int
	ImageURL string
	PriceUSD decimal.Decimal
}

// LaunchedToken records that a local wallet launched a token. Launched tokens
// are the highest-priority source of display metadata during resolution.
// Corresponds to the launched_tokens table in PostgreSQL.
type LaunchedToken struct {
	Mint       string
	Wallet     string // launching wallet address
	Name       string
	Symbol     string
	ImageURL   string
	Decimals   int
	LaunchedAt int64 // launch timestamp (ms)
}
