package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeTotals(t *testing.T) {
	records := []*TokenBalanceRecord{
		{Wallet: "w", Mint: NativeMint, Quantity: decimal.NewFromInt(2), PriceUSD: decimal.NewFromInt(150)},
		{Wallet: "w", Mint: "mintA", Quantity: decimal.NewFromInt(100), PriceUSD: decimal.NewFromInt(2)},
		{Wallet: "w", Mint: "mintB", Quantity: decimal.NewFromInt(50), PriceUSD: decimal.Zero},
	}

	totals := ComputeTotals("w", records, decimal.NewFromInt(150), 1000)

	assert.Equal(t, "w", totals.Wallet)
	assert.True(t, totals.TotalUSD.Equal(decimal.NewFromInt(500)), "got %s", totals.TotalUSD)
	// $500 at $150/SOL.
	assert.True(t, totals.TotalSOL.Mul(decimal.NewFromInt(150)).Equal(decimal.NewFromInt(500)))
	assert.Equal(t, int64(1000), totals.UpdatedAt)
}

func TestComputeTotals_ZeroSolPrice(t *testing.T) {
	records := []*TokenBalanceRecord{
		{Wallet: "w", Mint: "mintA", Quantity: decimal.NewFromInt(10), PriceUSD: decimal.NewFromInt(3)},
	}

	totals := ComputeTotals("w", records, decimal.Zero, 0)

	assert.True(t, totals.TotalUSD.Equal(decimal.NewFromInt(30)))
	assert.True(t, totals.TotalSOL.IsZero())
}

func TestComputeTotals_EmptyRecords(t *testing.T) {
	totals := ComputeTotals("w", nil, decimal.NewFromInt(150), 0)
	assert.True(t, totals.TotalUSD.IsZero())
	assert.True(t, totals.TotalSOL.IsZero())
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"))
	assert.NoError(t, ValidateAddress(NativeMint))

	assert.Error(t, ValidateAddress(""))
	assert.Error(t, ValidateAddress("not-base58-0OIl"))
	assert.Error(t, ValidateAddress("abc")) // decodes, wrong length
}

func TestTransactionDirectionValid(t *testing.T) {
	assert.True(t, DirectionCredit.Valid())
	assert.True(t, DirectionDebit.Valid())
	assert.False(t, TransactionDirection("sideways").Valid())
	assert.False(t, TransactionDirection("").Valid())
}
