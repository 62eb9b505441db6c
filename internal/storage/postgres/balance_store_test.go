package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/storage"
)

func TestBalanceStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBalanceStore(pool)

	rec := &domain.TokenBalanceRecord{
		Wallet:        "BalanceWallet1",
		Mint:          "BalanceMint1",
		Quantity:      decimal.RequireFromString("2.500000001"),
		PriceUSD:      decimal.RequireFromString("151.25"),
		Symbol:        "SOL",
		Name:          "Solana",
		ImageURL:      "https://example.com/sol.png",
		LastSignature: "sig1",
		UpdatedAt:     1700000000000,
	}

	err := store.Upsert(ctx, rec)
	require.NoError(t, err)

	retrieved, err := store.Get(ctx, "BalanceWallet1", "BalanceMint1")
	require.NoError(t, err)

	assert.True(t, rec.Quantity.Equal(retrieved.Quantity), "quantity round-trip: %s", retrieved.Quantity)
	assert.True(t, rec.PriceUSD.Equal(retrieved.PriceUSD))
	assert.Equal(t, rec.Symbol, retrieved.Symbol)
	assert.Equal(t, rec.LastSignature, retrieved.LastSignature)
	assert.Equal(t, rec.UpdatedAt, retrieved.UpdatedAt)

	// Upsert on the same key replaces.
	rec.Quantity = decimal.RequireFromString("3.5")
	rec.LastSignature = "sig2"
	err = store.Upsert(ctx, rec)
	require.NoError(t, err)

	retrieved, err = store.Get(ctx, "BalanceWallet1", "BalanceMint1")
	require.NoError(t, err)
	assert.True(t, retrieved.Quantity.Equal(decimal.RequireFromString("3.5")))
	assert.Equal(t, "sig2", retrieved.LastSignature)
}

func TestBalanceStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBalanceStore(pool)

	_, err := store.Get(context.Background(), "NoWallet", "NoMint")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestBalanceStore_ReplaceWallet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBalanceStore(pool)

	old := &domain.TokenBalanceRecord{
		Wallet:   "ReplaceWallet1",
		Mint:     "OldMint",
		Quantity: decimal.NewFromInt(9),
		PriceUSD: decimal.Zero,
	}
	require.NoError(t, store.Upsert(ctx, old))

	fresh := []*domain.TokenBalanceRecord{
		{Mint: "MintA", Quantity: decimal.NewFromInt(1), PriceUSD: decimal.NewFromInt(2)},
		{Mint: "MintB", Quantity: decimal.NewFromInt(3), PriceUSD: decimal.NewFromInt(4)},
	}
	require.NoError(t, store.ReplaceWallet(ctx, "ReplaceWallet1", fresh))

	records, err := store.GetByWallet(ctx, "ReplaceWallet1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "MintA", records[0].Mint)
	assert.Equal(t, "MintB", records[1].Mint)

	_, err = store.Get(ctx, "ReplaceWallet1", "OldMint")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
