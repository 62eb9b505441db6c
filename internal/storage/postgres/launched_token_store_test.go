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

func TestLaunchedTokenStore_InsertAndGetByMint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLaunchedTokenStore(pool)

	tok := &domain.LaunchedToken{
		Mint:       "LaunchedMint1",
		Wallet:     "LauncherWallet1",
		Name:       "Launch Token",
		Symbol:     "LCH",
		ImageURL:   "https://example.com/lch.png",
		Decimals:   6,
		LaunchedAt: 1700000000000,
	}

	err := store.Insert(ctx, tok)
	require.NoError(t, err)

	retrieved, err := store.GetByMint(ctx, "LaunchedMint1")
	require.NoError(t, err)
	assert.Equal(t, tok.Wallet, retrieved.Wallet)
	assert.Equal(t, tok.Symbol, retrieved.Symbol)
	assert.Equal(t, tok.Decimals, retrieved.Decimals)
}

func TestLaunchedTokenStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLaunchedTokenStore(pool)

	tok := &domain.LaunchedToken{Mint: "DupMint", Wallet: "W1"}
	require.NoError(t, store.Insert(ctx, tok))

	err := store.Insert(ctx, tok)
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey))
}

func TestTotalsStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTotalsStore(pool)

	tot := &domain.WalletTotals{
		Wallet:    "TotalsWallet1",
		TotalUSD:  decimal.RequireFromString("300.50"),
		TotalSOL:  decimal.RequireFromString("2.0033"),
		UpdatedAt: 1700000000000,
	}

	require.NoError(t, store.Upsert(ctx, tot))

	tot.TotalUSD = decimal.RequireFromString("450.75")
	require.NoError(t, store.Upsert(ctx, tot))

	retrieved, err := store.Get(ctx, "TotalsWallet1")
	require.NoError(t, err)
	assert.True(t, retrieved.TotalUSD.Equal(decimal.RequireFromString("450.75")))
	assert.True(t, retrieved.TotalSOL.Equal(tot.TotalSOL))

	_, err = store.Get(ctx, "NoTotals")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
