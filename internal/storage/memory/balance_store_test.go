package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/storage"
)

func TestBalanceStore_UpsertAndGet(t *testing.T) {
	store := NewBalanceStore()
	ctx := context.Background()

	rec := &domain.TokenBalanceRecord{
		Wallet:   "wallet1",
		Mint:     "mint1",
		Quantity: decimal.NewFromFloat(2.5),
		PriceUSD: decimal.NewFromInt(10),
		Symbol:   "TOK",
	}

	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "wallet1", "mint1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !got.Quantity.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("Quantity mismatch: got %s, want 2.5", got.Quantity)
	}
	if got.Symbol != "TOK" {
		t.Errorf("Symbol mismatch: got %s", got.Symbol)
	}
}

func TestBalanceStore_UpsertReplaces(t *testing.T) {
	store := NewBalanceStore()
	ctx := context.Background()

	rec := &domain.TokenBalanceRecord{
		Wallet:   "wallet1",
		Mint:     "mint1",
		Quantity: decimal.NewFromInt(1),
	}
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	rec.Quantity = decimal.NewFromInt(7)
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "wallet1", "mint1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Quantity.Equal(decimal.NewFromInt(7)) {
		t.Errorf("Quantity mismatch: got %s, want 7", got.Quantity)
	}
}

func TestBalanceStore_GetNotFound(t *testing.T) {
	store := NewBalanceStore()

	_, err := store.Get(context.Background(), "wallet1", "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestBalanceStore_GetByWalletOrdered(t *testing.T) {
	store := NewBalanceStore()
	ctx := context.Background()

	for _, mint := range []string{"c", "a", "b"} {
		rec := &domain.TokenBalanceRecord{
			Wallet:   "wallet1",
			Mint:     mint,
			Quantity: decimal.NewFromInt(1),
		}
		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	records, err := store.GetByWallet(ctx, "wallet1")
	if err != nil {
		t.Fatalf("GetByWallet failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"a", "b", "c"} {
		if records[i].Mint != want {
			t.Errorf("Record %d: got mint %s, want %s", i, records[i].Mint, want)
		}
	}
}

func TestBalanceStore_ReplaceWallet(t *testing.T) {
	store := NewBalanceStore()
	ctx := context.Background()

	old := &domain.TokenBalanceRecord{Wallet: "wallet1", Mint: "old", Quantity: decimal.NewFromInt(5)}
	if err := store.Upsert(ctx, old); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	fresh := []*domain.TokenBalanceRecord{
		{Mint: "new1", Quantity: decimal.NewFromInt(1)},
		{Mint: "new2", Quantity: decimal.NewFromInt(2)},
	}
	if err := store.ReplaceWallet(ctx, "wallet1", fresh); err != nil {
		t.Fatalf("ReplaceWallet failed: %v", err)
	}

	records, err := store.GetByWallet(ctx, "wallet1")
	if err != nil {
		t.Fatalf("GetByWallet failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records after replace, got %d", len(records))
	}
	if _, err := store.Get(ctx, "wallet1", "old"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected old record gone, got %v", err)
	}
	if records[0].Wallet != "wallet1" {
		t.Errorf("ReplaceWallet should stamp wallet, got %q", records[0].Wallet)
	}
}

func TestBalanceStore_InvalidInput(t *testing.T) {
	store := NewBalanceStore()

	err := store.Upsert(context.Background(), &domain.TokenBalanceRecord{Wallet: "", Mint: "m"})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
