package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/storage"
)

// TotalsStore implements storage.TotalsStore using PostgreSQL.
type TotalsStore struct {
	pool *Pool
}

// NewTotalsStore creates a new TotalsStore.
func NewTotalsStore(pool *Pool) *TotalsStore {
	return &TotalsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TotalsStore = (*TotalsStore)(nil)

// Upsert inserts or replaces the totals keyed by wallet.
func (s *TotalsStore) Upsert(ctx context.Context, t *domain.WalletTotals) error {
	if t == nil || t.Wallet == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO wallet_totals (wallet, total_usd, total_sol, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (wallet) DO UPDATE SET
			total_usd = EXCLUDED.total_usd,
			total_sol = EXCLUDED.total_sol,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		t.Wallet,
		t.TotalUSD.String(),
		t.TotalSOL.String(),
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert wallet totals: %w", err)
	}
	return nil
}

// Get retrieves the totals for a wallet. Returns ErrNotFound if not exists.
func (s *TotalsStore) Get(ctx context.Context, wallet string) (*domain.WalletTotals, error) {
	query := `
		SELECT wallet, total_usd::text, total_sol::text, updated_at
		FROM wallet_totals
		WHERE wallet = $1
	`

	var (
		t        domain.WalletTotals
		totalUSD string
		totalSOL string
	)

	err := s.pool.QueryRow(ctx, query, wallet).Scan(&t.Wallet, &totalUSD, &totalSOL, &t.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet totals: %w", err)
	}

	if t.TotalUSD, err = decimal.NewFromString(totalUSD); err != nil {
		return nil, fmt.Errorf("parse total usd %q: %w", totalUSD, err)
	}
	if t.TotalSOL, err = decimal.NewFromString(totalSOL); err != nil {
		return nil, fmt.Errorf("parse total sol %q: %w", totalSOL, err)
	}
	return &t, nil
}
