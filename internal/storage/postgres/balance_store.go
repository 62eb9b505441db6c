package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/storage"
)

// BalanceStore implements storage.BalanceStore using PostgreSQL.
type BalanceStore struct {
	pool *Pool
}

// NewBalanceStore creates a new BalanceStore.
func NewBalanceStore(pool *Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BalanceStore = (*BalanceStore)(nil)

// Upsert inserts or replaces the record keyed by (wallet, mint).
func (s *BalanceStore) Upsert(ctx context.Context, r *domain.TokenBalanceRecord) error {
	if r == nil || r.Wallet == "" || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_balances (
			wallet, mint, quantity, price_usd, symbol, name, image_url, last_signature, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (wallet, mint) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			price_usd = EXCLUDED.price_usd,
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			image_url = EXCLUDED.image_url,
			last_signature = EXCLUDED.last_signature,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		r.Wallet,
		r.Mint,
		r.Quantity.String(),
		r.PriceUSD.String(),
		r.Symbol,
		r.Name,
		r.ImageURL,
		r.LastSignature,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert token balance: %w", err)
	}
	return nil
}

// Get retrieves the record for (wallet, mint). Returns ErrNotFound if not exists.
func (s *BalanceStore) Get(ctx context.Context, wallet, mint string) (*domain.TokenBalanceRecord, error) {
	query := balanceSelect + ` WHERE wallet = $1 AND mint = $2`

	row := s.pool.QueryRow(ctx, query, wallet, mint)
	r, err := scanBalanceRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token balance: %w", err)
	}
	return r, nil
}

// GetByWallet retrieves all records for a wallet, ordered by mint ASC.
func (s *BalanceStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.TokenBalanceRecord, error) {
	query := balanceSelect + ` WHERE wallet = $1 ORDER BY mint ASC`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("query token balances: %w", err)
	}
	defer rows.Close()

	var records []*domain.TokenBalanceRecord
	for rows.Next() {
		r, err := scanBalanceRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token balance: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token balances: %w", err)
	}
	return records, nil
}

// ReplaceWallet atomically replaces every record of a wallet with the given set.
func (s *BalanceStore) ReplaceWallet(ctx context.Context, wallet string, records []*domain.TokenBalanceRecord) error {
	if wallet == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace wallet: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM token_balances WHERE wallet = $1`, wallet); err != nil {
		return fmt.Errorf("clear wallet balances: %w", err)
	}

	query := `
		INSERT INTO token_balances (
			wallet, mint, quantity, price_usd, symbol, name, image_url, last_signature, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, r := range records {
		if r == nil || r.Mint == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			wallet, r.Mint, r.Quantity.String(), r.PriceUSD.String(),
			r.Symbol, r.Name, r.ImageURL, r.LastSignature, r.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert wallet balance %s: %w", r.Mint, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace wallet: %w", err)
	}
	return nil
}

const balanceSelect = `
	SELECT wallet, mint, quantity::text, price_usd::text, symbol, name, image_url, last_signature, updated_at
	FROM token_balances
`

// scanBalanceRecord scans a single row into TokenBalanceRecord.
func scanBalanceRecord(row pgx.Row) (*domain.TokenBalanceRecord, error) {
	var (
		r        domain.TokenBalanceRecord
		quantity string
		priceUSD string
	)

	err := row.Scan(
		&r.Wallet,
		&r.Mint,
		&quantity,
		&priceUSD,
		&r.Symbol,
		&r.Name,
		&r.ImageURL,
		&r.LastSignature,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if r.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("parse quantity %q: %w", quantity, err)
	}
	if r.PriceUSD, err = decimal.NewFromString(priceUSD); err != nil {
		return nil, fmt.Errorf("parse price %q: %w", priceUSD, err)
	}
	return &r, nil
}
