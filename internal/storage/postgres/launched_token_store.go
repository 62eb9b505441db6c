package postgres

import (
	"context"
	"fmt"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/storage"
)

// LaunchedTokenStore implements storage.LaunchedTokenStore using PostgreSQL.
type LaunchedTokenStore struct {
	pool *Pool
}

// NewLaunchedTokenStore creates a new LaunchedTokenStore.
func NewLaunchedTokenStore(pool *Pool) *LaunchedTokenStore {
	return &LaunchedTokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LaunchedTokenStore = (*LaunchedTokenStore)(nil)

// Insert adds a launched token. Returns ErrDuplicateKey if mint exists.
func (s *LaunchedTokenStore) Insert(ctx context.Context, t *domain.LaunchedToken) error {
	if t == nil || t.Mint == "" || t.Wallet == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO launched_tokens (mint, wallet, name, symbol, image_url, decimals, launched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		t.Mint, t.Wallet, t.Name, t.Symbol, t.ImageURL, t.Decimals, t.LaunchedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert launched token: %w", err)
	}
	return nil
}

// GetByMint retrieves a launched token by mint. Returns ErrNotFound if not exists.
func (s *LaunchedTokenStore) GetByMint(ctx context.Context, mint string) (*domain.LaunchedToken, error) {
	query := `
		SELECT mint, wallet, name, symbol, image_url, decimals, launched_at
		FROM launched_tokens
		WHERE mint = $1
	`

	var t domain.LaunchedToken
	err := s.pool.QueryRow(ctx, query, mint).Scan(
		&t.Mint, &t.Wallet, &t.Name, &t.Symbol, &t.ImageURL, &t.Decimals, &t.LaunchedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get launched token: %w", err)
	}
	return &t, nil
}
