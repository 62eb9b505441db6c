package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-wallet-sync/internal/storage"
)

// ProcessedTxStore implements storage.ProcessedTxStore using PostgreSQL.
type ProcessedTxStore struct {
	pool *Pool
}

// NewProcessedTxStore creates a new ProcessedTxStore.
func NewProcessedTxStore(pool *Pool) *ProcessedTxStore {
	return &ProcessedTxStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProcessedTxStore = (*ProcessedTxStore)(nil)

// Insert records a signature. Returns ErrDuplicateKey if already recorded.
func (s *ProcessedTxStore) Insert(ctx context.Context, signature string) error {
	if signature == "" {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO processed_transactions (signature, processed_at) VALUES ($1, $2)`

	_, err := s.pool.Exec(ctx, query, signature, time.Now().UnixMilli())
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert processed signature: %w", err)
	}
	return nil
}

// Exists reports whether a signature has been recorded.
func (s *ProcessedTxStore) Exists(ctx context.Context, signature string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM processed_transactions WHERE signature = $1)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, signature).Scan(&exists); err != nil {
		return false, fmt.Errorf("check processed signature: %w", err)
	}
	return exists, nil
}
