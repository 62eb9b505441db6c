package storage

import (
	"context"

	"solana-wallet-sync/internal/domain"
)

// BalanceStore provides access to token_balances storage.
type BalanceStore interface {
	// Upsert inserts or replaces the record keyed by (wallet, mint).
	Upsert(ctx context.Context, r *domain.TokenBalanceRecord) error

	// Get retrieves the record for (wallet, mint). Returns ErrNotFound if not exists.
	Get(ctx context.Context, wallet, mint string) (*domain.TokenBalanceRecord, error)

	// GetByWallet retrieves all records for a wallet, ordered by mint ASC.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.TokenBalanceRecord, error)

	// ReplaceWallet atomically replaces every record of a wallet with the given
	// set. Used for full snapshot initialization, never for incremental updates.
	ReplaceWallet(ctx context.Context, wallet string, records []*domain.TokenBalanceRecord) error
}

// TotalsStore provides access to wallet_totals storage.
type TotalsStore interface {
	// Upsert inserts or replaces the totals keyed by wallet.
	Upsert(ctx context.Context, t *domain.WalletTotals) error

	// Get retrieves the totals for a wallet. Returns ErrNotFound if not exists.
	Get(ctx context.Context, wallet string) (*domain.WalletTotals, error)
}

// ProcessedTxStore is the append-only idempotence ledger of applied
// transaction signatures. Entries are never removed.
type ProcessedTxStore interface {
	// Insert records a signature. Returns ErrDuplicateKey if already recorded.
	Insert(ctx context.Context, signature string) error

	// Exists reports whether a signature has been recorded.
	Exists(ctx context.Context, signature string) (bool, error)
}

// LaunchedTokenStore provides access to launched_tokens storage.
type LaunchedTokenStore interface {
	// Insert adds a launched token. Returns ErrDuplicateKey if mint exists.
	Insert(ctx context.Context, t *domain.LaunchedToken) error

	// GetByMint retrieves a launched token by mint. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.LaunchedToken, error)
}

// BalanceHistoryStore provides access to the append-only balance_history
// timeseries.
type BalanceHistoryStore interface {
	// Insert appends one totals sample.
	Insert(ctx context.Context, p *domain.BalanceHistoryPoint) error

	// GetByWallet retrieves points for a wallet within [start, end] (inclusive),
	// ordered by timestamp ASC.
	GetByWallet(ctx context.Context, wallet string, start, end int64) ([]*domain.BalanceHistoryPoint, error)
}
