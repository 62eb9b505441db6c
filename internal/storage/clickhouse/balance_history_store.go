package clickhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/storage"
)

// BalanceHistoryStore implements storage.BalanceHistoryStore using ClickHouse.
// History is strictly append-only; duplicate samples are tolerated and
// collapsed by the MergeTree ordering at query time.
type BalanceHistoryStore struct {
	conn *Conn
}

// NewBalanceHistoryStore creates a new BalanceHistoryStore.
func NewBalanceHistoryStore(conn *Conn) *BalanceHistoryStore {
	return &BalanceHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BalanceHistoryStore = (*BalanceHistoryStore)(nil)

// Insert appends one totals sample.
func (s *BalanceHistoryStore) Insert(ctx context.Context, p *domain.BalanceHistoryPoint) error {
	if p == nil || p.Wallet == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO balance_history (wallet, timestamp_ms, total_usd, total_sol, token_count)
		VALUES (?, ?, ?, ?, ?)
	`

	totalUSD, _ := p.TotalUSD.Float64()
	totalSOL, _ := p.TotalSOL.Float64()

	err := s.conn.Exec(ctx, query,
		p.Wallet, uint64(p.TimestampMs), totalUSD, totalSOL, uint32(p.TokenCount),
	)
	if err != nil {
		return fmt.Errorf("insert balance history: %w", err)
	}
	return nil
}

// GetByWallet retrieves points within [start, end] inclusive, ordered by timestamp ASC.
func (s *BalanceHistoryStore) GetByWallet(ctx context.Context, wallet string, start, end int64) ([]*domain.BalanceHistoryPoint, error) {
	query := `
		SELECT wallet, timestamp_ms, total_usd, total_sol, token_count
		FROM balance_history
		WHERE wallet = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, wallet, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query balance history: %w", err)
	}
	defer rows.Close()

	var points []*domain.BalanceHistoryPoint
	for rows.Next() {
		var (
			p           domain.BalanceHistoryPoint
			timestampMs uint64
			totalUSD    float64
			totalSOL    float64
			tokenCount  uint32
		)
		if err := rows.Scan(&p.Wallet, &timestampMs, &totalUSD, &totalSOL, &tokenCount); err != nil {
			return nil, fmt.Errorf("scan balance history: %w", err)
		}
		p.TimestampMs = int64(timestampMs)
		p.TotalUSD = decimal.NewFromFloat(totalUSD)
		p.TotalSOL = decimal.NewFromFloat(totalSOL)
		p.TokenCount = int(tokenCount)
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance history: %w", err)
	}
	return points, nil
}
