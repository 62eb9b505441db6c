package memory

import (
	"context"
	"sort"
	"sync"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/storage"
)

// BalanceHistoryStore is an in-memory implementation of storage.BalanceHistoryStore.
type BalanceHistoryStore struct {
	mu       sync.RWMutex
	byWallet map[string][]*domain.BalanceHistoryPoint
}

// NewBalanceHistoryStore creates a new in-memory balance history store.
func NewBalanceHistoryStore() *BalanceHistoryStore {
	return &BalanceHistoryStore{
		byWallet: make(map[string][]*domain.BalanceHistoryPoint),
	}
}

var _ storage.BalanceHistoryStore = (*BalanceHistoryStore)(nil)

// Insert appends one totals sample.
func (s *BalanceHistoryStore) Insert(_ context.Context, p *domain.BalanceHistoryPoint) error {
	if p == nil || p.Wallet == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ptCopy := *p
	s.byWallet[p.Wallet] = append(s.byWallet[p.Wallet], &ptCopy)
	return nil
}

// GetByWallet retrieves points within [start, end] inclusive, ordered by timestamp ASC.
func (s *BalanceHistoryStore) GetByWallet(_ context.Context, wallet string, start, end int64) ([]*domain.BalanceHistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BalanceHistoryPoint
	for _, p := range s.byWallet[wallet] {
		if p.TimestampMs >= start && p.TimestampMs <= end {
			ptCopy := *p
			result = append(result, &ptCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}
