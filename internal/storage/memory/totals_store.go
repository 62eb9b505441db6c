package memory

import (
	"context"
	"sync"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/storage"
)

// TotalsStore is an in-memory implementation of storage.TotalsStore.
type TotalsStore struct {
	mu       sync.RWMutex
	byWallet map[string]*domain.WalletTotals
}

// NewTotalsStore creates a new in-memory totals store.
func NewTotalsStore() *TotalsStore {
	return &TotalsStore{
		byWallet: make(map[string]*domain.WalletTotals),
	}
}

var _ storage.TotalsStore = (*TotalsStore)(nil)

// Upsert inserts or replaces the totals keyed by wallet.
func (s *TotalsStore) Upsert(_ context.Context, t *domain.WalletTotals) error {
	if t == nil || t.Wallet == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	totCopy := *t
	s.byWallet[t.Wallet] = &totCopy
	return nil
}

// Get retrieves the totals for a wallet. Returns ErrNotFound if not exists.
func (s *TotalsStore) Get(_ context.Context, wallet string) (*domain.WalletTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.byWallet[wallet]
	if !exists {
		return nil, storage.ErrNotFound
	}

	totCopy := *t
	return &totCopy, nil
}
