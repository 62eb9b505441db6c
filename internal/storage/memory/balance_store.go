package memory

import (
	"context"
	"sort"
	"sync"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/storage"
)

// BalanceStore is an in-memory implementation of storage.BalanceStore.
type BalanceStore struct {
	mu       sync.RWMutex
	byWallet map[string]map[string]*domain.TokenBalanceRecord // wallet → mint → record
}

// NewBalanceStore creates a new in-memory balance store.
func NewBalanceStore() *BalanceStore {
	return &BalanceStore{
		byWallet: make(map[string]map[string]*domain.TokenBalanceRecord),
	}
}

var _ storage.BalanceStore = (*BalanceStore)(nil)

// Upsert inserts or replaces the record keyed by (wallet, mint).
func (s *BalanceStore) Upsert(_ context.Context, r *domain.TokenBalanceRecord) error {
	if r == nil || r.Wallet == "" || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mints, exists := s.byWallet[r.Wallet]
	if !exists {
		mints = make(map[string]*domain.TokenBalanceRecord)
		s.byWallet[r.Wallet] = mints
	}

	recCopy := *r
	mints[r.Mint] = &recCopy
	return nil
}

// Get retrieves the record for (wallet, mint). Returns ErrNotFound if not exists.
func (s *BalanceStore) Get(_ context.Context, wallet, mint string) (*domain.TokenBalanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.byWallet[wallet][mint]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recCopy := *r
	return &recCopy, nil
}

// GetByWallet retrieves all records for a wallet, ordered by mint ASC.
func (s *BalanceStore) GetByWallet(_ context.Context, wallet string) ([]*domain.TokenBalanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mints := s.byWallet[wallet]
	result := make([]*domain.TokenBalanceRecord, 0, len(mints))
	for _, r := range mints {
		recCopy := *r
		result = append(result, &recCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Mint < result[j].Mint
	})
	return result, nil
}

// ReplaceWallet atomically replaces every record of a wallet with the given set.
func (s *BalanceStore) ReplaceWallet(_ context.Context, wallet string, records []*domain.TokenBalanceRecord) error {
	if wallet == "" {
		return storage.ErrInvalidInput
	}
	for _, r := range records {
		if r == nil || r.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mints := make(map[string]*domain.TokenBalanceRecord, len(records))
	for _, r := range records {
		recCopy := *r
		recCopy.Wallet = wallet
		mints[r.Mint] = &recCopy
	}
	s.byWallet[wallet] = mints
	return nil
}
