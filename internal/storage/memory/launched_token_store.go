package memory

import (
	"context"
	"sync"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/storage"
)

// LaunchedTokenStore is an in-memory implementation of storage.LaunchedTokenStore.
type LaunchedTokenStore struct {
	mu     sync.RWMutex
	byMint map[string]*domain.LaunchedToken
}

// NewLaunchedTokenStore creates a new in-memory launched-token store.
func NewLaunchedTokenStore() *LaunchedTokenStore {
	return &LaunchedTokenStore{
		byMint: make(map[string]*domain.LaunchedToken),
	}
}

var _ storage.LaunchedTokenStore = (*LaunchedTokenStore)(nil)

// Insert adds a launched token. Returns ErrDuplicateKey if mint exists.
func (s *LaunchedTokenStore) Insert(_ context.Context, t *domain.LaunchedToken) error {
	if t == nil || t.Mint == "" || t.Wallet == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byMint[t.Mint]; exists {
		return storage.ErrDuplicateKey
	}

	tokCopy := *t
	s.byMint[t.Mint] = &tokCopy
	return nil
}

// GetByMint retrieves a launched token by mint. Returns ErrNotFound if not exists.
func (s *LaunchedTokenStore) GetByMint(_ context.Context, mint string) (*domain.LaunchedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.byMint[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}

	tokCopy := *t
	return &tokCopy, nil
}
