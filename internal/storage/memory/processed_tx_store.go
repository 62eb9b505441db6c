package memory

import (
	"context"
	"sync"

	"solana-wallet-sync/internal/storage"
)

// ProcessedTxStore is an in-memory implementation of storage.ProcessedTxStore.
type ProcessedTxStore struct {
	mu         sync.RWMutex
	signatures map[string]struct{}
}

// NewProcessedTxStore creates a new in-memory processed-signature ledger.
func NewProcessedTxStore() *ProcessedTxStore {
	return &ProcessedTxStore{
		signatures: make(map[string]struct{}),
	}
}

var _ storage.ProcessedTxStore = (*ProcessedTxStore)(nil)

// Insert records a signature. Returns ErrDuplicateKey if already recorded.
func (s *ProcessedTxStore) Insert(_ context.Context, signature string) error {
	if signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.signatures[signature]; exists {
		return storage.ErrDuplicateKey
	}
	s.signatures[signature] = struct{}{}
	return nil
}

// Exists reports whether a signature has been recorded.
func (s *ProcessedTxStore) Exists(_ context.Context, signature string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.signatures[signature]
	return exists, nil
}
