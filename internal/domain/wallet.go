package domain

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// ValidateAddress checks that s is a base58-encoded 32-byte Solana public key.
func ValidateAddress(s string) error {
	if s == "" {
		return fmt.Errorf("empty address")
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("decode address %q: %w", s, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("address %q: expected 32 bytes, got %d", s, len(raw))
	}
	return nil
}
