// Package pricing resolves display metadata and USD prices for token mints
// through an ordered chain of resolver strategies.
package pricing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/observability"
	"solana-wallet-sync/internal/storage"
)

// Resolver resolves a token mint to display metadata and a unit price.
// Returning storage.ErrNotFound means this tier does not know the mint and
// the next tier should be tried.
type Resolver interface {
	// Resolve returns metadata and price for mint.
	Resolve(ctx context.Context, mint string) (*domain.TokenInfo, error)

	// Tier names the resolver for logging and metrics.
	Tier() string
}

// Pricer is a price-only lookup used by tiers that own metadata but not
// prices.
type Pricer interface {
	PriceUSD(ctx context.Context, mint string) (decimal.Decimal, error)
}

// Chain tries resolvers in order. The first tier that knows the mint wins;
// tier failures other than not-found are logged and skipped. Resolution
// itself never fails: a mint no tier knows degrades to minimal metadata with
// a zero price.
type Chain struct {
	resolvers []Resolver
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewChain creates a resolution chain.
func NewChain(logger *slog.Logger, metrics *observability.Metrics, resolvers ...Resolver) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{resolvers: resolvers, logger: logger, metrics: metrics}
}

// Resolve walks the chain. The returned TokenInfo is never nil.
func (c *Chain) Resolve(ctx context.Context, mint string) *domain.TokenInfo {
	for _, r := range c.resolvers {
		info, err := r.Resolve(ctx, mint)
		if err == nil {
			if c.metrics != nil {
				c.metrics.ResolverHits.WithLabelValues(r.Tier()).Inc()
			}
			return info
		}
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		c.logger.Warn("resolver tier failed", "tier", r.Tier(), "mint", mint, "error", err)
	}

	if c.metrics != nil {
		c.metrics.ResolverHits.WithLabelValues("fallback").Inc()
	}
	return &domain.TokenInfo{
		Mint:     mint,
		Symbol:   shortMint(mint),
		PriceUSD: decimal.Zero,
	}
}

// shortMint abbreviates a mint address for display when no metadata exists.
func shortMint(mint string) string {
	if len(mint) <= 8 {
		return mint
	}
	return mint[:4] + ".." + mint[len(mint)-4:]
}
