package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"solana-wallet-sync/internal/domain"
)

// ExternalResolver is the last real tier: it has no metadata of its own and
// asks an external price API for a quote. A mint the API tracks resolves
// with an abbreviated symbol and the quoted price; anything else falls
// through to the chain's zero-price fallback.
type ExternalResolver struct {
	pricer Pricer
}

var _ Resolver = (*ExternalResolver)(nil)

// NewExternalResolver wraps a Pricer as a resolution tier.
func NewExternalResolver(pricer Pricer) *ExternalResolver {
	return &ExternalResolver{pricer: pricer}
}

func (r *ExternalResolver) Tier() string { return "external" }

func (r *ExternalResolver) Resolve(ctx context.Context, mint string) (*domain.TokenInfo, error) {
	price, err := r.pricer.PriceUSD(ctx, mint)
	if err != nil {
		return nil, err
	}
	return &domain.TokenInfo{
		Mint:     mint,
		Symbol:   shortMint(mint),
		PriceUSD: price,
	}, nil
}

// Zero is a Pricer that always quotes zero. Useful where price lookups are
// disabled entirely.
type Zero struct{}

var _ Pricer = Zero{}

func (Zero) PriceUSD(ctx context.Context, mint string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
