package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/storage"
)

// Well-known mints.
const (
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	usdtMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// StaticResolver serves a fixed registry of well-known tokens. Stablecoins
// are pegged at one dollar; SOL takes its price from a Pricer when
// configured and zero otherwise.
type StaticResolver struct {
	pricer Pricer
	known  map[string]domain.TokenInfo
}

var _ Resolver = (*StaticResolver)(nil)

// NewStaticResolver creates the static registry. pricer may be nil.
func NewStaticResolver(pricer Pricer) *StaticResolver {
	one := decimal.NewFromInt(1)
	return &StaticResolver{
		pricer: pricer,
		known: map[string]domain.TokenInfo{
			domain.NativeMint: {
				Mint:     domain.NativeMint,
				Name:     "Solana",
				Symbol:   "SOL",
				Decimals: 9,
			},
			usdcMint: {
				Mint:     usdcMint,
				Name:     "USD Coin",
				Symbol:   "USDC",
				Decimals: 6,
				PriceUSD: one,
			},
			usdtMint: {
				Mint:     usdtMint,
				Name:     "Tether USD",
				Symbol:   "USDT",
				Decimals: 6,
				PriceUSD: one,
			},
		},
	}
}

func (r *StaticResolver) Tier() string { return "static" }

func (r *StaticResolver) Resolve(ctx context.Context, mint string) (*domain.TokenInfo, error) {
	info, ok := r.known[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if mint == domain.NativeMint && r.pricer != nil {
		price, err := r.pricer.PriceUSD(ctx, mint)
		if err == nil {
			info.PriceUSD = price
		}
	}
	return &info, nil
}
