package pricing

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/storage"
)

// LaunchedResolver resolves mints launched through this system. Metadata
// comes from the launched-token store; the price, when a Pricer is
// configured, from an external lookup. A price lookup failure degrades to a
// zero price rather than failing resolution.
type LaunchedResolver struct {
	store  storage.LaunchedTokenStore
	pricer Pricer
	logger *slog.Logger
}

var _ Resolver = (*LaunchedResolver)(nil)

// NewLaunchedResolver creates a resolver over the launched-token store.
// pricer may be nil.
func NewLaunchedResolver(store storage.LaunchedTokenStore, pricer Pricer, logger *slog.Logger) *LaunchedResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LaunchedResolver{store: store, pricer: pricer, logger: logger}
}

func (r *LaunchedResolver) Tier() string { return "launched" }

func (r *LaunchedResolver) Resolve(ctx context.Context, mint string) (*domain.TokenInfo, error) {
	token, err := r.store.GetByMint(ctx, mint)
	if err != nil {
		return nil, err
	}

	price := decimal.Zero
	if r.pricer != nil {
		price, err = r.pricer.PriceUSD(ctx, mint)
		if err != nil {
			r.logger.Debug("price lookup failed for launched token", "mint", mint, "error", err)
			price = decimal.Zero
		}
	}

	return &domain.TokenInfo{
		Mint:     token.Mint,
		Name:     token.Name,
		Symbol:   token.Symbol,
		Decimals: token.Decimals,
		ImageURL: token.ImageURL,
		PriceUSD: price,
	}, nil
}
