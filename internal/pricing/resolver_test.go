package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/storage"
	"solana-wallet-sync/internal/storage/memory"
)

type fakeResolver struct {
	tier string
	info *domain.TokenInfo
	err  error
}

func (f *fakeResolver) Tier() string { return f.tier }

func (f *fakeResolver) Resolve(_ context.Context, _ string) (*domain.TokenInfo, error) {
	return f.info, f.err
}

type fixedPricer struct {
	price decimal.Decimal
	err   error
}

func (f fixedPricer) PriceUSD(_ context.Context, _ string) (decimal.Decimal, error) {
	return f.price, f.err
}

func TestChain_FirstTierWins(t *testing.T) {
	first := &fakeResolver{tier: "a", info: &domain.TokenInfo{Mint: "m", Symbol: "AAA"}}
	second := &fakeResolver{tier: "b", info: &domain.TokenInfo{Mint: "m", Symbol: "BBB"}}

	chain := NewChain(nil, nil, first, second)
	info := chain.Resolve(context.Background(), "m")

	assert.Equal(t, "AAA", info.Symbol)
}

func TestChain_NotFoundFallsThrough(t *testing.T) {
	first := &fakeResolver{tier: "a", err: storage.ErrNotFound}
	second := &fakeResolver{tier: "b", info: &domain.TokenInfo{Mint: "m", Symbol: "BBB"}}

	chain := NewChain(nil, nil, first, second)
	info := chain.Resolve(context.Background(), "m")

	assert.Equal(t, "BBB", info.Symbol)
}

func TestChain_TierFailureSkipped(t *testing.T) {
	first := &fakeResolver{tier: "a", err: errors.New("upstream down")}
	second := &fakeResolver{tier: "b", info: &domain.TokenInfo{Mint: "m", Symbol: "BBB"}}

	chain := NewChain(nil, nil, first, second)
	info := chain.Resolve(context.Background(), "m")

	assert.Equal(t, "BBB", info.Symbol)
}

func TestChain_ExhaustedDegradesToZeroPrice(t *testing.T) {
	first := &fakeResolver{tier: "a", err: storage.ErrNotFound}

	chain := NewChain(nil, nil, first)
	info := chain.Resolve(context.Background(), "SomeUnknownMintAddressXXXXXXXXXXXXXXXXXXXXXX")

	require.NotNil(t, info)
	assert.True(t, info.PriceUSD.IsZero())
	assert.NotEmpty(t, info.Symbol)
}

func TestLaunchedResolver(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLaunchedTokenStore()
	require.NoError(t, store.Insert(ctx, &domain.LaunchedToken{
		Mint:     "mint1",
		Wallet:   "wallet1",
		Name:     "My Token",
		Symbol:   "MTK",
		Decimals: 6,
	}))

	r := NewLaunchedResolver(store, fixedPricer{price: decimal.NewFromFloat(0.5)}, nil)

	info, err := r.Resolve(ctx, "mint1")
	require.NoError(t, err)
	assert.Equal(t, "MTK", info.Symbol)
	assert.True(t, info.PriceUSD.Equal(decimal.NewFromFloat(0.5)))

	_, err = r.Resolve(ctx, "unknown")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLaunchedResolver_PriceFailureDegradesToZero(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLaunchedTokenStore()
	require.NoError(t, store.Insert(ctx, &domain.LaunchedToken{Mint: "mint1", Wallet: "w", Symbol: "MTK"}))

	r := NewLaunchedResolver(store, fixedPricer{err: errors.New("timeout")}, nil)

	info, err := r.Resolve(ctx, "mint1")
	require.NoError(t, err)
	assert.True(t, info.PriceUSD.IsZero())
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver(fixedPricer{price: decimal.NewFromInt(150)})

	info, err := r.Resolve(context.Background(), domain.NativeMint)
	require.NoError(t, err)
	assert.Equal(t, "SOL", info.Symbol)
	assert.True(t, info.PriceUSD.Equal(decimal.NewFromInt(150)))

	info, err = r.Resolve(context.Background(), usdcMint)
	require.NoError(t, err)
	assert.True(t, info.PriceUSD.Equal(decimal.NewFromInt(1)))

	_, err = r.Resolve(context.Background(), "not-a-known-mint")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHTTPPriceClient(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		mint := r.URL.Query().Get("ids")
		if mint == "tracked" {
			fmt.Fprintf(w, `{"data":{"tracked":{"price":"2.75"}}}`)
			return
		}
		fmt.Fprint(w, `{"data":{}}`)
	}))
	defer server.Close()

	client := NewHTTPPriceClient(server.URL, WithCacheTTL(time.Minute))

	price, err := client.PriceUSD(context.Background(), "tracked")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromFloat(2.75)))

	// Second lookup is served from cache.
	_, err = client.PriceUSD(context.Background(), "tracked")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = client.PriceUSD(context.Background(), "untracked")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
