package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/storage"
)

// HTTPPriceClient fetches USD prices from a Jupiter-style price API
// (GET <base>?ids=<mint> returning {"data":{"<mint>":{"price":"1.23"}}}).
// Prices are cached briefly to keep bursts of resolutions from hammering
// the endpoint.
type HTTPPriceClient struct {
	baseURL    string
	httpClient *http.Client
	cacheTTL   time.Duration

	mu    sync.Mutex
	cache map[string]cachedPrice
}

type cachedPrice struct {
	price   decimal.Decimal
	fetched time.Time
}

var _ Pricer = (*HTTPPriceClient)(nil)

// HTTPPriceOption customizes the client.
type HTTPPriceOption func(*HTTPPriceClient)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(c *http.Client) HTTPPriceOption {
	return func(p *HTTPPriceClient) { p.httpClient = c }
}

// WithCacheTTL sets how long a fetched price stays fresh.
func WithCacheTTL(ttl time.Duration) HTTPPriceOption {
	return func(p *HTTPPriceClient) { p.cacheTTL = ttl }
}

// NewHTTPPriceClient creates a price client for the given API base URL.
func NewHTTPPriceClient(baseURL string, opts ...HTTPPriceOption) *HTTPPriceClient {
	p := &HTTPPriceClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cacheTTL:   30 * time.Second,
		cache:      make(map[string]cachedPrice),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type priceResponse struct {
	Data map[string]struct {
		Price string `json:"price"`
	} `json:"data"`
}

// PriceUSD returns the current USD price for mint, or storage.ErrNotFound
// when the API does not track it.
func (p *HTTPPriceClient) PriceUSD(ctx context.Context, mint string) (decimal.Decimal, error) {
	p.mu.Lock()
	if entry, ok := p.cache[mint]; ok && time.Since(entry.fetched) < p.cacheTTL {
		p.mu.Unlock()
		return entry.price, nil
	}
	p.mu.Unlock()

	reqURL := p.baseURL + "?ids=" + url.QueryEscape(mint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("creating price request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetching price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading price response: %w", err)
	}

	var parsed priceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Zero, fmt.Errorf("parsing price response: %w", err)
	}

	entry, ok := parsed.Data[mint]
	if !ok || entry.Price == "" {
		return decimal.Zero, storage.ErrNotFound
	}

	price, err := decimal.NewFromString(entry.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing price %q: %w", entry.Price, err)
	}

	p.mu.Lock()
	p.cache[mint] = cachedPrice{price: price, fetched: time.Now()}
	p.mu.Unlock()

	return price, nil
}

// SolPriceUSD is a convenience wrapper for the native mint.
func (p *HTTPPriceClient) SolPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	return p.PriceUSD(ctx, domain.NativeMint)
}
