// Package push fans balance changes out to interested consumers (bot
// frontends, dashboards) over Redis pub/sub. Publishing is advisory:
// failures are logged, never propagated into the balance pipeline.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"solana-wallet-sync/internal/domain"
)

// BalanceEvent is the wire shape of one published balance change.
type BalanceEvent struct {
	Wallet      string `json:"wallet"`
	Mint        string `json:"mint,omitempty"`
	Kind        string `json:"kind"` // "transaction" or "snapshot"
	Signature   string `json:"signature,omitempty"`
	TotalUSD    string `json:"total_usd"`
	TotalSOL    string `json:"total_sol"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// Publisher delivers balance events. Implementations must not block the
// caller on slow consumers.
type Publisher interface {
	BalanceChanged(ctx context.Context, ev BalanceEvent)
}

// RedisPublisher publishes events to a Redis channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
	timeout time.Duration
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher on the given channel.
func NewRedisPublisher(client *redis.Client, channel string, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// BalanceChanged publishes the event, detached from the caller's lifetime.
func (p *RedisPublisher) BalanceChanged(_ context.Context, ev BalanceEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("marshaling balance event", "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
			p.logger.Warn("publishing balance event failed",
				"channel", p.channel, "wallet", ev.Wallet, "error", err)
		}
	}()
}

// NopPublisher discards all events. Used when no Redis is configured.
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

func (NopPublisher) BalanceChanged(context.Context, BalanceEvent) {}

// EventFromTotals builds a BalanceEvent from recomputed totals.
func EventFromTotals(kind, mint, signature string, totals *domain.WalletTotals) BalanceEvent {
	return BalanceEvent{
		Wallet:      totals.Wallet,
		Mint:        mint,
		Kind:        kind,
		Signature:   signature,
		TotalUSD:    totals.TotalUSD.String(),
		TotalSOL:    totals.TotalSOL.String(),
		TimestampMs: totals.UpdatedAt,
	}
}
