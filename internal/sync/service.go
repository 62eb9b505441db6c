// Package sync is the top-level balance synchronization service. It owns the
// intent set of watched wallets, wires the connection, correlator, registry
// and router together, and drives snapshot refreshes from inbound
// notifications.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/observability"
	"solana-wallet-sync/internal/reconcile"
	"solana-wallet-sync/internal/storage"
	"solana-wallet-sync/internal/ws"
)

// ErrDisabled is returned when the connection circuit breaker has tripped
// and no automatic reconnection will happen.
var ErrDisabled = errors.New("connection disabled after repeated failures")

// Status is the externally visible health snapshot of the service.
type Status struct {
	Connected          bool `json:"connected"`
	WatchedWalletCount int  `json:"watched_wallet_count"`
	QueuedSendCount    int  `json:"queued_send_count"`
}

// Config holds service tunables.
type Config struct {
	// BatchGap is the pause between requests when resubscribing a batch.
	BatchGap time.Duration
	// RefreshAttempts bounds the retry loop of a change-expecting refresh.
	RefreshAttempts int
	// RefreshInterval is the pause between change-expecting refresh retries.
	RefreshInterval time.Duration
}

// DefaultConfig returns default service configuration.
func DefaultConfig() Config {
	return Config{
		BatchGap:        75 * time.Millisecond,
		RefreshAttempts: 10,
		RefreshInterval: 2 * time.Second,
	}
}

// Service coordinates wallet watching and balance reconciliation. The intent
// set (which wallets should be watched) is owned here and survives
// connection losses; confirmed subscription handles live in the registry and
// do not.
type Service struct {
	cfg        Config
	conn       *ws.Conn
	correlator *ws.Correlator
	registry   *ws.Registry
	engine     *reconcile.Engine
	totals     storage.TotalsStore
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu      sync.Mutex
	watched map[string]struct{}

	router *ws.Router

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the service and wires the websocket component graph. The
// connection is established lazily on the first subscribe.
func New(
	cfg Config,
	wsCfg ws.Config,
	engine *reconcile.Engine,
	totals storage.TotalsStore,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		cfg:     cfg,
		engine:  engine,
		totals:  totals,
		logger:  logger,
		metrics: metrics,
		watched: make(map[string]struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.correlator = ws.NewCorrelator(logger)
	s.conn = ws.NewConn(wsCfg, ws.Handlers{
		OnMessage:  func(raw []byte) { s.router.OnMessage(raw) },
		OnOpen:     s.onOpen,
		OnDown:     s.onDown,
		OnDisabled: s.onDisabled,
	}, logger, metrics)
	s.registry = ws.NewRegistry(s.correlator, s.conn, logger)
	s.router = ws.NewRouter(s.correlator, s.registry, ws.RouterHandlers{
		OnAccountChange: s.onAccountChange,
		OnBroadTrigger:  s.onBroadTrigger,
	}, logger, metrics)

	return s
}

// SubscribeWallet adds a wallet to the watch set, initializes its balances
// from chain and issues the realtime subscription.
func (s *Service) SubscribeWallet(ctx context.Context, address string) error {
	if err := domain.ValidateAddress(address); err != nil {
		return fmt.Errorf("invalid wallet address %q: %w", address, err)
	}

	if state, _ := s.conn.Status(); state == ws.StateDisabled {
		return ErrDisabled
	}

	s.mu.Lock()
	_, already := s.watched[address]
	s.watched[address] = struct{}{}
	watched := len(s.watched)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.WatchedWallets.Set(float64(watched))
	}

	if err := s.engine.InitializeFromChain(ctx, address); err != nil {
		s.logger.Warn("initial snapshot failed, continuing with subscription",
			"wallet", address, "error", err)
	}

	if already && s.registry.IsWatched(address) {
		return nil
	}
	return s.registry.SubscribeWallet(address)
}

// UnsubscribeWallet removes a wallet from the watch set and tears the
// realtime subscription down. Cached balances are kept.
func (s *Service) UnsubscribeWallet(address string) error {
	s.mu.Lock()
	delete(s.watched, address)
	watched := len(s.watched)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.WatchedWallets.Set(float64(watched))
	}

	return s.registry.UnsubscribeWallet(address)
}

// BatchSubscribe adds several wallets to the watch set and subscribes them
// sequentially with the configured gap. Individual snapshot failures are
// logged and do not abort the batch.
func (s *Service) BatchSubscribe(ctx context.Context, addresses []string) error {
	valid := make([]string, 0, len(addresses))
	for _, address := range addresses {
		if err := domain.ValidateAddress(address); err != nil {
			s.logger.Warn("skipping invalid wallet address", "wallet", address, "error", err)
			continue
		}
		valid = append(valid, address)
	}

	s.mu.Lock()
	for _, address := range valid {
		s.watched[address] = struct{}{}
	}
	watched := len(s.watched)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.WatchedWallets.Set(float64(watched))
	}

	for _, address := range valid {
		if err := s.engine.InitializeFromChain(ctx, address); err != nil {
			s.logger.Warn("initial snapshot failed", "wallet", address, "error", err)
		}
	}

	return s.registry.BatchSubscribe(ctx, valid, s.cfg.BatchGap)
}

// ApplyTransaction forwards an incremental balance change to the engine.
func (s *Service) ApplyTransaction(ctx context.Context, tx *domain.BalanceTransaction) error {
	return s.engine.ApplyTransaction(ctx, tx)
}

// ApplyMultiTokenTransaction forwards a multi-leg balance change to the
// engine.
func (s *Service) ApplyMultiTokenTransaction(ctx context.Context, signature, wallet string, slot int64, legs []reconcile.MultiTokenLeg) error {
	return s.engine.ApplyMultiTokenTransaction(ctx, signature, wallet, slot, legs)
}

// RefreshWallet re-snapshots a wallet from chain. With expectChange set the
// refresh retries until the wallet's totals actually differ from the
// pre-refresh value, bounded by RefreshAttempts with RefreshInterval between
// attempts; chain state lags the notification that prompted the refresh.
func (s *Service) RefreshWallet(ctx context.Context, address string, expectChange bool) error {
	if !expectChange {
		return s.engine.InitializeFromChain(ctx, address)
	}

	before, err := s.totals.Get(ctx, address)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("loading totals before refresh: %w", err)
	}

	attempts := s.cfg.RefreshAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if s.metrics != nil {
			s.metrics.RefreshAttempts.Inc()
		}
		if err := s.engine.InitializeFromChain(ctx, address); err != nil {
			if s.metrics != nil {
				s.metrics.RefreshFailures.Inc()
			}
			s.logger.Warn("refresh snapshot failed", "wallet", address, "attempt", attempt, "error", err)
		} else {
			after, err := s.totals.Get(ctx, address)
			if err == nil && totalsChanged(before, after) {
				return nil
			}
		}

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.RefreshInterval):
		}
	}

	// The expected change never materialized; the last snapshot still stands.
	s.logger.Debug("refresh completed without observed change",
		"wallet", address, "attempts", attempts)
	return nil
}

// RefreshAll re-snapshots every watched wallet.
func (s *Service) RefreshAll(ctx context.Context) {
	for _, address := range s.watchedWallets() {
		if err := s.engine.InitializeFromChain(ctx, address); err != nil {
			s.logger.Warn("refresh failed", "wallet", address, "error", err)
		}
	}
}

// Status reports connection health, the watched wallet count and the
// outbound queue depth.
func (s *Service) Status() Status {
	state, queued := s.conn.Status()

	s.mu.Lock()
	watched := len(s.watched)
	s.mu.Unlock()

	return Status{
		Connected:          state == ws.StateOpen,
		WatchedWalletCount: watched,
		QueuedSendCount:    queued,
	}
}

// Close shuts the service down.
func (s *Service) Close() error {
	s.cancel()
	return s.conn.Close()
}

func (s *Service) watchedWallets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallets := make([]string, 0, len(s.watched))
	for address := range s.watched {
		wallets = append(wallets, address)
	}
	return wallets
}

// onOpen re-issues subscriptions for the whole watch set. Every handle from
// the previous session is stale; the registry was invalidated on the way
// down.
func (s *Service) onOpen() {
	wallets := s.watchedWallets()
	if len(wallets) == 0 {
		return
	}

	s.logger.Info("resubscribing watched wallets", "count", len(wallets))
	if err := s.registry.BatchSubscribe(s.ctx, wallets, s.cfg.BatchGap); err != nil {
		s.logger.Warn("resubscription interrupted", "error", err)
	}
}

// onDown invalidates all correlation and subscription state bound to the
// lost session.
func (s *Service) onDown() {
	s.correlator.AbandonAll(errors.New("connection lost"))
	s.registry.Invalidate()
}

func (s *Service) onDisabled() {
	s.logger.Error("automatic reconnection disabled; wallet watching is stalled until restart")
}

// onAccountChange handles an account notification for a watched wallet. The
// notification proves something changed, so the refresh insists on observing
// a difference.
func (s *Service) onAccountChange(change ws.AccountChange) {
	ctx, cancel := context.WithTimeout(s.ctx, time.Duration(s.cfg.RefreshAttempts+1)*s.cfg.RefreshInterval+30*time.Second)
	defer cancel()

	if err := s.RefreshWallet(ctx, change.Wallet, true); err != nil {
		s.logger.Warn("account change refresh failed", "wallet", change.Wallet, "error", err)
	}
}

// onBroadTrigger handles log and signature notifications, which carry no
// wallet attribution.
func (s *Service) onBroadTrigger() {
	ctx, cancel := context.WithTimeout(s.ctx, time.Minute)
	defer cancel()
	s.RefreshAll(ctx)
}

// totalsChanged compares totals by value, ignoring timestamps.
func totalsChanged(before, after *domain.WalletTotals) bool {
	if before == nil {
		return after != nil
	}
	if after == nil {
		return false
	}
	return !before.TotalUSD.Equal(after.TotalUSD) || !before.TotalSOL.Equal(after.TotalSOL)
}
