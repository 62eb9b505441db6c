// Package reconcile keeps the cached balance view consistent with the chain.
// It supports two mutation paths: wholesale snapshot initialization from RPC
// and incremental single-transaction application, both funneling into the
// same totals recomputation.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"solana-wallet-sync/internal/domain"
	"solana-wallet-sync/internal/observability"
	"solana-wallet-sync/internal/pricing"
	"solana-wallet-sync/internal/push"
	"solana-wallet-sync/internal/solana"
	"solana-wallet-sync/internal/storage"
)

// SolPricer quotes the current SOL price for totals conversion.
type SolPricer interface {
	SolPriceUSD(ctx context.Context) (decimal.Decimal, error)
}

// Engine applies balance changes to storage. Mutations are serialized per
// wallet, so concurrent applies and snapshots for the same wallet never lose
// a delta; different wallets proceed independently.
type Engine struct {
	balances  storage.BalanceStore
	totals    storage.TotalsStore
	processed storage.ProcessedTxStore
	history   storage.BalanceHistoryStore
	rpc       solana.RPCClient
	resolver  *pricing.Chain
	solPricer SolPricer
	publisher push.Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics

	now func() time.Time

	mu          sync.Mutex
	walletLocks map[string]*sync.Mutex
}

// Option customizes an Engine.
type Option func(*Engine)

// WithHistory enables append-only totals history recording. history may be
// nil to disable.
func WithHistory(history storage.BalanceHistoryStore) Option {
	return func(e *Engine) { e.history = history }
}

// WithPublisher enables push notifications on balance changes.
func WithPublisher(p push.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithMetrics attaches metric counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a reconciliation engine. solPricer may be nil, in which
// case SOL totals convert at the native record's cached price.
func NewEngine(
	balances storage.BalanceStore,
	totals storage.TotalsStore,
	processed storage.ProcessedTxStore,
	rpc solana.RPCClient,
	resolver *pricing.Chain,
	solPricer SolPricer,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		balances:    balances,
		totals:      totals,
		processed:   processed,
		rpc:         rpc,
		resolver:    resolver,
		solPricer:   solPricer,
		logger:      logger,
		now:         time.Now,
		walletLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// walletLock returns the mutex serializing mutations of one wallet.
func (e *Engine) walletLock(wallet string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.walletLocks[wallet]
	if !ok {
		lock = &sync.Mutex{}
		e.walletLocks[wallet] = lock
	}
	return lock
}

// InitializeFromChain replaces the wallet's entire cached balance set with a
// fresh snapshot from RPC. Incremental state for the wallet is discarded;
// the idempotence ledger is untouched, so previously applied signatures stay
// applied.
func (e *Engine) InitializeFromChain(ctx context.Context, wallet string) error {
	start := e.now()

	lamports, err := e.rpc.GetBalance(ctx, wallet)
	if err != nil {
		return fmt.Errorf("fetching native balance for %s: %w", wallet, err)
	}

	accounts, err := e.rpc.GetTokenAccountsByOwner(ctx, wallet)
	if err != nil {
		return fmt.Errorf("fetching token accounts for %s: %w", wallet, err)
	}

	nowMs := e.now().UnixMilli()
	records := make([]*domain.TokenBalanceRecord, 0, len(accounts)+1)

	solInfo := e.resolver.Resolve(ctx, domain.NativeMint)
	records = append(records, &domain.TokenBalanceRecord{
		Wallet:    wallet,
		Mint:      domain.NativeMint,
		Quantity:  lamportsToSol(lamports),
		PriceUSD:  solInfo.PriceUSD,
		Symbol:    solInfo.Symbol,
		Name:      solInfo.Name,
		ImageURL:  solInfo.ImageURL,
		UpdatedAt: nowMs,
	})

	for _, acct := range accounts {
		info := e.resolver.Resolve(ctx, acct.Mint)
		records = append(records, &domain.TokenBalanceRecord{
			Wallet:    wallet,
			Mint:      acct.Mint,
			Quantity:  acct.Amount,
			PriceUSD:  info.PriceUSD,
			Symbol:    info.Symbol,
			Name:      info.Name,
			ImageURL:  info.ImageURL,
			UpdatedAt: nowMs,
		})
	}

	lock := e.walletLock(wallet)
	lock.Lock()
	defer lock.Unlock()

	if err := e.balances.ReplaceWallet(ctx, wallet, records); err != nil {
		return fmt.Errorf("replacing balances for %s: %w", wallet, err)
	}

	totals, err := e.recomputeTotals(ctx, wallet)
	if err != nil {
		return err
	}
	if e.publisher != nil {
		e.publisher.BalanceChanged(ctx, push.EventFromTotals("snapshot", "", "", totals))
	}

	if e.metrics != nil {
		e.metrics.SnapshotDuration.Observe(e.now().Sub(start).Seconds())
	}
	e.logger.Info("initialized wallet from chain",
		"wallet", wallet, "tokens", len(records), "duration", e.now().Sub(start))
	return nil
}

// ApplyTransaction applies one balance change. Replaying an already-applied
// signature is a silent no-op. Debits clamp at zero rather than going
// negative; the discrepancy is logged for later snapshot correction.
func (e *Engine) ApplyTransaction(ctx context.Context, tx *domain.BalanceTransaction) error {
	if err := e.validate(tx); err != nil {
		return err
	}

	lock := e.walletLock(tx.Wallet)
	lock.Lock()
	defer lock.Unlock()

	seen, err := e.processed.Exists(ctx, tx.Signature)
	if err != nil {
		return fmt.Errorf("checking transaction ledger: %w", err)
	}
	if seen {
		if e.metrics != nil {
			e.metrics.DuplicateTransactions.Inc()
		}
		e.logger.Debug("skipping already-applied transaction", "signature", tx.Signature)
		return nil
	}

	record, err := e.balances.Get(ctx, tx.Wallet, tx.Mint)
	if errors.Is(err, storage.ErrNotFound) {
		record = &domain.TokenBalanceRecord{
			Wallet:   tx.Wallet,
			Mint:     tx.Mint,
			Quantity: decimal.Zero,
		}
	} else if err != nil {
		return fmt.Errorf("loading balance %s/%s: %w", tx.Wallet, tx.Mint, err)
	}

	switch tx.Direction {
	case domain.DirectionCredit:
		record.Quantity = record.Quantity.Add(tx.Amount)
	case domain.DirectionDebit:
		next := record.Quantity.Sub(tx.Amount)
		if next.IsNegative() {
			e.logger.Warn("debit exceeds cached balance, clamping to zero",
				"wallet", tx.Wallet, "mint", tx.Mint,
				"balance", record.Quantity, "debit", tx.Amount)
			next = decimal.Zero
		}
		record.Quantity = next
	}

	info := e.resolver.Resolve(ctx, tx.Mint)
	record.PriceUSD = info.PriceUSD
	if info.Symbol != "" {
		record.Symbol = info.Symbol
	}
	if info.Name != "" {
		record.Name = info.Name
	}
	if info.ImageURL != "" {
		record.ImageURL = info.ImageURL
	}
	record.LastSignature = tx.Signature
	record.UpdatedAt = e.now().UnixMilli()

	if err := e.balances.Upsert(ctx, record); err != nil {
		if e.metrics != nil {
			e.metrics.ApplyErrors.Inc()
		}
		return fmt.Errorf("upserting balance %s/%s: %w", tx.Wallet, tx.Mint, err)
	}

	if err := e.processed.Insert(ctx, tx.Signature); err != nil {
		// Another process sharing the ledger recorded it first; the balance
		// write above computed from the same base, so the state matches.
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("recording transaction %s: %w", tx.Signature, err)
		}
	}

	totals, err := e.recomputeTotals(ctx, tx.Wallet)
	if err != nil {
		return err
	}
	if e.publisher != nil {
		e.publisher.BalanceChanged(ctx, push.EventFromTotals("transaction", tx.Mint, tx.Signature, totals))
	}

	if e.metrics != nil {
		e.metrics.TransactionsApplied.Inc()
	}
	e.logger.Info("applied transaction",
		"signature", tx.Signature, "wallet", tx.Wallet, "mint", tx.Mint,
		"direction", tx.Direction, "amount", tx.Amount, "balance", record.Quantity)
	return nil
}

// MultiTokenLeg is one balance movement within a transaction touching
// several tokens, e.g. a swap.
type MultiTokenLeg struct {
	Mint      string
	Direction domain.TransactionDirection
	Amount    decimal.Decimal
}

// ApplyMultiTokenTransaction applies each leg of a multi-token transaction
// in order. Legs are idempotent individually: the ledger is keyed by
// signature, so each leg gets a derived signature of signature#index. A
// failed leg is logged and skipped; the remaining legs still apply.
func (e *Engine) ApplyMultiTokenTransaction(ctx context.Context, signature, wallet string, slot int64, legs []MultiTokenLeg) error {
	if signature == "" {
		return fmt.Errorf("%w: empty signature", storage.ErrInvalidInput)
	}
	if len(legs) == 0 {
		return fmt.Errorf("%w: no legs", storage.ErrInvalidInput)
	}

	var failed int
	for i, leg := range legs {
		tx := &domain.BalanceTransaction{
			Signature: fmt.Sprintf("%s#%d", signature, i),
			Wallet:    wallet,
			Mint:      leg.Mint,
			Direction: leg.Direction,
			Amount:    leg.Amount,
			Slot:      slot,
		}
		if err := e.ApplyTransaction(ctx, tx); err != nil {
			failed++
			e.logger.Error("multi-token leg failed",
				"signature", signature, "leg", i, "mint", leg.Mint, "error", err)
		}
	}

	if failed == len(legs) {
		return fmt.Errorf("all %d legs of %s failed", failed, signature)
	}
	return nil
}

func (e *Engine) validate(tx *domain.BalanceTransaction) error {
	switch {
	case tx.Signature == "":
		return fmt.Errorf("%w: empty signature", storage.ErrInvalidInput)
	case tx.Wallet == "":
		return fmt.Errorf("%w: empty wallet", storage.ErrInvalidInput)
	case tx.Mint == "":
		return fmt.Errorf("%w: empty mint", storage.ErrInvalidInput)
	case !tx.Direction.Valid():
		return fmt.Errorf("%w: direction %q", storage.ErrInvalidInput, tx.Direction)
	case tx.Amount.IsNegative():
		return fmt.Errorf("%w: negative amount %s", storage.ErrInvalidInput, tx.Amount)
	}
	return nil
}

// recomputeTotals rebuilds the wallet's aggregate value from its full record
// set and records a history sample when history is enabled.
func (e *Engine) recomputeTotals(ctx context.Context, wallet string) (*domain.WalletTotals, error) {
	records, err := e.balances.GetByWallet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("loading balances for totals of %s: %w", wallet, err)
	}

	solPrice := e.solPrice(ctx, records)
	totals := domain.ComputeTotals(wallet, records, solPrice, e.now().UnixMilli())

	if err := e.totals.Upsert(ctx, totals); err != nil {
		return nil, fmt.Errorf("upserting totals for %s: %w", wallet, err)
	}

	if e.history != nil {
		point := &domain.BalanceHistoryPoint{
			Wallet:      wallet,
			TimestampMs: totals.UpdatedAt,
			TotalUSD:    totals.TotalUSD,
			TotalSOL:    totals.TotalSOL,
			TokenCount:  len(records),
		}
		if err := e.history.Insert(ctx, point); err != nil {
			// History is advisory; losing a sample does not corrupt balances.
			e.logger.Warn("recording balance history failed", "wallet", wallet, "error", err)
		}
	}
	return totals, nil
}

// solPrice picks the SOL unit price for totals conversion, preferring a live
// quote and falling back to the cached native record.
func (e *Engine) solPrice(ctx context.Context, records []*domain.TokenBalanceRecord) decimal.Decimal {
	if e.solPricer != nil {
		price, err := e.solPricer.SolPriceUSD(ctx)
		if err == nil && price.IsPositive() {
			return price
		}
		if err != nil {
			e.logger.Debug("live SOL price unavailable", "error", err)
		}
	}
	for _, r := range records {
		if r.Mint == domain.NativeMint {
			return r.PriceUSD
		}
	}
	return decimal.Zero
}

func lamportsToSol(lamports uint64) decimal.Decimal {
	return decimal.New(int64(lamports), 0).Shift(-9)
}
