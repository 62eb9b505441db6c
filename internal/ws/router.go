package ws

import (
	"encoding/json"
	"log/slog"

	"solana-wallet-sync/internal/observability"
)

// AccountChange is a parsed account-change notification for a watched wallet.
type AccountChange struct {
	Wallet   string
	Slot     int64
	Lamports uint64
}

// RouterHandlers are the side effects the Router triggers. Both are invoked
// from their own goroutine; the Router never blocks the socket receive path
// and never lets a downstream panic or error travel back into it.
type RouterHandlers struct {
	// OnAccountChange fires for each account notification that resolves to
	// a watched wallet.
	OnAccountChange func(change AccountChange)
	// OnBroadTrigger fires for log and signature notifications, where a
	// specific wallet cannot be derived from the payload.
	OnBroadTrigger func()
}

// Router consumes parsed inbound messages, classifies them and triggers
// balance-refresh side effects. Responses with an id are handed to the
// Correlator; notifications are resolved against the Registry.
type Router struct {
	correlator *Correlator
	registry   *Registry
	handlers   RouterHandlers
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewRouter creates a notification router.
func NewRouter(correlator *Correlator, registry *Registry, handlers RouterHandlers, logger *slog.Logger, metrics *observability.Metrics) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		correlator: correlator,
		registry:   registry,
		handlers:   handlers,
		logger:     logger,
		metrics:    metrics,
	}
}

// OnMessage parses one raw inbound frame. Unparseable payloads are dropped
// without error.
func (rt *Router) OnMessage(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		rt.logger.Debug("unparseable message dropped", "error", err)
		if rt.metrics != nil {
			rt.metrics.DroppedMessages.Inc()
		}
		return
	}

	// {id, result|error} response: hand off to the correlator.
	if env.ID != nil {
		rt.correlator.Dispatch(*env.ID, env.Result, env.Error)
		return
	}

	switch env.Method {
	case methodAccountNotification:
		rt.handleAccountNotification(env.Params)
	case methodLogsNotification, methodSignatureNotification:
		if rt.metrics != nil {
			rt.metrics.NotificationsTotal.WithLabelValues("broad").Inc()
		}
		if rt.handlers.OnBroadTrigger != nil {
			go rt.guard(rt.handlers.OnBroadTrigger)
		}
	case "":
		rt.logger.Debug("message without id or method dropped")
	default:
		rt.logger.Debug("unrecognized notification dropped", "method", env.Method)
	}
}

func (rt *Router) handleAccountNotification(params json.RawMessage) {
	var p notificationParams
	if err := json.Unmarshal(params, &p); err != nil {
		rt.logger.Debug("malformed account notification dropped", "error", err)
		if rt.metrics != nil {
			rt.metrics.DroppedMessages.Inc()
		}
		return
	}

	wallet, ok := rt.registry.WalletFor(p.Subscription)
	if !ok {
		rt.logger.Debug("account notification for unknown handle dropped",
			"handle", p.Subscription)
		return
	}

	var value accountValue
	if len(p.Result.Value) > 0 {
		if err := json.Unmarshal(p.Result.Value, &value); err != nil {
			rt.logger.Debug("malformed account value dropped", "wallet", wallet, "error", err)
			return
		}
	}

	change := AccountChange{Wallet: wallet, Lamports: value.Lamports}
	if p.Result.Context != nil {
		change.Slot = p.Result.Context.Slot
	}

	if rt.metrics != nil {
		rt.metrics.NotificationsTotal.WithLabelValues("account").Inc()
	}

	if rt.handlers.OnAccountChange != nil {
		go rt.guard(func() { rt.handlers.OnAccountChange(change) })
	}
}

// guard runs a downstream handler, catching panics so they never reach the
// message-handling path.
func (rt *Router) guard(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Error("notification handler panicked", "panic", r)
		}
	}()
	fn()
}
