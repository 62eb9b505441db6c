package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Registry maps wallet addresses to confirmed server-side subscription
// handles and reverse-maps inbound notification handles back to wallets.
// It owns both maps exclusively. The Registry never resubscribes on its
// own: after a connection loss every entry is stale, and the owning service
// re-issues BatchSubscribe once the connection reopens.
type Registry struct {
	correlator *Correlator
	conn       *Conn
	logger     *slog.Logger

	mu       sync.RWMutex
	byWallet map[string]int64
	byHandle map[int64]string
}

// NewRegistry creates a subscription registry sending through conn and
// correlating through correlator.
func NewRegistry(correlator *Correlator, conn *Conn, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		correlator: correlator,
		conn:       conn,
		logger:     logger,
		byWallet:   make(map[string]int64),
		byHandle:   make(map[int64]string),
	}
}

// SubscribeWallet issues an accountSubscribe request for address. The call
// returns once the request is queued or sent; the server confirmation is
// stored asynchronously when it arrives.
func (r *Registry) SubscribeWallet(address string) error {
	id := r.correlator.NextRequestID()

	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "accountSubscribe",
		Params: []interface{}{
			address,
			map[string]string{"encoding": "jsonParsed", "commitment": "confirmed"},
		},
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	r.correlator.Register(id, address, IntentSubscribe, func(res Result) {
		if res.Err != nil {
			r.logger.Warn("subscribe failed", "wallet", res.Key, "error", res.Err)
			return
		}
		r.confirm(res.Key, res.SubscriptionID)
	})

	r.conn.EnqueueSend(payload)
	return nil
}

// UnsubscribeWallet removes the local mapping immediately and sends an
// accountUnsubscribe for the stored handle. Removal is optimistic: the
// wallet stops counting as watched without waiting for server confirmation.
func (r *Registry) UnsubscribeWallet(address string) error {
	r.mu.Lock()
	handle, ok := r.byWallet[address]
	if ok {
		delete(r.byWallet, address)
		delete(r.byHandle, handle)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}

	id := r.correlator.NextRequestID()
	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "accountUnsubscribe",
		Params:  []interface{}{handle},
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	r.correlator.Register(id, address, IntentUnsubscribe, func(res Result) {
		if res.Err != nil {
			r.logger.Debug("unsubscribe rejected", "wallet", res.Key, "error", res.Err)
		}
	})

	r.conn.EnqueueSend(payload)
	return nil
}

// BatchSubscribe issues subscribes sequentially with an inter-request gap to
// respect upstream rate limits. It returns after issuing the last request;
// confirmations continue arriving asynchronously.
func (r *Registry) BatchSubscribe(ctx context.Context, addresses []string, gap time.Duration) error {
	for i, address := range addresses {
		if i > 0 && gap > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(gap):
			}
		}
		if err := r.SubscribeWallet(address); err != nil {
			r.logger.Warn("batch subscribe skipped wallet", "wallet", address, "error", err)
		}
	}
	return nil
}

// confirm stores a server-assigned handle for a wallet. A wallet
// resubscribed under a new handle drops the old reverse mapping.
func (r *Registry) confirm(address string, handle int64) {
	r.mu.Lock()
	if old, ok := r.byWallet[address]; ok {
		delete(r.byHandle, old)
	}
	r.byWallet[address] = handle
	r.byHandle[handle] = address
	r.mu.Unlock()

	r.logger.Debug("subscription confirmed", "wallet", address, "handle", handle)
}

// WalletFor resolves an inbound handle to a wallet address.
func (r *Registry) WalletFor(handle int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	address, ok := r.byHandle[handle]
	return address, ok
}

// IsWatched reports whether a wallet has a confirmed subscription.
func (r *Registry) IsWatched(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byWallet[address]
	return ok
}

// Count returns the number of confirmed subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byWallet)
}

// Invalidate clears every mapping. Called on connection loss: no
// subscription is considered active across a reconnect until re-confirmed.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	n := len(r.byWallet)
	r.byWallet = make(map[string]int64)
	r.byHandle = make(map[int64]string)
	r.mu.Unlock()

	if n > 0 {
		r.logger.Info("subscriptions invalidated after connection loss", "count", n)
	}
}
