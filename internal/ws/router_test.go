package ws

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, handlers RouterHandlers) (*Router, *Registry, *Correlator) {
	t.Helper()
	r, correlator, _ := newQueuedRegistry(t)
	return NewRouter(correlator, r, handlers, nil, nil), r, correlator
}

func accountNotificationFrame(handle int64, slot int64, lamports uint64) []byte {
	return []byte(fmt.Sprintf(
		`{"jsonrpc":"2.0","method":"accountNotification","params":{"subscription":%d,"result":{"context":{"slot":%d},"value":{"lamports":%d}}}}`,
		handle, slot, lamports))
}

func TestRouter_AccountNotification(t *testing.T) {
	changes := make(chan AccountChange, 1)
	router, registry, correlator := newTestRouter(t, RouterHandlers{
		OnAccountChange: func(c AccountChange) { changes <- c },
	})

	require.NoError(t, registry.SubscribeWallet("wallet1"))
	confirmPending(t, correlator, 7)

	router.OnMessage(accountNotificationFrame(7, 555, 1_500_000_000))

	select {
	case change := <-changes:
		assert.Equal(t, "wallet1", change.Wallet)
		assert.Equal(t, int64(555), change.Slot)
		assert.Equal(t, uint64(1_500_000_000), change.Lamports)
	case <-time.After(time.Second):
		t.Fatal("account change not delivered")
	}
}

func TestRouter_UnknownHandleDropped(t *testing.T) {
	changes := make(chan AccountChange, 1)
	router, _, _ := newTestRouter(t, RouterHandlers{
		OnAccountChange: func(c AccountChange) { changes <- c },
	})

	router.OnMessage(accountNotificationFrame(99, 555, 1))

	select {
	case <-changes:
		t.Fatal("notification for unknown handle must be dropped")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRouter_BroadNotifications(t *testing.T) {
	triggers := make(chan struct{}, 2)
	router, _, _ := newTestRouter(t, RouterHandlers{
		OnBroadTrigger: func() { triggers <- struct{}{} },
	})

	router.OnMessage([]byte(`{"jsonrpc":"2.0","method":"logsNotification","params":{"subscription":1,"result":{}}}`))
	router.OnMessage([]byte(`{"jsonrpc":"2.0","method":"signatureNotification","params":{"subscription":2,"result":{}}}`))

	for i := 0; i < 2; i++ {
		select {
		case <-triggers:
		case <-time.After(time.Second):
			t.Fatalf("broad trigger %d not delivered", i)
		}
	}
}

func TestRouter_ResponseRoutedToCorrelator(t *testing.T) {
	router, _, correlator := newTestRouter(t, RouterHandlers{})

	id := correlator.NextRequestID()
	results := make(chan Result, 1)
	correlator.Register(id, "wallet1", IntentSubscribe, func(res Result) { results <- res })

	frame, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0", "id": id, "result": 42,
	})
	require.NoError(t, err)
	router.OnMessage(frame)

	select {
	case res := <-results:
		require.NoError(t, res.Err)
		assert.Equal(t, int64(42), res.SubscriptionID)
	case <-time.After(time.Second):
		t.Fatal("response not dispatched")
	}
}

func TestRouter_UnparseableDropped(t *testing.T) {
	router, _, _ := newTestRouter(t, RouterHandlers{
		OnAccountChange: func(AccountChange) { t.Error("handler must not fire") },
		OnBroadTrigger:  func() { t.Error("handler must not fire") },
	})

	router.OnMessage([]byte("not json at all"))
	router.OnMessage([]byte(`{"method":"accountNotification","params":"garbage"}`))
	router.OnMessage([]byte(`{}`))
	router.OnMessage([]byte(`{"method":"somethingElseNotification","params":{}}`))

	time.Sleep(50 * time.Millisecond)
}

func TestRouter_HandlerPanicContained(t *testing.T) {
	fired := make(chan struct{}, 1)
	router, _, _ := newTestRouter(t, RouterHandlers{
		OnBroadTrigger: func() {
			fired <- struct{}{}
			panic("downstream bug")
		},
	})

	router.OnMessage([]byte(`{"method":"logsNotification","params":{}}`))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("handler not invoked")
	}
	// The panic is recovered on the handler goroutine; nothing to assert
	// beyond the process surviving.
	time.Sleep(20 * time.Millisecond)
}
