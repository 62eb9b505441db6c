package ws

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelator_NextRequestIDUnique(t *testing.T) {
	c := NewCorrelator(nil)

	seen := make(map[uint64]struct{})
	for i := 0; i < 1000; i++ {
		id := c.NextRequestID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d at iteration %d", id, i)
		seen[id] = struct{}{}
	}
}

func TestCorrelator_DispatchSubscribe(t *testing.T) {
	c := NewCorrelator(nil)
	id := c.NextRequestID()

	results := make(chan Result, 1)
	c.Register(id, "wallet1", IntentSubscribe, func(res Result) { results <- res })

	c.Dispatch(id, json.RawMessage("42"), nil)

	select {
	case res := <-results:
		require.NoError(t, res.Err)
		assert.Equal(t, "wallet1", res.Key)
		assert.Equal(t, IntentSubscribe, res.Intent)
		assert.Equal(t, int64(42), res.SubscriptionID)
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}

	assert.Equal(t, 0, c.PendingCount())
}

func TestCorrelator_DispatchError(t *testing.T) {
	c := NewCorrelator(nil)
	id := c.NextRequestID()

	results := make(chan Result, 1)
	c.Register(id, "wallet1", IntentSubscribe, func(res Result) { results <- res })

	c.Dispatch(id, nil, &ResponseError{Code: -32602, Message: "invalid params"})

	select {
	case res := <-results:
		require.Error(t, res.Err)
		assert.Contains(t, res.Err.Error(), "invalid params")
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}
}

func TestCorrelator_UnknownIDSilentlyDropped(t *testing.T) {
	c := NewCorrelator(nil)

	// Must not panic or invoke anything.
	c.Dispatch(12345, json.RawMessage("1"), nil)
	assert.Equal(t, 0, c.PendingCount())
}

func TestCorrelator_ForgetSuppressesCallback(t *testing.T) {
	c := NewCorrelator(nil)
	id := c.NextRequestID()

	invoked := make(chan struct{}, 1)
	c.Register(id, "wallet1", IntentSubscribe, func(Result) { invoked <- struct{}{} })
	c.Forget(id)
	c.Dispatch(id, json.RawMessage("1"), nil)

	select {
	case <-invoked:
		t.Fatal("callback invoked after Forget")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCorrelator_AbandonAll(t *testing.T) {
	c := NewCorrelator(nil)

	results := make(chan Result, 3)
	for i := 0; i < 3; i++ {
		id := c.NextRequestID()
		c.Register(id, "wallet", IntentSubscribe, func(res Result) { results <- res })
	}
	require.Equal(t, 3, c.PendingCount())

	cause := errors.New("connection lost")
	c.AbandonAll(cause)

	for i := 0; i < 3; i++ {
		select {
		case res := <-results:
			assert.ErrorIs(t, res.Err, cause)
		case <-time.After(time.Second):
			t.Fatal("abandoned callback not invoked")
		}
	}
	assert.Equal(t, 0, c.PendingCount())
}
