package ws

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Intent describes what an in-flight request is trying to do.
type Intent int

const (
	// IntentSubscribe is an accountSubscribe request.
	IntentSubscribe Intent = iota
	// IntentUnsubscribe is an accountUnsubscribe request.
	IntentUnsubscribe
)

// Result is the outcome of one correlated request.
type Result struct {
	Key            string // correlation key, usually a wallet address
	Intent         Intent
	SubscriptionID int64 // server-assigned handle, subscribe confirmations only
	Err            error
}

// Request ID layout: 42 bits of millisecond time, 12 bits of per-process salt,
// 10 bits of wrapping sequence. Two requests issued in the same millisecond
// get distinct sequence values; the salt keeps IDs distinct across restarts.
const (
	idTimeShift = 22
	idSaltShift = 10
	idSaltMask  = 0xfff
	idSeqMask   = 0x3ff
)

// Correlator tracks in-flight requests and dispatches asynchronous responses
// to whichever logical caller is waiting. It owns the pending-request map
// exclusively.
type Correlator struct {
	salt   uint64
	seq    atomic.Uint64
	logger *slog.Logger

	mu      sync.Mutex
	pending map[uint64]*pendingRequest
}

type pendingRequest struct {
	key    string
	intent Intent
	done   func(Result)
}

// NewCorrelator creates a new Correlator.
func NewCorrelator(logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		salt:    uint64(rand.Int63()) & idSaltMask,
		logger:  logger,
		pending: make(map[uint64]*pendingRequest),
	}
}

// NextRequestID returns an identifier unique within process lifetime.
func (c *Correlator) NextRequestID() uint64 {
	now := uint64(time.Now().UnixMilli())
	seq := c.seq.Add(1) & idSeqMask
	return now<<idTimeShift | c.salt<<idSaltShift | seq
}

// Register stores a correlation key against a request id before transmission.
// done is invoked exactly once, from its own goroutine, when a matching
// response arrives or the request is abandoned.
func (c *Correlator) Register(id uint64, key string, intent Intent, done func(Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[id] = &pendingRequest{key: key, intent: intent, done: done}
}

// Forget drops a pending entry without invoking its callback. Used when
// transmission itself fails.
func (c *Correlator) Forget(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// Dispatch routes an inbound {id, result|error} response to the waiting
// caller. A response for an unknown id is silently ignored: the connection
// may have dropped and been re-established, invalidating in-flight ids.
func (c *Correlator) Dispatch(id uint64, result json.RawMessage, respErr *ResponseError) {
	c.mu.Lock()
	req, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("response for unknown request id dropped", "id", id)
		return
	}

	res := Result{Key: req.key, Intent: req.intent}
	if respErr != nil {
		res.Err = respErr
	} else if req.intent == IntentSubscribe {
		var subID int64
		if err := json.Unmarshal(result, &subID); err != nil {
			res.Err = err
		} else {
			res.SubscriptionID = subID
		}
	}

	go req.done(res)
}

// AbandonAll rejects every pending request with err and clears the map.
// Called when the connection drops: in-flight ids are no longer valid on a
// re-established connection.
func (c *Correlator) AbandonAll(err error) {
	c.mu.Lock()
	abandoned := c.pending
	c.pending = make(map[uint64]*pendingRequest)
	c.mu.Unlock()

	for _, req := range abandoned {
		res := Result{Key: req.key, Intent: req.intent, Err: err}
		go req.done(res)
	}
}

// PendingCount returns the number of in-flight requests.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
