package ws

import (
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"solana-wallet-sync/internal/observability"
)

// State is the lifecycle state of the connection.
type State int32

const (
	// StateClosed means no socket exists and none is being established.
	StateClosed State = iota
	// StateConnecting means a dial is in progress.
	StateConnecting
	// StateOpen means the socket is established and usable.
	StateOpen
	// StateDisabled means the circuit breaker tripped: automatic
	// reconnection has stopped and only an explicit restart can recover.
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Config configures connection behavior.
type Config struct {
	// Endpoint is the WebSocket URL of the RPC node.
	Endpoint string
	// HeartbeatInterval is the keepalive ping period.
	HeartbeatInterval time.Duration
	// SendGap is the pause inserted between queued sends while draining,
	// to avoid bursting the remote endpoint.
	SendGap time.Duration
	// BackoffFloor is the minimum reconnect delay.
	BackoffFloor time.Duration
	// BackoffCap is the maximum reconnect delay.
	BackoffCap time.Duration
	// JitterMax is the upper bound of random jitter added to each delay.
	JitterMax time.Duration
	// MaxFailures is the number of consecutive failures after which
	// automatic reconnection stops entirely.
	MaxFailures int
	// WriteTimeout bounds each socket write.
	WriteTimeout time.Duration
	// HandshakeTimeout bounds the dial.
	HandshakeTimeout time.Duration
}

// DefaultConfig returns default connection configuration.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:          endpoint,
		HeartbeatInterval: 25 * time.Second,
		SendGap:           75 * time.Millisecond,
		BackoffFloor:      30 * time.Second,
		BackoffCap:        600 * time.Second,
		JitterMax:         5 * time.Second,
		MaxFailures:       5,
		WriteTimeout:      10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
	}
}

// Handlers are the callbacks a Conn invokes on connection events. All of
// them are invoked from their own goroutine and must tolerate being called
// against a connection that has since been replaced.
type Handlers struct {
	// OnMessage receives every raw inbound frame. It must not block.
	OnMessage func(raw []byte)
	// OnOpen fires after each successful (re)connect, before the outbound
	// queue drains. The owning service resubscribes watched wallets here.
	OnOpen func()
	// OnDown fires after the socket is lost: pending requests and
	// subscription handles are no longer valid.
	OnDown func()
	// OnDisabled fires once when the circuit breaker trips.
	OnDisabled func()
}

// Conn owns the single persistent WebSocket connection. Only Conn mutates
// the socket, the lifecycle state, the failure counter and the outbound
// queue; other components interact through EnqueueSend and Status.
type Conn struct {
	cfg      Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	handlers Handlers

	mu         sync.Mutex
	conn       *websocket.Conn
	state      State
	failures   int
	generation uint64
	queue      [][]byte
	draining   bool
	reconnect  *time.Timer

	// writeMu serializes all socket writes; gorilla/websocket permits at
	// most one concurrent writer.
	writeMu sync.Mutex

	done   chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewConn creates a connection manager. The socket itself is established
// lazily on first use.
func NewConn(cfg Config, handlers Handlers, logger *slog.Logger, metrics *observability.Metrics) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		handlers: handlers,
		state:    StateClosed,
		done:     make(chan struct{}),
	}
}

// EnsureConnection lazily starts a dial if no connection exists. It returns
// immediately; callers observe progress through Status.
func (c *Conn) EnsureConnection() {
	if c.closed.Load() {
		return
	}

	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.setStateMetric()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.connect()
	}()
}

// EnqueueSend transmits payload immediately if the connection is open, or
// appends it to the outbound queue otherwise. Queued payloads are drained
// strictly FIFO once the connection opens.
func (c *Conn) EnqueueSend(payload []byte) {
	if c.closed.Load() {
		return
	}

	c.EnsureConnection()

	c.mu.Lock()
	if c.state != StateOpen || c.draining {
		c.queue = append(c.queue, payload)
		queued := len(c.queue)
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.QueuedSends.Set(float64(queued))
		}
		return
	}
	conn := c.conn
	c.mu.Unlock()

	if err := c.write(conn, payload); err != nil {
		// Keep the payload; the read loop will notice the dead socket and
		// the queue drains after reconnect.
		c.logger.Warn("immediate send failed, queueing", "error", err)
		c.mu.Lock()
		c.queue = append(c.queue, payload)
		c.mu.Unlock()
	}
}

// Status reports the lifecycle state and the outbound queue depth.
func (c *Conn) Status() (State, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, len(c.queue)
}

// Close shuts the connection down permanently.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.mu.Lock()
	if c.reconnect != nil {
		c.reconnect.Stop()
	}
	if c.conn != nil {
		c.writeMu.Lock()
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateClosed
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

// connect dials the endpoint and, on success, installs the new socket,
// resets the failure counter and starts the session goroutines. A dial
// failure re-enters the backoff scheduler.
func (c *Conn) connect() {
	if c.closed.Load() {
		return
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.Dial(c.cfg.Endpoint, nil)
	if err != nil {
		c.logger.Warn("websocket dial failed", "endpoint", c.cfg.Endpoint, "error", err)
		c.handleFailure()
		return
	}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.failures = 0
	c.generation++
	gen := c.generation
	c.draining = len(c.queue) > 0
	c.mu.Unlock()

	c.setStateMetric()
	if c.metrics != nil {
		c.metrics.ConnectsTotal.Inc()
	}
	c.logger.Info("websocket connected", "endpoint", c.cfg.Endpoint)

	if c.handlers.OnOpen != nil {
		go c.handlers.OnOpen()
	}

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.readLoop(conn, gen)
	}()
	go func() {
		defer c.wg.Done()
		c.heartbeatLoop(conn, gen)
	}()

	c.drainQueue(conn)
}

// drainQueue sends queued payloads strictly in FIFO order with a fixed gap
// between sends.
func (c *Conn) drainQueue(conn *websocket.Conn) {
	first := true
	for {
		c.mu.Lock()
		if len(c.queue) == 0 || c.conn != conn {
			c.draining = false
			c.mu.Unlock()
			return
		}
		payload := c.queue[0]
		c.queue = c.queue[1:]
		queued := len(c.queue)
		c.mu.Unlock()

		if c.metrics != nil {
			c.metrics.QueuedSends.Set(float64(queued))
		}

		if !first {
			select {
			case <-c.done:
				return
			case <-time.After(c.cfg.SendGap):
			}
		}
		first = false

		if err := c.write(conn, payload); err != nil {
			// Put it back at the head; the session is ending anyway.
			c.logger.Warn("queued send failed", "error", err)
			c.mu.Lock()
			c.queue = append([][]byte{payload}, c.queue...)
			c.draining = false
			c.mu.Unlock()
			return
		}
	}
}

func (c *Conn) write(conn *websocket.Conn, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// readLoop reads frames for one session and hands them to OnMessage.
func (c *Conn) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.handleDisconnect(conn, gen, err)
			return
		}

		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(message)
		}
	}
}

// heartbeatLoop emits keepalive pings at a fixed interval for one session.
func (c *Conn) heartbeatLoop(conn *websocket.Conn, gen uint64) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			stale := c.generation != gen || c.conn != conn
			c.mu.Unlock()
			if stale {
				return
			}

			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				// The read loop will observe the dead socket.
				c.logger.Debug("heartbeat write failed", "error", err)
				return
			}
			if c.metrics != nil {
				c.metrics.HeartbeatsTotal.Inc()
			}
		}
	}
}

// handleDisconnect tears the session down and enters the backoff scheduler.
func (c *Conn) handleDisconnect(conn *websocket.Conn, gen uint64, cause error) {
	c.mu.Lock()
	if c.generation != gen {
		// A newer session already replaced this one.
		c.mu.Unlock()
		return
	}
	if c.conn == conn {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateClosed
	c.mu.Unlock()

	c.setStateMetric()
	c.logger.Warn("websocket connection lost", "error", cause)

	if c.handlers.OnDown != nil {
		go c.handlers.OnDown()
	}

	c.handleFailure()
}

// handleFailure increments the consecutive-failure counter and either trips
// the circuit breaker or schedules the next reconnect attempt.
func (c *Conn) handleFailure() {
	if c.closed.Load() {
		return
	}

	c.mu.Lock()
	c.failures++
	failures := c.failures

	if failures > c.cfg.MaxFailures {
		c.state = StateDisabled
		c.mu.Unlock()

		c.setStateMetric()
		c.logger.Error("reconnect circuit breaker tripped, automatic reconnection disabled",
			"failures", failures)
		if c.metrics != nil {
			c.metrics.BreakerTrips.Inc()
		}
		if c.handlers.OnDisabled != nil {
			go c.handlers.OnDisabled()
		}
		return
	}

	delay := c.nextBackoffDelay(failures)
	c.state = StateClosed
	c.reconnect = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.state != StateClosed || c.closed.Load() {
			c.mu.Unlock()
			return
		}
		c.state = StateConnecting
		c.mu.Unlock()
		c.setStateMetric()
		c.connect()
	})
	c.mu.Unlock()

	c.setStateMetric()
	c.logger.Info("reconnect scheduled", "failures", failures, "delay", delay)
	if c.metrics != nil {
		c.metrics.ReconnectsTotal.Inc()
	}
}

// nextBackoffDelay computes min(floor × 2^failures, cap) plus random jitter.
func (c *Conn) nextBackoffDelay(failures int) time.Duration {
	if failures > 30 {
		failures = 30
	}
	delay := c.cfg.BackoffFloor * (1 << uint(failures))
	if delay > c.cfg.BackoffCap || delay <= 0 {
		delay = c.cfg.BackoffCap
	}
	if c.cfg.JitterMax > 0 {
		delay += time.Duration(rand.Int63n(int64(c.cfg.JitterMax)))
	}
	return delay
}

func (c *Conn) setStateMetric() {
	if c.metrics == nil {
		return
	}
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	c.metrics.ConnectionState.Set(float64(state))
}
