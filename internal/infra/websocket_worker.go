package infra

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ConnState is the lifecycle state of a streaming connection.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateAuthenticating
	StateStreaming
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateStreaming:
		return "streaming"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StreamHandler defines venue-specific logic for the WSWorker.
// Authenticate runs right after the dial, OnOpen right after a
// successful authentication and before any frame is read, so desired
// subscriptions are re-asserted on every (re)connect.
type StreamHandler interface {
	ID() string
	URL() string
	Authenticate(ctx context.Context, conn *websocket.Conn) error
	OnOpen(ctx context.Context, conn *websocket.Conn) error
	OnMessage(ctx context.Context, msg []byte)
}

// WSWorker manages the lifecycle of a WebSocket connection: dial,
// authenticate, resubscribe, read, and reconnect with jittered backoff.
// The worker owns the connection; all state transitions happen on its
// run loop, and it is the only reader.
type WSWorker struct {
	handler StreamHandler
	logger  *zap.Logger

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	state   atomic.Int32
	done    chan struct{}

	ReadTimeout  time.Duration
	PingInterval time.Duration
	UserAgent    string

	// MaxRetries caps consecutive failed connection attempts before the
	// worker gives up and parks in StateFailed. Zero or negative means
	// retry forever.
	MaxRetries int

	// Backoff maps a consecutive-failure count to a delay.
	Backoff func(retry int) time.Duration
}

// NewWSWorker creates a new generic WebSocket worker.
func NewWSWorker(handler StreamHandler, logger *zap.Logger) *WSWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSWorker{
		handler:      handler,
		logger:       logger.With(zap.String("ws", handler.ID())),
		done:         make(chan struct{}),
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
		Backoff:      JitteredBackoff,
	}
}

// Start initiates the connection loop. It is not restartable: a worker
// that has stopped or failed stays down.
func (w *WSWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.runLoop(ctx)
}

// Stop terminates the worker and waits for the run loop to exit.
func (w *WSWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.close()
	w.wg.Wait()
}

// State returns the current connection state.
func (w *WSWorker) State() ConnState {
	return ConnState(w.state.Load())
}

// Done is closed once the run loop has exited, either because Stop was
// called or because the retry budget ran out.
func (w *WSWorker) Done() <-chan struct{} {
	return w.done
}

func (w *WSWorker) setState(s ConnState) {
	w.state.Store(int32(s))
}

func (w *WSWorker) runLoop(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.done)
	retry := 0

	for {
		select {
		case <-ctx.Done():
			w.setState(StateDisconnected)
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			w.setState(StateDisconnected)
			if ctx.Err() != nil {
				return
			}
			retry++
			if w.MaxRetries > 0 && retry > w.MaxRetries {
				w.logger.Error("giving up on connection", zap.Int("attempts", retry), zap.Error(err))
				w.setState(StateFailed)
				return
			}

			delay := w.Backoff(retry - 1)
			w.logger.Warn("connection failed", zap.Error(err), zap.Int("retry", retry), zap.Duration("backoff", delay))

			select {
			case <-ctx.Done():
				w.setState(StateDisconnected)
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0 // Reset on successful connect
		w.process(ctx)
		w.setState(StateDisconnected)
	}
}

func (w *WSWorker) connect(ctx context.Context) error {
	w.setState(StateConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	if w.UserAgent != "" {
		header.Set("User-Agent", w.UserAgent)
	}

	conn, _, err := dialer.DialContext(ctx, w.handler.URL(), header)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	w.setState(StateAuthenticating)
	if err := w.handler.Authenticate(ctx, conn); err != nil {
		w.close()
		return fmt.Errorf("authenticate: %w", err)
	}

	// Streaming covers the resubscribe phase: the state flips before
	// OnOpen so a concurrent Subscribe that misses the OnOpen snapshot
	// sends its own frame instead of being lost until the next
	// reconnect. A duplicate subscribe is a wire-level no-op.
	w.setState(StateStreaming)

	// Re-assert subscriptions before the first frame of this session is
	// read, so no data arrives for an unsubscribed stream.
	if err := w.handler.OnOpen(ctx, conn); err != nil {
		w.close()
		return fmt.Errorf("on open: %w", err)
	}

	if w.PingInterval > 0 {
		go w.pingLoop(ctx, conn)
	}

	w.logger.Info("connected", zap.String("url", w.handler.URL()))
	return nil
}

func (w *WSWorker) process(ctx context.Context) {
	for {
		w.mu.RLock()
		c := w.conn
		w.mu.RUnlock()
		if c == nil {
			return
		}

		c.SetReadDeadline(time.Now().Add(w.ReadTimeout))
		_, msg, err := c.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				w.logger.Warn("read error", zap.Error(err))
			}
			w.close()
			return
		}

		w.handler.OnMessage(ctx, msg)
	}
}

// pingLoop keeps exactly one connection alive; it exits when that
// connection goes away rather than adopting a replacement.
func (w *WSWorker) pingLoop(ctx context.Context, c *websocket.Conn) {
	ticker := time.NewTicker(w.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := c.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// Write sends one frame on the current connection. Thread-safe.
func (w *WSWorker) Write(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.RLock()
	c := w.conn
	w.mu.RUnlock()

	if c == nil {
		return fmt.Errorf("ws not connected")
	}

	return c.WriteMessage(msgType, data)
}

func (w *WSWorker) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}
