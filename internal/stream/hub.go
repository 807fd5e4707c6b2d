package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/eventbus"
	tserrors "github.com/abdoElHodaky/tradingsuite/pkg/errors"
	"github.com/abdoElHodaky/tradingsuite/pkg/tasks"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// HubConfig tunes one hub's reconnect/heartbeat envelope.
type HubConfig struct {
	HeartbeatDeadline time.Duration // default 15s
	BackoffBase       time.Duration // default 1s
	BackoffFactor     float64       // default 2
	BackoffCap        time.Duration // default 60s
	CircuitFailures   uint32        // N=10
	CircuitWindow     time.Duration // W=300s
	TokenLockTimeout  time.Duration // default 30s
	DrainDeadline     time.Duration // default 2s
}

// DefaultHubConfig returns the documented default envelope.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		HeartbeatDeadline: 15 * time.Second,
		BackoffBase:       time.Second,
		BackoffFactor:     2,
		BackoffCap:        60 * time.Second,
		CircuitFailures:   10,
		CircuitWindow:     300 * time.Second,
		TokenLockTimeout:  30 * time.Second,
		DrainDeadline:     2 * time.Second,
	}
}

// FrameHandler decodes and routes one raw inbound frame. It must not
// block; unrecognized shapes are counted as protocol corruption rather
// than guessed at.
type FrameHandler func(raw []byte) error

// Hub manages one long-lived streaming connection (market or user).
type Hub struct {
	name     string
	cfg      HubConfig
	dialer   Dialer
	urlFn    func(token string) (string, error)
	onFrame  FrameHandler
	bus      *eventbus.Bus
	seq      *eventbus.Sequencer
	registry *tasks.Registry
	logger   *zap.Logger
	breaker  *gobreaker.CircuitBreaker

	mu            sync.Mutex
	state         State
	conn          Conn
	token         string
	subscriptions []json.RawMessage
	connLock      chan struct{} // 1-buffered mutex with timed acquire

	missedHeartbeats int
	reconnectFails   int
}

// NewHub constructs a hub. urlFn builds the dial URL from the current
// token (never logged raw); onFrame is invoked for every decoded frame.
func NewHub(name string, cfg HubConfig, dialer Dialer, urlFn func(token string) (string, error),
	onFrame FrameHandler, bus *eventbus.Bus, registry *tasks.Registry, logger *zap.Logger) *Hub {

	settings := gobreaker.Settings{
		Name:        "stream." + name,
		MaxRequests: 1,
		Interval:    cfg.CircuitWindow,
		Timeout:     cfg.BackoffCap,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.CircuitFailures
		},
	}

	h := &Hub{
		name:     name,
		cfg:      cfg,
		dialer:   dialer,
		urlFn:    urlFn,
		onFrame:  onFrame,
		bus:      bus,
		seq:      &eventbus.Sequencer{},
		registry: registry,
		logger:   logger.With(zap.String("hub", name)),
		breaker:  gobreaker.NewCircuitBreaker(settings),
		state:    Disconnected,
		connLock: make(chan struct{}, 1),
	}
	h.connLock <- struct{}{}
	return h
}

// State returns the hub's current connection state.
func (h *Hub) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Hub) setState(ctx context.Context, to State, cause string) {
	h.mu.Lock()
	from := h.state
	if from == to {
		h.mu.Unlock()
		return
	}
	if !legal(from, to) {
		h.logger.Warn("rejected illegal hub state transition",
			zap.String("from", from.String()), zap.String("to", to.String()))
		h.mu.Unlock()
		return
	}
	h.state = to
	h.mu.Unlock()

	h.logger.Info("hub state changed", zap.String("from", from.String()), zap.String("to", to.String()), zap.String("cause", cause))
	h.bus.Emit(ctx, eventbus.NewConnectionStateChanged(h.seq, h.name, from.String(), to.String(), cause))
}

// Subscribe records a subscription message for replay and sends it on
// the live connection if connected.
func (h *Hub) Subscribe(ctx context.Context, msg json.RawMessage) error {
	h.mu.Lock()
	h.subscriptions = append(h.subscriptions, msg)
	conn := h.conn
	h.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.WriteMessage(1, msg) // websocket.TextMessage == 1
}

// Connect dials the hub and starts its managed reader and heartbeat
// tasks. It is idempotent: calling it while already connected is a no-op.
func (h *Hub) Connect(ctx context.Context, token string) error {
	h.mu.Lock()
	if h.state == Connected || h.state == Connecting {
		h.mu.Unlock()
		return nil
	}
	h.token = token
	h.mu.Unlock()

	h.setState(ctx, Connecting, "connect")
	conn, err := h.dial(ctx, token)
	if err != nil {
		h.setState(ctx, Disconnected, err.Error())
		return err
	}

	h.mu.Lock()
	h.conn = conn
	h.missedHeartbeats = 0
	h.reconnectFails = 0
	subs := append([]json.RawMessage(nil), h.subscriptions...)
	h.mu.Unlock()

	h.setState(ctx, Connected, "dial_succeeded")

	for _, s := range subs {
		_ = conn.WriteMessage(1, s)
	}

	h.registry.Spawn(ctx, "stream."+h.name+".reader", h.readLoop)
	h.registry.Spawn(ctx, "stream."+h.name+".heartbeat", h.heartbeatLoop)
	return nil
}

func (h *Hub) dial(ctx context.Context, token string) (Conn, error) {
	url, err := h.urlFn(token)
	if err != nil {
		return nil, tserrors.Wrap(tserrors.CodeValidation, err, "building hub url")
	}
	result, err := h.breaker.Execute(func() (interface{}, error) {
		return h.dialer.Dial(ctx, url)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, tserrors.New(tserrors.CodeCircuitOpen, fmt.Sprintf("hub %s: reconnect circuit open", h.name))
		}
		return nil, tserrors.Wrap(tserrors.CodeTransientTransport, err, fmt.Sprintf("dialing hub %s", h.name))
	}
	return result.(Conn), nil
}

func (h *Hub) readLoop(ctx context.Context) error {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.HeartbeatDeadline))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			h.onReadError(ctx, err)
			return nil
		}
		h.resetHeartbeat()
		if decErr := h.onFrame(payload); decErr != nil {
			h.logger.Debug("frame rejected", zap.Error(decErr))
		}
	}
}

func (h *Hub) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.HeartbeatDeadline)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.mu.Lock()
			h.missedHeartbeats++
			missed := h.missedHeartbeats
			state := h.state
			h.mu.Unlock()

			if state != Connected && state != Degraded {
				continue
			}
			if missed == 1 {
				h.setState(ctx, Degraded, "heartbeat_missed")
			} else if missed >= 2 {
				h.setState(ctx, Reconnecting, "heartbeat_missed_twice")
				h.scheduleReconnect(ctx)
				return nil
			}
		}
	}
}

func (h *Hub) resetHeartbeat() {
	h.mu.Lock()
	h.missedHeartbeats = 0
	h.mu.Unlock()
}

func (h *Hub) onReadError(ctx context.Context, err error) {
	h.logger.Warn("hub read error", zap.Error(err))
	h.setState(ctx, Reconnecting, err.Error())
	h.scheduleReconnect(ctx)
}

// scheduleReconnect runs the exponential-backoff-with-full-jitter
// reconnect loop as its own managed task so the caller (heartbeat or
// reader) never blocks on it.
func (h *Hub) scheduleReconnect(ctx context.Context) {
	h.registry.Spawn(ctx, "stream."+h.name+".reconnect", func(taskCtx context.Context) error {
		attempt := 0
		for {
			h.mu.Lock()
			token := h.token
			h.mu.Unlock()

			h.setState(taskCtx, Connecting, "reconnect_attempt")
			conn, err := h.dial(taskCtx, token)
			if err == nil {
				h.mu.Lock()
				h.conn = conn
				h.reconnectFails = 0
				subs := append([]json.RawMessage(nil), h.subscriptions...)
				h.mu.Unlock()

				h.setState(taskCtx, Connected, "reconnected")
				for _, s := range subs {
					_ = conn.WriteMessage(1, s)
				}
				h.registry.Spawn(taskCtx, "stream."+h.name+".reader", h.readLoop)
				h.registry.Spawn(taskCtx, "stream."+h.name+".heartbeat", h.heartbeatLoop)
				return nil
			}

			h.mu.Lock()
			h.reconnectFails++
			fails := h.reconnectFails
			h.mu.Unlock()

			if tserrors.Of(err, tserrors.CodeCircuitOpen) {
				h.setState(taskCtx, Disconnected, "circuit_open")
				return nil
			}

			attempt++
			wait := fullJitterBackoff(h.cfg.BackoffBase, h.cfg.BackoffFactor, h.cfg.BackoffCap, attempt)
			h.logger.Info("reconnect failed, backing off",
				zap.Int("attempt", attempt), zap.Int("consecutive_failures", fails), zap.Duration("wait", wait))

			select {
			case <-time.After(wait):
			case <-taskCtx.Done():
				return nil
			}
		}
	})
}

// RotateToken atomically rotates the hub's token: the connection lock is
// acquired with a bounded timeout and held only across a dial that is
// itself bounded by TokenLockTimeout; on failure the prior token and
// connection stay in place.
func (h *Hub) RotateToken(ctx context.Context, newToken string) error {
	select {
	case <-h.connLock:
		defer func() { h.connLock <- struct{}{} }()
	case <-time.After(h.cfg.TokenLockTimeout):
		return tserrors.New(tserrors.CodeTimeout, "rotate token: connection lock timeout")
	case <-ctx.Done():
		return tserrors.Wrap(tserrors.CodeTimeout, ctx.Err(), "rotate token: cancelled")
	}

	h.mu.Lock()
	oldToken := h.token
	oldConn := h.conn
	h.mu.Unlock()

	dialCtx, cancelDial := context.WithTimeout(ctx, h.cfg.TokenLockTimeout)
	newConn, err := h.dial(dialCtx, newToken)
	cancelDial()
	if err != nil {
		return tserrors.Wrap(tserrors.CodeAuthentication, err, "rotate token: dial with new token failed, rolled back")
	}

	h.mu.Lock()
	h.token = newToken
	h.conn = newConn
	h.mu.Unlock()

	if oldConn != nil {
		_ = oldConn.Close()
	}
	h.registry.Spawn(ctx, "stream."+h.name+".reader", h.readLoop)
	h.registry.Spawn(ctx, "stream."+h.name+".heartbeat", h.heartbeatLoop)

	_ = oldToken // retained only for rollback path above; nothing further to log (token never logged)
	return nil
}

// Disconnect cancels reads/reconnects and drains within DrainDeadline.
func (h *Hub) Disconnect(ctx context.Context) {
	h.mu.Lock()
	conn := h.conn
	h.conn = nil
	h.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	h.setState(ctx, Disconnected, "disconnect")
}

func fullJitterBackoff(base time.Duration, factor float64, cap time.Duration, attempt int) time.Duration {
	d := float64(base)
	for i := 1; i < attempt; i++ {
		d *= factor
	}
	if d > float64(cap) {
		d = float64(cap)
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}
