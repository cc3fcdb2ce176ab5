package printer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"brewprint/internal/metrics"
)

// RetryPolicy bounds connection attempts.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy makes three attempts one second apart.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Delay: time.Second}

// ConnectionManager owns pairing, connection retries and the connection
// state of one printer role. Pair, Connect, Ensure, Write and Disconnect
// are serialized; State and Handle may be called at any time.
type ConnectionManager struct {
	role      string
	transport Transport
	store     Store
	policy    RetryPolicy
	sleep     Sleeper
	logger    *zap.Logger
	status    StatusFunc

	opMu sync.Mutex

	mu     sync.Mutex
	state  ConnectionState
	handle DeviceHandle
}

// Option configures a ConnectionManager.
type Option func(*ConnectionManager)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *ConnectionManager) {
		if p.MaxAttempts < 1 {
			p.MaxAttempts = 1
		}
		c.policy = p
	}
}

func WithSleeper(s Sleeper) Option {
	return func(c *ConnectionManager) { c.sleep = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *ConnectionManager) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithStatus(fn StatusFunc) Option {
	return func(c *ConnectionManager) { c.status = fn }
}

// NewConnectionManager creates the state machine for role, starting Disconnected.
func NewConnectionManager(role string, t Transport, store Store, opts ...Option) *ConnectionManager {
	c := &ConnectionManager{
		role:      role,
		transport: t,
		store:     store,
		policy:    DefaultRetryPolicy,
		sleep:     SleepContext,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With(zap.String("role", role))
	if n, ok := t.(disconnectNotifier); ok {
		n.SetDisconnectHandler(c.transportDropped)
	}
	return c
}

// State returns the current connection state.
func (c *ConnectionManager) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Handle returns the device paired in this process, if any.
func (c *ConnectionManager) Handle() (DeviceHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle, !c.handle.IsZero()
}

func (c *ConnectionManager) setState(kind StateKind, reason error) {
	c.mu.Lock()
	prev := c.state
	c.state = ConnectionState{Kind: kind, Reason: reason}
	c.mu.Unlock()

	if prev.Kind != kind {
		c.logger.Debug("connection state", zap.Stringer("from", prev.Kind), zap.Stringer("to", kind))
	}
}

func (c *ConnectionManager) setHandle(h DeviceHandle) {
	c.mu.Lock()
	c.handle = h
	c.mu.Unlock()
}

func (c *ConnectionManager) report(format string, args ...any) {
	if c.status != nil {
		c.status(fmt.Sprintf(format, args...))
	}
}

func (c *ConnectionManager) transportDropped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Kind == StateConnected {
		c.state = ConnectionState{Kind: StateDisconnected}
		c.logger.Info("printer link lost")
	}
}

// closeStale ends a transport session the state machine no longer
// counts as Connected.
func (c *ConnectionManager) closeStale(reason string) {
	if !c.transport.IsConnected() {
		return
	}
	c.logger.Info("closing previous session", zap.String("reason", reason))
	if err := c.transport.Close(); err != nil {
		c.logger.Debug("close previous session", zap.Error(err))
	}
}

// Pair obtains a device handle: a stored handle is tried silently
// first, then interactive discovery. The new handle is persisted and
// the role is left Disconnected, ready for Connect.
func (c *ConnectionManager) Pair(ctx context.Context) (Method, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.pair(ctx)
}

func (c *ConnectionManager) pair(ctx context.Context) (Method, error) {
	// pairing may pick another device, so a live session is ended first
	c.closeStale("pairing")
	c.setState(StatePairing, nil)
	key := HandleKey(c.role)

	stored, ok, err := LoadHandle(c.store, key)
	if err != nil {
		c.logger.Warn("stored device handle unreadable", zap.Error(err))
	}
	if ok {
		c.report("Reconnecting to %s...", stored)
		h, err := c.transport.Reconnect(ctx, stored)
		if err == nil {
			if h.IsZero() {
				h = stored
			}
			c.setHandle(h)
			if h != stored {
				c.persist(key, h)
			}
			c.setState(StateDisconnected, nil)
			c.logger.Info("silent reconnect", zap.String("device", h.String()))
			return MethodSilentReconnect, nil
		}
		c.logger.Info("silent reconnect failed, starting discovery", zap.String("device", stored.String()), zap.Error(err))
	}

	c.report("Searching for printer...")
	h, err := c.transport.Discover(ctx)
	if err != nil {
		c.setState(StateFailed, err)
		return "", fmt.Errorf("pair %s printer: %w", c.role, err)
	}
	c.setHandle(h)
	c.persist(key, h)
	c.setState(StateDisconnected, nil)
	c.logger.Info("paired", zap.String("device", h.String()))
	c.report("Paired with %s", h)
	return MethodFreshPairing, nil
}

func (c *ConnectionManager) persist(key string, h DeviceHandle) {
	if err := SaveHandle(c.store, key, h); err != nil {
		c.logger.Warn("failed to persist device handle", zap.String("device", h.String()), zap.Error(err))
	}
}

// Connect opens a session with the paired device, retrying per the
// policy. It returns immediately when already connected.
func (c *ConnectionManager) Connect(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.connect(ctx)
}

func (c *ConnectionManager) connect(ctx context.Context) error {
	if c.State().Kind == StateConnected && c.transport.IsConnected() {
		return nil
	}
	h, ok := c.Handle()
	if !ok {
		return fmt.Errorf("connect %s printer: %w: not paired", c.role, ErrNoDeviceFound)
	}
	c.closeStale("connect")

	var last error
	attempts := 0
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		attempts = attempt
		c.setState(StateConnecting, nil)
		c.report("Connecting to %s (attempt %d/%d)...", h, attempt, c.policy.MaxAttempts)

		err := c.transport.Open(ctx, h)
		if err == nil {
			metrics.IncConnectAttempt(c.role, metrics.ResultSuccess)
			c.setState(StateConnected, nil)
			c.logger.Info("connected", zap.String("device", h.String()), zap.Int("attempt", attempt))
			c.report("Connected to %s", h)
			return nil
		}

		metrics.IncConnectAttempt(c.role, metrics.ResultError)
		last = err
		c.logger.Warn("connect attempt failed", zap.String("device", h.String()), zap.Int("attempt", attempt), zap.Error(err))
		// a failed open can leave a half-built session behind
		if cerr := c.transport.Close(); cerr != nil {
			c.logger.Debug("close after failed attempt", zap.Error(cerr))
		}

		if ctx.Err() != nil {
			last = errors.Join(err, ctx.Err())
			break
		}
		if attempt < c.policy.MaxAttempts {
			if err := c.sleep(ctx, c.policy.Delay); err != nil {
				last = errors.Join(last, err)
				break
			}
		}
	}

	cerr := &ConnectError{Attempts: attempts, Err: last}
	c.setState(StateFailed, cerr)
	c.report("Connection failed: %v", last)
	return cerr
}

// Ensure makes sure a live session exists, pairing first when no
// device is known yet, and reports how the session was obtained.
func (c *ConnectionManager) Ensure(ctx context.Context) (Method, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.State().Kind == StateConnected {
		if c.transport.IsConnected() {
			return MethodExistingSession, nil
		}
		c.setState(StateDisconnected, nil)
	}

	method := MethodKnownDevice
	if _, ok := c.Handle(); !ok {
		m, err := c.pair(ctx)
		if err != nil {
			return "", err
		}
		method = m
	}
	if err := c.connect(ctx); err != nil {
		return "", err
	}
	return method, nil
}

// Write sends a complete command stream over the live session. A
// transport error marks the role Failed.
func (c *ConnectionManager) Write(ctx context.Context, data []byte) (Method, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.State().Kind != StateConnected {
		return "", ErrNotConnected
	}
	m, err := c.transport.Write(ctx, data)
	if err != nil {
		c.setState(StateFailed, err)
		c.logger.Error("write failed", zap.Int("bytes", len(data)), zap.Error(err))
		return "", err
	}
	metrics.AddBytesWritten(c.role, string(m), len(data))
	return m, nil
}

// Disconnect closes the session. The paired handle is kept.
func (c *ConnectionManager) Disconnect() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	err := c.transport.Close()
	c.setState(StateDisconnected, nil)
	return err
}
