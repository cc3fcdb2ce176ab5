package printer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMTU is used when the link does not report one.
	DefaultMTU = 100

	// DefaultChunkDelay lets the printer drain its receive buffer.
	DefaultChunkDelay = 20 * time.Millisecond

	DefaultScanTimeout = 10 * time.Second
)

// Central is the host side of a BLE link.
type Central interface {
	Enable() error
	// Scan reports advertising devices until found returns true or ctx ends.
	Scan(ctx context.Context, found func(DeviceHandle) bool) error
	Connect(ctx context.Context, h DeviceHandle) (Peripheral, error)
	// OnDisconnect registers fn to run when the device with id drops.
	OnDisconnect(id string, fn func())
}

// Chooser lets a user pick among discovered printers. Returning
// ErrPairingDenied aborts pairing.
type Chooser func(ctx context.Context, found []DeviceHandle) (DeviceHandle, error)

// GATTConfig tunes a GATTTransport.
type GATTConfig struct {
	Keywords    []string    // advertised name filters, case-insensitive
	Candidates  []Candidate // write endpoints, in preference order
	MTU         int         // overrides the negotiated value when > 0
	ChunkDelay  time.Duration
	ScanTimeout time.Duration
}

// GATTTransport sends print data to a BLE printer in MTU-sized chunks.
type GATTTransport struct {
	central Central
	cfg     GATTConfig
	choose  Chooser
	sleep   Sleeper
	logger  *zap.Logger

	mu           sync.Mutex
	peripheral   Peripheral
	writer       Characteristic
	chunk        int
	connected    bool
	session      uint64 // bumped per open and close; stale link-loss callbacks compare it
	onDisconnect func()
}

// NewGATTTransport wraps central. A nil chooser takes the first match.
func NewGATTTransport(central Central, cfg GATTConfig, choose Chooser, logger *zap.Logger) *GATTTransport {
	if len(cfg.Candidates) == 0 {
		cfg.Candidates = DefaultCandidates
	}
	if cfg.ChunkDelay <= 0 {
		cfg.ChunkDelay = DefaultChunkDelay
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = DefaultScanTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GATTTransport{
		central: central,
		cfg:     cfg,
		choose:  choose,
		sleep:   SleepContext,
		logger:  logger,
	}
}

// SetSleeper replaces the inter-chunk wait, for tests.
func (g *GATTTransport) SetSleeper(s Sleeper) {
	g.sleep = s
}

func (g *GATTTransport) SetDisconnectHandler(fn func()) {
	g.mu.Lock()
	g.onDisconnect = fn
	g.mu.Unlock()
}

func (g *GATTTransport) matches(name string) bool {
	if len(g.cfg.Keywords) == 0 {
		return name != ""
	}
	lower := strings.ToLower(name)
	for _, k := range g.cfg.Keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// Discover scans for advertising printers. With a chooser, every match
// seen before the scan timeout is offered; otherwise the first wins.
func (g *GATTTransport) Discover(ctx context.Context) (DeviceHandle, error) {
	if err := g.central.Enable(); err != nil {
		return DeviceHandle{}, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, g.cfg.ScanTimeout)
	defer cancel()

	var found []DeviceHandle
	seen := make(map[string]bool)
	err := g.central.Scan(scanCtx, func(h DeviceHandle) bool {
		if seen[h.ID] || !g.matches(h.Name) {
			return false
		}
		seen[h.ID] = true
		found = append(found, h)
		return g.choose == nil
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return DeviceHandle{}, fmt.Errorf("scan: %w", err)
	}
	if ctx.Err() != nil {
		return DeviceHandle{}, ctx.Err()
	}
	if len(found) == 0 {
		return DeviceHandle{}, fmt.Errorf("%w: no advertising printer matched %v", ErrNoDeviceFound, g.cfg.Keywords)
	}
	if g.choose == nil {
		return found[0], nil
	}
	h, err := g.choose(ctx, found)
	if err != nil {
		return DeviceHandle{}, err
	}
	if h.IsZero() {
		return DeviceHandle{}, ErrPairingDenied
	}
	return h, nil
}

// Reconnect confirms the stored device is advertising, without prompting.
func (g *GATTTransport) Reconnect(ctx context.Context, h DeviceHandle) (DeviceHandle, error) {
	if err := g.central.Enable(); err != nil {
		return DeviceHandle{}, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, g.cfg.ScanTimeout)
	defer cancel()

	var match DeviceHandle
	err := g.central.Scan(scanCtx, func(seen DeviceHandle) bool {
		if !strings.EqualFold(seen.ID, h.ID) {
			return false
		}
		match = seen
		return true
	})
	if match.IsZero() {
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return DeviceHandle{}, fmt.Errorf("scan: %w", err)
		}
		return DeviceHandle{}, fmt.Errorf("%w: %s not advertising", ErrNoDeviceFound, h)
	}
	if match.Name == "" {
		match.Name = h.Name
	}
	return match, nil
}

// Open connects and resolves the write characteristic from scratch.
func (g *GATTTransport) Open(ctx context.Context, h DeviceHandle) error {
	if err := g.central.Enable(); err != nil {
		return err
	}
	// a session left from an earlier open is never reused
	if err := g.Close(); err != nil {
		g.logger.Debug("close previous gatt session", zap.Error(err))
	}

	p, err := g.central.Connect(ctx, h)
	if err != nil {
		return fmt.Errorf("connect %s: %w", h, err)
	}

	writer, err := ResolveWriter(p, g.cfg.Candidates)
	if err != nil {
		p.Disconnect()
		return err
	}

	chunk := g.cfg.MTU
	if chunk <= 0 {
		chunk = writer.MTU()
	}
	if chunk <= 0 {
		chunk = DefaultMTU
	}

	g.mu.Lock()
	g.session++
	session := g.session
	g.peripheral = p
	g.writer = writer
	g.chunk = chunk
	g.connected = true
	g.mu.Unlock()

	g.central.OnDisconnect(h.ID, func() { g.dropped(session) })

	g.logger.Info("gatt session open",
		zap.String("device", h.String()),
		zap.String("characteristic", writer.UUID()),
		zap.Int("chunk", chunk))
	return nil
}

func (g *GATTTransport) dropped(session uint64) {
	g.mu.Lock()
	if session != g.session || !g.connected {
		g.mu.Unlock()
		return
	}
	g.connected = false
	fn := g.onDisconnect
	g.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Write sends data in chunks of at most the MTU with a pause between
// chunks. Once started a write is not abandoned part way.
func (g *GATTTransport) Write(_ context.Context, data []byte) (Method, error) {
	g.mu.Lock()
	writer, chunk, connected := g.writer, g.chunk, g.connected
	g.mu.Unlock()

	if writer == nil || !connected {
		return "", ErrNotConnected
	}

	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		if err := writer.WriteWithoutResponse(data[off:end]); err != nil {
			if cerr := g.Close(); cerr != nil {
				g.logger.Debug("close after failed write", zap.Error(cerr))
			}
			return "", fmt.Errorf("%w: after %d of %d bytes: %v", ErrTransportInterrupted, off, len(data), err)
		}
		if end < len(data) {
			g.sleep(context.Background(), g.cfg.ChunkDelay)
		}
	}
	return MethodGATT, nil
}

func (g *GATTTransport) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

func (g *GATTTransport) Close() error {
	g.mu.Lock()
	p := g.peripheral
	if p != nil {
		g.session++
	}
	g.peripheral = nil
	g.writer = nil
	g.connected = false
	g.mu.Unlock()

	if p != nil {
		return p.Disconnect()
	}
	return nil
}
