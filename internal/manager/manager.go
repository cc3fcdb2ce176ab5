package manager

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"brewprint/internal/config"
	"brewprint/internal/escpos"
	"brewprint/internal/imaging"
	"brewprint/internal/metrics"
	"brewprint/internal/order"
	"brewprint/internal/printer"
	"brewprint/internal/tspl"
)

// Role is a logical printer in the shop.
type Role string

const (
	RoleLabel   Role = config.RoleLabel
	RoleKitchen Role = config.RoleKitchen
	RoleReceipt Role = config.RoleReceipt
)

// Roles lists every role in display order.
var Roles = []Role{RoleLabel, RoleKitchen, RoleReceipt}

var (
	ErrUnknownRole = errors.New("unknown printer role")
	ErrClosed      = errors.New("printer manager closed")
)

// Encoder turns a job into the command streams one role prints. Each
// stream is complete on its own and written in a single transport call.
type Encoder func(job order.PrintJob) ([][]byte, error)

// Printer is the encoder and connection pair of one role.
type Printer struct {
	Role   Role
	conn   *printer.ConnectionManager
	encode Encoder

	// one in-flight job per role
	slot chan struct{}
}

// Connection exposes the role's connection state machine.
func (p *Printer) Connection() *printer.ConnectionManager {
	return p.conn
}

// Result reports how a print job was satisfied.
type Result struct {
	Role       Role
	JobID      uuid.UUID
	Connection printer.Method // how the session was obtained
	Delivery   printer.Method // how the bytes reached the printer
	Streams    int
	Bytes      int
	Duration   time.Duration
}

// TransportFactory builds the transport for a role.
type TransportFactory func(role Role) (printer.Transport, error)

// Manager owns one Printer per role, created on first use.
type Manager struct {
	cfg       config.Config
	store     printer.Store
	logger    *zap.Logger
	factory   TransportFactory
	chooser   printer.Chooser
	status    func(Role, string)
	sleep     printer.Sleeper
	bluetooth func() bool

	centralOnce sync.Once
	central     printer.Central

	mu       sync.Mutex
	printers map[Role]*Printer
	closed   bool
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTransportFactory replaces the config-driven transport selection.
func WithTransportFactory(f TransportFactory) Option {
	return func(m *Manager) { m.factory = f }
}

// WithChooser lets the user pick among discovered wireless printers.
func WithChooser(c printer.Chooser) Option {
	return func(m *Manager) { m.chooser = c }
}

// WithStatus receives progress text per role.
func WithStatus(fn func(Role, string)) Option {
	return func(m *Manager) { m.status = fn }
}

// WithSleeper replaces the retry wait.
func WithSleeper(s printer.Sleeper) Option {
	return func(m *Manager) { m.sleep = s }
}

// WithBluetoothProbe replaces the host capability probe.
func WithBluetoothProbe(fn func() bool) Option {
	return func(m *Manager) { m.bluetooth = fn }
}

// New creates a Manager. Nothing is opened until a role is used.
func New(cfg config.Config, store printer.Store, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg,
		store:     store,
		logger:    zap.NewNop(),
		bluetooth: printer.BluetoothAvailable,
		printers:  make(map[Role]*Printer),
	}
	for _, o := range opts {
		o(m)
	}
	if m.factory == nil {
		m.factory = m.defaultTransport
	}
	return m
}

func (m *Manager) defaultTransport(role Role) (printer.Transport, error) {
	pc, ok := m.cfg.Printers[string(role)]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no printer configured", ErrUnknownRole, role)
	}
	logger := m.logger.With(zap.String("role", string(role)))
	switch pc.Transport {
	case config.TransportBluetooth:
		// the HCI device is shared by every wireless role
		m.centralOnce.Do(func() { m.central = printer.NewHCICentral() })
		return printer.NewGATTTransport(m.central, m.cfg.GATTConfig(string(role)), m.chooser, logger), nil
	case config.TransportDirect:
		return printer.NewDirectTransport(m.cfg.DirectConfig(string(role)), logger), nil
	}
	return nil, fmt.Errorf("printer %s: unknown transport %q", role, pc.Transport)
}

func (m *Manager) encoderFor(role Role) Encoder {
	switch role {
	case RoleLabel:
		stock := m.cfg.Stock()
		return func(job order.PrintJob) ([][]byte, error) {
			return encodeLabels(stock, job)
		}
	case RoleKitchen:
		opts := m.cfg.ReceiptOptions()
		return func(job order.PrintJob) ([][]byte, error) {
			b, err := escpos.BuildKitchenTicket(job, opts)
			return [][]byte{b}, err
		}
	case RoleReceipt:
		opts := m.cfg.ReceiptOptions()
		return func(job order.PrintJob) ([][]byte, error) {
			b, err := escpos.BuildReceipt(job, opts)
			return [][]byte{b}, err
		}
	}
	return nil
}

// encodeLabels prints one label per line item, quantity as copies.
func encodeLabels(stock tspl.Stock, job order.PrintJob) ([][]byte, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if len(job.Lines) == 0 {
		return nil, fmt.Errorf("%w: no line items to label", order.ErrInvalidJob)
	}
	out := make([][]byte, 0, len(job.Lines))
	for _, l := range job.Lines {
		b, _, err := tspl.BuildLabel(stock, job.OrderReference, l.Name, l.Quantity)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// GetOrCreate returns the role's Printer, building its transport on
// first use.
func (m *Manager) GetOrCreate(role Role) (*Printer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if p, ok := m.printers[role]; ok {
		return p, nil
	}

	encode := m.encoderFor(role)
	if encode == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	t, err := m.factory(role)
	if err != nil {
		return nil, err
	}

	opts := []printer.Option{
		printer.WithLogger(m.logger),
		printer.WithRetryPolicy(m.cfg.RetryPolicy()),
	}
	if m.sleep != nil {
		opts = append(opts, printer.WithSleeper(m.sleep))
	}
	if m.status != nil {
		opts = append(opts, printer.WithStatus(func(s string) { m.status(role, s) }))
	}

	p := &Printer{
		Role:   role,
		conn:   printer.NewConnectionManager(string(role), t, m.store, opts...),
		encode: encode,
		slot:   make(chan struct{}, 1),
	}
	m.printers[role] = p
	return p, nil
}

type outcome struct {
	res Result
	err error
}

// PrintJob encodes job for role, ensures a live session and writes it.
// Jobs for one role run one at a time; a queued caller gives up with
// ErrPrinterBusy when ctx ends first. Once writing has started the job
// runs to completion even if ctx ends; the caller then gets ErrTimeout
// and the outcome is only logged.
func (m *Manager) PrintJob(ctx context.Context, role Role, job order.PrintJob) (Result, error) {
	p, err := m.GetOrCreate(role)
	if err != nil {
		return Result{}, err
	}

	streams, err := p.encode(job)
	if err != nil {
		return Result{}, fmt.Errorf("encode %s job: %w", role, err)
	}

	select {
	case p.slot <- struct{}{}:
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %s: %w", printer.ErrPrinterBusy, role, ctx.Err())
	}
	if m.isClosed() {
		<-p.slot
		return Result{}, ErrClosed
	}

	res := Result{Role: role, JobID: uuid.New()}
	logger := m.logger.With(zap.String("role", string(role)), zap.String("job_id", res.JobID.String()))

	done := make(chan outcome, 1)
	go func() {
		defer func() { <-p.slot }()
		start := time.Now()
		r, err := m.run(ctx, p, res, streams)
		r.Duration = time.Since(start)

		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
			logger.Error("print job failed", zap.Duration("duration", r.Duration), zap.Error(err))
		} else {
			logger.Info("print job done",
				zap.String("connection", string(r.Connection)),
				zap.String("delivery", string(r.Delivery)),
				zap.Int("bytes", r.Bytes),
				zap.Duration("duration", r.Duration))
		}
		metrics.ObservePrintJob(string(role), result, r.Duration)
		done <- outcome{res: r, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		logger.Warn("caller stopped waiting, job continues", zap.Error(ctx.Err()))
		return res, fmt.Errorf("%w: %s job %s: %w", printer.ErrTimeout, role, res.JobID, ctx.Err())
	}
}

// run connects under ctx, then writes every stream detached from it so
// a stream is never cut short.
func (m *Manager) run(ctx context.Context, p *Printer, res Result, streams [][]byte) (Result, error) {
	method, err := p.conn.Ensure(ctx)
	if err != nil {
		return res, err
	}
	res.Connection = method

	wctx := context.WithoutCancel(ctx)
	for _, s := range streams {
		delivery, err := p.conn.Write(wctx, s)
		if err != nil {
			return res, err
		}
		res.Delivery = delivery
		res.Streams++
		res.Bytes += len(s)
	}
	return res, nil
}

// Pair runs pairing for role without connecting.
func (m *Manager) Pair(ctx context.Context, role Role) (printer.Method, error) {
	p, err := m.GetOrCreate(role)
	if err != nil {
		return "", err
	}
	return p.conn.Pair(ctx)
}

// Connect pairs if needed and opens role's session.
func (m *Manager) Connect(ctx context.Context, role Role) (printer.Method, error) {
	p, err := m.GetOrCreate(role)
	if err != nil {
		return "", err
	}
	return p.conn.Ensure(ctx)
}

// Disconnect closes role's session if one was ever created.
func (m *Manager) Disconnect(role Role) error {
	m.mu.Lock()
	p, ok := m.printers[role]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return p.conn.Disconnect()
}

// State returns role's connection state; unused roles are Disconnected.
func (m *Manager) State(role Role) printer.ConnectionState {
	m.mu.Lock()
	p, ok := m.printers[role]
	m.mu.Unlock()
	if !ok {
		return printer.ConnectionState{Kind: printer.StateDisconnected}
	}
	return p.conn.State()
}

// IsBluetoothCapable reports whether wireless printers can be used on
// this host.
func (m *Manager) IsBluetoothCapable() bool {
	return m.bluetooth()
}

// PreviewLabel renders the label an item would get, as the print head
// would burn it.
func (m *Manager) PreviewLabel(orderRef, itemName string) (image.Image, tspl.Layout, error) {
	return imaging.Preview(m.cfg.Stock().Size, orderRef, itemName)
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close waits for in-flight jobs and disconnects every role.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	printers := make([]*Printer, 0, len(m.printers))
	for _, p := range m.printers {
		printers = append(printers, p)
	}
	m.mu.Unlock()

	var errs []error
	for _, p := range printers {
		p.slot <- struct{}{}
		if err := p.conn.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect %s: %w", p.Role, err))
		}
		<-p.slot
	}
	return errors.Join(errs...)
}
