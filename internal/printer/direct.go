package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// EndpointKind selects how a direct endpoint is written to.
type EndpointKind string

const (
	EndpointSerial EndpointKind = "serial"
	EndpointFile   EndpointKind = "file"
	EndpointUSB    EndpointKind = "usb"
	EndpointQueue  EndpointKind = "queue"
)

// Endpoint is a locally attached printer target.
type Endpoint struct {
	Kind        EndpointKind
	Path        string // port name, device path, VID:PID or queue name
	Description string // product or queue description used for matching
}

func (e Endpoint) String() string {
	return string(e.Kind) + ":" + e.Path
}

// Handle converts e into a storable device handle.
func (e Endpoint) Handle() DeviceHandle {
	name := e.Description
	if name == "" {
		name = e.Path
	}
	return DeviceHandle{ID: e.String(), Name: name}
}

// ParseEndpoint reads "kind:path". Bare paths are classified by shape:
// line-printer nodes are device files, COM and tty names are serial ports.
func ParseEndpoint(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Endpoint{}, fmt.Errorf("%w: empty endpoint", ErrNoDeviceFound)
	}
	if kind, path, ok := strings.Cut(s, ":"); ok {
		switch EndpointKind(strings.ToLower(kind)) {
		case EndpointSerial, EndpointFile, EndpointUSB, EndpointQueue:
			if path == "" {
				return Endpoint{}, fmt.Errorf("%w: endpoint %q has no target", ErrNoDeviceFound, s)
			}
			return Endpoint{Kind: EndpointKind(strings.ToLower(kind)), Path: path}, nil
		}
	}

	upper := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(s, "/dev/usb/lp"), strings.HasPrefix(s, "/dev/lp"):
		return Endpoint{Kind: EndpointFile, Path: s}, nil
	case strings.HasPrefix(upper, "COM"), strings.HasPrefix(upper, `\\.\COM`),
		strings.HasPrefix(s, "/dev/tty"), strings.HasPrefix(s, "/dev/cu."), strings.HasPrefix(s, "/dev/rfcomm"):
		return Endpoint{Kind: EndpointSerial, Path: s}, nil
	case strings.HasPrefix(s, "/"):
		return Endpoint{Kind: EndpointFile, Path: s}, nil
	}
	return Endpoint{Kind: EndpointQueue, Path: s}, nil
}

// DefaultKeywords match the product names of common receipt printers.
var DefaultKeywords = []string{"thermal", "pos", "receipt", "58", "80"}

// DirectConfig tunes a DirectTransport.
type DirectConfig struct {
	Override string   // explicit endpoint, checked before any scan
	Keywords []string // case-insensitive name filters
	BaudRate int
	Queue    string // spooler queue used when raw writes are unsupported
}

// Spooler hands raw jobs to the operating system print queue.
type Spooler interface {
	Queues(ctx context.Context) ([]string, error)
	Submit(ctx context.Context, queue string, data []byte) error
}

// Lister enumerates candidate endpoints.
type Lister func(ctx context.Context) ([]Endpoint, error)

// Opener opens a raw byte stream to an endpoint.
type Opener func(e Endpoint, baud int) (io.WriteCloser, error)

// DirectTransport writes command streams to a cable-attached printer or
// the OS spooler.
type DirectTransport struct {
	cfg     DirectConfig
	list    Lister
	open    Opener
	exists  func(Endpoint) bool
	spooler Spooler
	logger  *zap.Logger

	mu       sync.Mutex
	endpoint Endpoint
	w        io.WriteCloser
	ready    bool
}

// NewDirectTransport uses the host's endpoint listing, opener and
// spooler.
func NewDirectTransport(cfg DirectConfig, logger *zap.Logger) *DirectTransport {
	sp := NewSpooler()
	return newDirectTransport(cfg, func(ctx context.Context) ([]Endpoint, error) {
		return ListCandidates(ctx, sp)
	}, OpenEndpoint, EndpointExists, sp, logger)
}

func newDirectTransport(cfg DirectConfig, list Lister, open Opener, exists func(Endpoint) bool, sp Spooler, logger *zap.Logger) *DirectTransport {
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = DefaultKeywords
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectTransport{
		cfg:     cfg,
		list:    list,
		open:    open,
		exists:  exists,
		spooler: sp,
		logger:  logger,
	}
}

func (d *DirectTransport) matches(e Endpoint) bool {
	// a printer class device node is a printer whatever its name
	if e.Kind == EndpointFile {
		return true
	}
	text := strings.ToLower(e.Description + " " + e.Path)
	for _, k := range d.cfg.Keywords {
		if strings.Contains(text, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// Discover resolves the override if set, otherwise the first listed
// endpoint matching the keywords.
func (d *DirectTransport) Discover(ctx context.Context) (DeviceHandle, error) {
	if d.cfg.Override != "" {
		e, err := ParseEndpoint(d.cfg.Override)
		if err != nil {
			return DeviceHandle{}, err
		}
		return e.Handle(), nil
	}

	candidates, err := d.list(ctx)
	if err != nil {
		return DeviceHandle{}, fmt.Errorf("list endpoints: %w", err)
	}
	for _, e := range candidates {
		if d.matches(e) {
			d.logger.Debug("direct endpoint matched", zap.String("endpoint", e.String()), zap.String("description", e.Description))
			return e.Handle(), nil
		}
	}
	if d.cfg.Queue != "" {
		return Endpoint{Kind: EndpointQueue, Path: d.cfg.Queue}.Handle(), nil
	}
	return DeviceHandle{}, fmt.Errorf("%w: no endpoint matched %v among %d candidates", ErrNoDeviceFound, d.cfg.Keywords, len(candidates))
}

// Reconnect succeeds when the stored endpoint is still present.
func (d *DirectTransport) Reconnect(_ context.Context, h DeviceHandle) (DeviceHandle, error) {
	e, err := ParseEndpoint(h.ID)
	if err != nil {
		return DeviceHandle{}, err
	}
	if e.Kind != EndpointQueue && !d.exists(e) {
		return DeviceHandle{}, fmt.Errorf("%w: %s is gone", ErrNoDeviceFound, e)
	}
	return h, nil
}

// Open opens the endpoint's byte stream. Queue endpoints need no stream.
func (d *DirectTransport) Open(_ context.Context, h DeviceHandle) error {
	e, err := ParseEndpoint(h.ID)
	if err != nil {
		return err
	}

	var w io.WriteCloser
	if e.Kind != EndpointQueue {
		w, err = d.open(e, d.cfg.BaudRate)
		switch {
		case err == nil:
		case errors.Is(err, errors.ErrUnsupported) && d.spoolQueue(e) != "":
			// whatever the opener returned alongside the error is unusable
			w = nil
			d.logger.Info("raw access unsupported, using spooler", zap.String("endpoint", e.String()), zap.String("queue", d.spoolQueue(e)))
		default:
			return classifyOpenError(e, err)
		}
	}

	d.mu.Lock()
	prev := d.w
	d.endpoint = e
	d.w = w
	d.ready = true
	d.mu.Unlock()

	if prev != nil && prev != w {
		if err := prev.Close(); err != nil {
			d.logger.Debug("close previous stream", zap.Error(err))
		}
	}
	return nil
}

func (d *DirectTransport) spoolQueue(e Endpoint) string {
	if e.Kind == EndpointQueue {
		return e.Path
	}
	if d.spooler == nil {
		return ""
	}
	return d.cfg.Queue
}

func classifyOpenError(e Endpoint, err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrNoDeviceFound):
		return fmt.Errorf("open %s: %w", e, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("open %s: %w: %v", e, ErrPermissionDenied, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("open %s: %w: %v", e, ErrNoDeviceFound, err)
	}
	return fmt.Errorf("open %s: %w", e, err)
}

// Write sends data in one raw transfer, or as one raw spooler job when
// the endpoint cannot take raw writes.
func (d *DirectTransport) Write(ctx context.Context, data []byte) (Method, error) {
	d.mu.Lock()
	e, w, ok := d.endpoint, d.w, d.ready
	d.mu.Unlock()
	if !ok {
		return "", ErrNotConnected
	}

	if w != nil {
		n, err := w.Write(data)
		if err == nil && n < len(data) {
			err = io.ErrShortWrite
		}
		if err == nil {
			return methodFor(e.Kind), nil
		}
		if !errors.Is(err, errors.ErrUnsupported) || d.spoolQueue(e) == "" {
			d.mu.Lock()
			d.ready = false
			d.mu.Unlock()
			return "", fmt.Errorf("%w: %s: wrote %d of %d bytes: %v", ErrTransportInterrupted, e, n, len(data), err)
		}
		d.logger.Info("raw write unsupported, falling back to spooler", zap.String("endpoint", e.String()))
	}

	queue := d.spoolQueue(e)
	if queue == "" || d.spooler == nil {
		return "", fmt.Errorf("%w: no spooler queue for %s", ErrUnsupportedEnvironment, e)
	}
	if err := d.spooler.Submit(ctx, queue, data); err != nil {
		return "", fmt.Errorf("spool to %s: %w", queue, err)
	}
	return MethodSpooler, nil
}

func methodFor(k EndpointKind) Method {
	switch k {
	case EndpointSerial:
		return MethodSerial
	case EndpointUSB:
		return MethodUSB
	case EndpointQueue:
		return MethodSpooler
	}
	return MethodDeviceFile
}

func (d *DirectTransport) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

func (d *DirectTransport) Close() error {
	d.mu.Lock()
	w := d.w
	d.w = nil
	d.ready = false
	d.mu.Unlock()

	if w != nil {
		return w.Close()
	}
	return nil
}
