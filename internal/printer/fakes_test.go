package printer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// fakeTransport scripts each Transport call.
type fakeTransport struct {
	mu sync.Mutex

	discoverHandle DeviceHandle
	discoverErr    error
	reconnectErr   error
	openErrs       []error // consumed per Open; last one repeats
	writeErr       error

	discovers  int
	reconnects int
	opens      int
	closes     int
	written    [][]byte
	connected  bool
	onDrop     func()
}

func (f *fakeTransport) Discover(context.Context) (DeviceHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discovers++
	return f.discoverHandle, f.discoverErr
}

func (f *fakeTransport) Reconnect(_ context.Context, h DeviceHandle) (DeviceHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	if f.reconnectErr != nil {
		return DeviceHandle{}, f.reconnectErr
	}
	return h, nil
}

func (f *fakeTransport) Open(context.Context, DeviceHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	var err error
	if len(f.openErrs) > 0 {
		err = f.openErrs[0]
		if len(f.openErrs) > 1 {
			f.openErrs = f.openErrs[1:]
		}
	}
	f.connected = err == nil
	return err
}

func (f *fakeTransport) Write(_ context.Context, data []byte) (Method, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		f.connected = false
		return "", f.writeErr
	}
	f.written = append(f.written, append([]byte(nil), data...))
	return MethodSerial, nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.connected = false
	return nil
}

func (f *fakeTransport) SetDisconnectHandler(fn func()) {
	f.onDrop = fn
}

func (f *fakeTransport) drop() {
	f.mu.Lock()
	f.connected = false
	fn := f.onDrop
	f.mu.Unlock()
	fn()
}

// recordingSleeper returns immediately and remembers every wait.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

// fakeCharacteristic records chunks written to it.
type fakeCharacteristic struct {
	uuid     string
	writable bool
	mtu      int
	failAt   int // fail the nth write (1-based); 0 never fails

	chunks [][]byte
}

func (c *fakeCharacteristic) UUID() string   { return c.uuid }
func (c *fakeCharacteristic) Writable() bool { return c.writable }
func (c *fakeCharacteristic) MTU() int       { return c.mtu }

func (c *fakeCharacteristic) WriteWithoutResponse(p []byte) error {
	if c.failAt > 0 && len(c.chunks)+1 == c.failAt {
		return errors.New("link lost")
	}
	c.chunks = append(c.chunks, append([]byte(nil), p...))
	return nil
}

type fakeService struct {
	uuid  string
	chars []*fakeCharacteristic
}

func (s *fakeService) UUID() string { return s.uuid }

func (s *fakeService) DiscoverCharacteristics(ids []string) ([]Characteristic, error) {
	var out []Characteristic
	for _, c := range s.chars {
		if ids == nil || containsFold(ids, c.uuid) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakePeripheral struct {
	services     []*fakeService
	disconnected bool
	lookups      []string
}

func (p *fakePeripheral) DiscoverServices(ids []string) ([]Service, error) {
	p.lookups = append(p.lookups, ids...)
	var out []Service
	for _, s := range p.services {
		if ids == nil || containsFold(ids, s.uuid) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (p *fakePeripheral) Disconnect() error {
	p.disconnected = true
	return nil
}

// fakeCentral advertises a fixed device list.
type fakeCentral struct {
	advertised []DeviceHandle
	peripheral *fakePeripheral
	sessions   []*fakePeripheral // handed out per Connect before peripheral
	connectErr error
	enableErr  error
	onDrop     map[string]func()
	drops      []func() // every registered callback, oldest first
}

func (c *fakeCentral) Enable() error { return c.enableErr }

func (c *fakeCentral) Scan(ctx context.Context, found func(DeviceHandle) bool) error {
	for _, h := range c.advertised {
		if found(h) {
			return nil
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *fakeCentral) Connect(context.Context, DeviceHandle) (Peripheral, error) {
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	if len(c.sessions) > 0 {
		p := c.sessions[0]
		c.sessions = c.sessions[1:]
		return p, nil
	}
	return c.peripheral, nil
}

func (c *fakeCentral) OnDisconnect(id string, fn func()) {
	if c.onDrop == nil {
		c.onDrop = make(map[string]func())
	}
	c.onDrop[id] = fn
	c.drops = append(c.drops, fn)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
