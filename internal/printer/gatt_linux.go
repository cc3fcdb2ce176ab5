//go:build linux

package printer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

const bluetoothBaseSuffix = "-0000-1000-8000-00805f9b34fb"

// BluetoothAvailable reports whether the host has a Bluetooth controller.
func BluetoothAvailable() bool {
	entries, err := os.ReadDir("/sys/class/bluetooth")
	return err == nil && len(entries) > 0
}

// HCICentral drives the local HCI controller through BlueZ sockets.
type HCICentral struct {
	once sync.Once
	err  error

	mu      sync.Mutex
	clients map[string]ble.Client
}

// NewHCICentral returns a central for the default controller. The
// controller is opened on first use.
func NewHCICentral() *HCICentral {
	return &HCICentral{clients: make(map[string]ble.Client)}
}

func (h *HCICentral) Enable() error {
	h.once.Do(func() {
		if !BluetoothAvailable() {
			h.err = fmt.Errorf("%w: no bluetooth controller", ErrUnsupportedEnvironment)
			return
		}
		d, err := linux.NewDevice()
		if err != nil {
			if os.IsPermission(err) || strings.Contains(err.Error(), "permission") {
				h.err = fmt.Errorf("%w: open hci device: %v", ErrPermissionDenied, err)
				return
			}
			h.err = fmt.Errorf("%w: open hci device: %v", ErrUnsupportedEnvironment, err)
			return
		}
		ble.SetDefaultDevice(d)
	})
	return h.err
}

func (h *HCICentral) Scan(ctx context.Context, found func(DeviceHandle) bool) error {
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	err := ble.Scan(scanCtx, false, func(a ble.Advertisement) {
		mu.Lock()
		defer mu.Unlock()
		if scanCtx.Err() != nil {
			return
		}
		if found(DeviceHandle{ID: a.Addr().String(), Name: a.LocalName()}) {
			cancel()
		}
	}, nil)
	if err != nil && scanCtx.Err() != nil && ctx.Err() == nil {
		// stopped by the callback
		return nil
	}
	return err
}

func (h *HCICentral) Connect(ctx context.Context, dev DeviceHandle) (Peripheral, error) {
	client, err := ble.Dial(ctx, ble.NewAddr(dev.ID))
	if err != nil {
		return nil, err
	}

	mtu := 0
	if tx, err := client.ExchangeMTU(ble.MaxMTU); err == nil && tx > 3 {
		// 3 bytes of ATT header per write
		mtu = tx - 3
	}

	h.mu.Lock()
	h.clients[dev.ID] = client
	h.mu.Unlock()

	return &blePeripheral{client: client, mtu: mtu}, nil
}

func (h *HCICentral) OnDisconnect(id string, fn func()) {
	h.mu.Lock()
	client, ok := h.clients[id]
	h.mu.Unlock()
	if !ok {
		return
	}
	go func() {
		<-client.Disconnected()
		h.mu.Lock()
		if h.clients[id] == client {
			delete(h.clients, id)
		}
		h.mu.Unlock()
		fn()
	}()
}

type blePeripheral struct {
	client ble.Client
	mtu    int
}

func (p *blePeripheral) DiscoverServices(ids []string) ([]Service, error) {
	filter, err := parseUUIDs(ids)
	if err != nil {
		return nil, err
	}
	svcs, err := p.client.DiscoverServices(filter)
	if err != nil {
		return nil, err
	}
	out := make([]Service, 0, len(svcs))
	for _, s := range svcs {
		out = append(out, &bleService{p: p, svc: s})
	}
	return out, nil
}

func (p *blePeripheral) Disconnect() error {
	return p.client.CancelConnection()
}

type bleService struct {
	p   *blePeripheral
	svc *ble.Service
}

func (s *bleService) UUID() string {
	return s.svc.UUID.String()
}

func (s *bleService) DiscoverCharacteristics(ids []string) ([]Characteristic, error) {
	filter, err := parseUUIDs(ids)
	if err != nil {
		return nil, err
	}
	chars, err := s.p.client.DiscoverCharacteristics(filter, s.svc)
	if err != nil {
		return nil, err
	}
	out := make([]Characteristic, 0, len(chars))
	for _, c := range chars {
		out = append(out, &bleCharacteristic{p: s.p, char: c})
	}
	return out, nil
}

type bleCharacteristic struct {
	p    *blePeripheral
	char *ble.Characteristic
}

func (c *bleCharacteristic) UUID() string {
	return c.char.UUID.String()
}

func (c *bleCharacteristic) Writable() bool {
	return c.char.Property&(ble.CharWrite|ble.CharWriteNR) != 0
}

func (c *bleCharacteristic) WriteWithoutResponse(p []byte) error {
	noRsp := c.char.Property&ble.CharWriteNR != 0
	return c.p.client.WriteCharacteristic(c.char, p, noRsp)
}

func (c *bleCharacteristic) MTU() int {
	return c.p.mtu
}

// parseUUIDs converts textual UUIDs, shortening Bluetooth base UUIDs to
// their 16-bit form so they compare equal to what devices report.
func parseUUIDs(ids []string) ([]ble.UUID, error) {
	if ids == nil {
		return nil, nil
	}
	out := make([]ble.UUID, 0, len(ids))
	for _, id := range ids {
		id = strings.ToLower(id)
		if len(id) == 36 && strings.HasPrefix(id, "0000") && strings.HasSuffix(id, bluetoothBaseSuffix) {
			id = id[4:8]
		}
		u, err := ble.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("uuid %q: %w", id, err)
		}
		out = append(out, u)
	}
	return out, nil
}
