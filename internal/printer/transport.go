package printer

import (
	"context"
	"time"
)

// DeviceHandle identifies a paired printer across restarts.
type DeviceHandle struct {
	ID   string `yaml:"id"`   // BLE address or endpoint string
	Name string `yaml:"name"` // human-readable name
}

// IsZero reports whether the handle names no device.
func (h DeviceHandle) IsZero() bool {
	return h.ID == ""
}

func (h DeviceHandle) String() string {
	if h.Name == "" || h.Name == h.ID {
		return h.ID
	}
	return h.Name + " (" + h.ID + ")"
}

// Method tells the caller how a request was satisfied.
type Method string

const (
	// how the session was obtained
	MethodExistingSession Method = "existing-session"
	MethodKnownDevice     Method = "known-device"
	MethodSilentReconnect Method = "silent-reconnect"
	MethodFreshPairing    Method = "fresh-pairing"

	// how the bytes were delivered
	MethodGATT       Method = "gatt"
	MethodSerial     Method = "serial"
	MethodDeviceFile Method = "device-file"
	MethodUSB        Method = "usb"
	MethodSpooler    Method = "spooler"
)

// Transport is a byte-stream link to one physical printer.
//
// Discover runs interactive discovery and may prompt the user.
// Reconnect locates a previously paired device without prompting.
// Open establishes a session; a failed Open may leave partial state,
// so callers Close before retrying.
type Transport interface {
	Discover(ctx context.Context) (DeviceHandle, error)
	Reconnect(ctx context.Context, h DeviceHandle) (DeviceHandle, error)
	Open(ctx context.Context, h DeviceHandle) error
	Write(ctx context.Context, data []byte) (Method, error)
	IsConnected() bool
	Close() error
}

// disconnectNotifier is implemented by transports that learn about
// link loss asynchronously.
type disconnectNotifier interface {
	SetDisconnectHandler(func())
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real-clock Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// StatusFunc receives short human-readable progress messages.
type StatusFunc func(string)
