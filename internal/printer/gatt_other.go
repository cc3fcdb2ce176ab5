//go:build !linux

package printer

import "context"

// BluetoothAvailable reports whether the host has a Bluetooth controller.
// Only BlueZ hosts are supported.
func BluetoothAvailable() bool {
	return false
}

// HCICentral is unavailable off Linux; every call fails with
// ErrUnsupportedEnvironment.
type HCICentral struct{}

func NewHCICentral() *HCICentral {
	return &HCICentral{}
}

func (h *HCICentral) Enable() error {
	return ErrUnsupportedEnvironment
}

func (h *HCICentral) Scan(context.Context, func(DeviceHandle) bool) error {
	return ErrUnsupportedEnvironment
}

func (h *HCICentral) Connect(context.Context, DeviceHandle) (Peripheral, error) {
	return nil, ErrUnsupportedEnvironment
}

func (h *HCICentral) OnDisconnect(string, func()) {}
