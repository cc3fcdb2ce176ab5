package printer

import (
	"errors"
	"fmt"

	"brewprint/internal/order"
)

// Failure kinds reported by transports and the connection manager.
var (
	ErrNoDeviceFound          = errors.New("no printer device found")
	ErrPairingDenied          = errors.New("pairing denied")
	ErrConnectionFailed       = errors.New("connection failed")
	ErrTransportInterrupted   = errors.New("transport interrupted")
	ErrUnsupportedEnvironment = errors.New("operation not supported in this environment")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrTimeout                = errors.New("operation timed out")
	ErrNotConnected           = errors.New("printer not connected")
	ErrPrinterBusy            = errors.New("printer busy")

	// ErrEncoding is returned for job data no command stream can be built from.
	ErrEncoding = order.ErrInvalidJob
)

// ConnectError is returned once every connection attempt has failed.
// It matches ErrConnectionFailed and the last transport error.
type ConnectError struct {
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connection failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() []error {
	return []error{ErrConnectionFailed, e.Err}
}
