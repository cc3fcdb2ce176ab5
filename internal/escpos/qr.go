package escpos

import (
	"fmt"

	"brewprint/internal/order"
)

// QR error correction levels.
type ECLevel byte

const (
	ECLow      ECLevel = 0x30
	ECMedium   ECLevel = 0x31
	ECQuartile ECLevel = 0x32
	ECHigh     ECLevel = 0x33
)

const (
	qrModel2 = 0x32

	// cn fn m that precede the payload in the store command
	qrStoreHeader = 3

	// byte-mode capacity of a version 40 symbol at level L
	MaxQRPayload = 7089
)

// QRCode builds the GS ( k sequence: model, module size and error
// correction, then store (pL pH = len(payload)+3) and print.
func QRCode(payload []byte, moduleSize byte, level ECLevel) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty QR payload", order.ErrInvalidJob)
	}
	if len(payload) > MaxQRPayload {
		return nil, fmt.Errorf("%w: QR payload of %d bytes exceeds %d", order.ErrInvalidJob, len(payload), MaxQRPayload)
	}
	if moduleSize < 1 || moduleSize > 16 {
		moduleSize = 6
	}

	cmd := make([]byte, 0, len(payload)+40)

	// Model 2
	cmd = append(cmd, GS, 0x28, 0x6B, 0x04, 0x00, 0x31, 0x41, qrModel2, 0x00)
	// Module size in dots
	cmd = append(cmd, GS, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x43, moduleSize)
	// Error correction level
	cmd = append(cmd, GS, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x45, byte(level))

	// Store data
	n := len(payload) + qrStoreHeader
	cmd = append(cmd, GS, 0x28, 0x6B, byte(n&0xFF), byte(n>>8), 0x31, 0x50, 0x30)
	cmd = append(cmd, payload...)

	// Print stored symbol
	cmd = append(cmd, GS, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x51, 0x30)

	return cmd, nil
}
