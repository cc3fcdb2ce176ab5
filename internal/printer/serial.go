package printer

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate suits most USB-serial receipt printers.
const DefaultBaudRate = 9600

const serialWriteTimeout = 3 * time.Second

// serialPort adapts a serial.Port into a write-only stream that waits
// for the output buffer to drain before reporting success.
type serialPort struct {
	port serial.Port
	name string
}

// openSerial opens name at 8N1 with the given baud rate.
func openSerial(name string, baud int) (*serialPort, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", name, mapSerialError(err))
	}

	port.SetReadTimeout(serialWriteTimeout)

	return &serialPort{port: port, name: name}, nil
}

func (s *serialPort) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		return n, mapSerialError(err)
	}
	if err := s.port.Drain(); err != nil {
		return n, mapSerialError(err)
	}
	return n, nil
}

func (s *serialPort) Close() error {
	return s.port.Close()
}

// mapSerialError translates port error codes into printer errors.
func mapSerialError(err error) error {
	var perr *serial.PortError
	if !errors.As(err, &perr) {
		return err
	}
	switch perr.Code() {
	case serial.PortNotFound, serial.InvalidSerialPort:
		return fmt.Errorf("%w: %v", ErrNoDeviceFound, err)
	case serial.PermissionDenied:
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case serial.PortClosed:
		return fmt.Errorf("%w: %v", ErrTransportInterrupted, err)
	case serial.InvalidSpeed, serial.InvalidDataBits, serial.InvalidParity, serial.InvalidStopBits:
		return fmt.Errorf("%w: %v", errors.ErrUnsupported, err)
	}
	return err
}

// listSerialEndpoints enumerates serial ports with their USB product
// strings, which carry the printer model.
func listSerialEndpoints() ([]Endpoint, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}

	var out []Endpoint
	for _, p := range ports {
		desc := p.Product
		if p.IsUSB && desc == "" {
			desc = fmt.Sprintf("USB %s:%s", p.VID, p.PID)
		}
		out = append(out, Endpoint{Kind: EndpointSerial, Path: p.Name, Description: desc})
	}
	return out, nil
}

var _ io.WriteCloser = (*serialPort)(nil)
