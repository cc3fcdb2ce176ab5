package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// OpenEndpoint opens a raw write stream to e.
func OpenEndpoint(e Endpoint, baud int) (io.WriteCloser, error) {
	switch e.Kind {
	case EndpointSerial:
		p, err := openSerial(e.Path, baud)
		if err != nil {
			return nil, err
		}
		return p, nil
	case EndpointFile:
		f, err := os.OpenFile(e.Path, os.O_WRONLY, 0)
		if err != nil {
			return nil, err
		}
		return f, nil
	case EndpointUSB:
		u, err := openUSB(e.Path)
		if err != nil {
			return nil, err
		}
		return u, nil
	case EndpointQueue:
		return nil, fmt.Errorf("queue %s: %w", e.Path, errors.ErrUnsupported)
	}
	return nil, fmt.Errorf("unknown endpoint kind %q", e.Kind)
}

// EndpointExists reports whether e is still attached.
func EndpointExists(e Endpoint) bool {
	switch e.Kind {
	case EndpointSerial:
		return serialPortExists(e.Path)
	case EndpointFile:
		_, err := os.Stat(e.Path)
		return err == nil
	case EndpointUSB:
		return usbPresent(e.Path)
	}
	return true
}

// ListCandidates gathers every local endpoint a receipt printer might
// sit behind: device files, serial ports, USB printers and spooler
// queues. Sources that fail are skipped unless all of them fail.
func ListCandidates(ctx context.Context, sp Spooler) ([]Endpoint, error) {
	var (
		out  []Endpoint
		errs []error
	)
	add := func(eps []Endpoint, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		out = append(out, eps...)
	}

	add(listDeviceFiles())
	add(listSerialEndpoints())
	add(listUSBEndpoints())
	if sp != nil {
		queues, err := sp.Queues(ctx)
		eps := make([]Endpoint, 0, len(queues))
		for _, q := range queues {
			eps = append(eps, Endpoint{Kind: EndpointQueue, Path: q, Description: q})
		}
		add(eps, err)
	}

	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// bluetoothCOMPorts picks the Bluetooth-backed entries of a COM port to
// driver device map, in port number order.
func bluetoothCOMPorts(ports map[string]string) []Endpoint {
	names := make([]string, 0, len(ports))
	for port, device := range ports {
		lower := strings.ToLower(device)
		if strings.Contains(lower, "bth") || strings.Contains(lower, "bluetooth") {
			names = append(names, port)
		}
	}
	// COM10 sorts after COM9
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})

	out := make([]Endpoint, 0, len(names))
	for _, port := range names {
		out = append(out, Endpoint{Kind: EndpointSerial, Path: comPath(port), Description: "Bluetooth " + port})
	}
	return out
}

// comPath adds the device namespace prefix ports above COM9 need.
func comPath(port string) string {
	if len(port) > 4 && !strings.HasPrefix(port, `\\.\`) {
		return `\\.\` + port
	}
	return port
}
