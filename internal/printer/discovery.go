package printer

import (
	"errors"
	"fmt"
)

// Candidate is one (service, characteristic) pair known to accept
// print data on some printer model.
type Candidate struct {
	Service        string `yaml:"service"`
	Characteristic string `yaml:"characteristic"`
}

// DefaultCandidates lists the write endpoints of common BLE thermal
// printers, most specific first.
var DefaultCandidates = []Candidate{
	{Service: "000018f0-0000-1000-8000-00805f9b34fb", Characteristic: "00002af1-0000-1000-8000-00805f9b34fb"},
	{Service: "e7810a71-73ae-499d-8c15-faa9aef0c3f2", Characteristic: "bef8d6c9-9c21-4c9e-b632-bd58c1009f9f"},
	{Service: "49535343-fe7d-4ae5-8fa9-9fafd205e455", Characteristic: "49535343-8841-43f4-a8d4-ecbe34729bb3"},
	{Service: "0000ff00-0000-1000-8000-00805f9b34fb", Characteristic: "0000ff02-0000-1000-8000-00805f9b34fb"},
	{Service: "0000ae30-0000-1000-8000-00805f9b34fb", Characteristic: "0000ae01-0000-1000-8000-00805f9b34fb"},
}

// Peripheral is a connected GATT server.
type Peripheral interface {
	// DiscoverServices resolves the given services; nil means all.
	DiscoverServices(ids []string) ([]Service, error)
	Disconnect() error
}

// Service is a resolved GATT service.
type Service interface {
	UUID() string
	// DiscoverCharacteristics resolves the given characteristics; nil means all.
	DiscoverCharacteristics(ids []string) ([]Characteristic, error)
}

// Characteristic is a resolved GATT characteristic.
type Characteristic interface {
	UUID() string
	// Writable reports write or write-without-response support.
	Writable() bool
	WriteWithoutResponse(p []byte) error
	// MTU is the usable payload per write, 0 if unknown.
	MTU() int
}

// ResolveWriter picks the characteristic print data goes to. Named
// candidates are tried in order; if none resolves, every characteristic
// of each candidate service is enumerated and the first writable one
// wins. When nothing resolves the error wraps ErrNoDeviceFound and
// every individual failure.
func ResolveWriter(p Peripheral, candidates []Candidate) (Characteristic, error) {
	var errs []error
	services := make(map[string]Service)
	var order []string

	for _, cand := range candidates {
		svc, seen := services[cand.Service]
		if !seen {
			found, err := p.DiscoverServices([]string{cand.Service})
			if err != nil || len(found) == 0 {
				errs = append(errs, fmt.Errorf("service %s: %w", cand.Service, orNotFound(err)))
				services[cand.Service] = nil
				continue
			}
			svc = found[0]
			services[cand.Service] = svc
			order = append(order, cand.Service)
		}
		if svc == nil {
			continue
		}

		chars, err := svc.DiscoverCharacteristics([]string{cand.Characteristic})
		if err != nil || len(chars) == 0 {
			errs = append(errs, fmt.Errorf("characteristic %s/%s: %w", cand.Service, cand.Characteristic, orNotFound(err)))
			continue
		}
		if !chars[0].Writable() {
			errs = append(errs, fmt.Errorf("characteristic %s/%s: not writable", cand.Service, cand.Characteristic))
			continue
		}
		return chars[0], nil
	}

	for _, id := range order {
		chars, err := services[id].DiscoverCharacteristics(nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("enumerate %s: %w", id, err))
			continue
		}
		for _, ch := range chars {
			if ch.Writable() {
				return ch, nil
			}
		}
		errs = append(errs, fmt.Errorf("service %s: no writable characteristic", id))
	}

	return nil, fmt.Errorf("%w: no writable characteristic: %w", ErrNoDeviceFound, errors.Join(errs...))
}

var errNotResolved = errors.New("not found")

func orNotFound(err error) error {
	if err == nil {
		return errNotResolved
	}
	return err
}
