package printer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gousb"
)

// usbPrinter is a claimed printer interface with its bulk OUT endpoint.
type usbPrinter struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	done func()
	out  *gousb.OutEndpoint
}

// parseVIDPID reads "0416:5011".
func parseVIDPID(s string) (gousb.ID, gousb.ID, error) {
	v, p, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("usb endpoint %q: want VID:PID", s)
	}
	vid, err := strconv.ParseUint(v, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("usb vendor id %q: %w", v, err)
	}
	pid, err := strconv.ParseUint(p, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("usb product id %q: %w", p, err)
	}
	return gousb.ID(vid), gousb.ID(pid), nil
}

func openUSB(path string) (*usbPrinter, error) {
	vid, pid, err := parseVIDPID(path)
	if err != nil {
		return nil, err
	}

	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		if errors.Is(err, gousb.ErrorAccess) {
			return nil, fmt.Errorf("%w: usb %s: %v", ErrPermissionDenied, path, err)
		}
		return nil, fmt.Errorf("usb %s: %w", path, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: usb %s not attached", ErrNoDeviceFound, path)
	}
	dev.SetAutoDetach(true)

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usb %s: claim interface: %w", path, err)
	}

	var out *gousb.OutEndpoint
	for _, ep := range intf.Setting.Endpoints {
		if ep.Direction == gousb.EndpointDirectionOut && ep.TransferType == gousb.TransferTypeBulk {
			out, err = intf.OutEndpoint(ep.Number)
			break
		}
	}
	if out == nil {
		done()
		dev.Close()
		ctx.Close()
		if err == nil {
			err = errors.New("no bulk out endpoint")
		}
		return nil, fmt.Errorf("usb %s: %w", path, err)
	}

	return &usbPrinter{ctx: ctx, dev: dev, done: done, out: out}, nil
}

func (u *usbPrinter) Write(p []byte) (int, error) {
	n, err := u.out.Write(p)
	if errors.Is(err, gousb.ErrorNoDevice) {
		return n, fmt.Errorf("%w: %v", ErrTransportInterrupted, err)
	}
	return n, err
}

func (u *usbPrinter) Close() error {
	u.done()
	err := u.dev.Close()
	if cerr := u.ctx.Close(); err == nil {
		err = cerr
	}
	return err
}

func isPrinterClass(desc *gousb.DeviceDesc) bool {
	if desc.Class == gousb.ClassPrinter {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

// listUSBEndpoints enumerates attached USB printer-class devices.
func listUSBEndpoints() ([]Endpoint, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devices, err := ctx.OpenDevices(isPrinterClass)
	// OpenDevices returns the devices it could open alongside the error
	var out []Endpoint
	for _, dev := range devices {
		path := fmt.Sprintf("%04x:%04x", uint16(dev.Desc.Vendor), uint16(dev.Desc.Product))
		desc, _ := dev.Product()
		if manufacturer, _ := dev.Manufacturer(); manufacturer != "" {
			desc = strings.TrimSpace(manufacturer + " " + desc)
		}
		out = append(out, Endpoint{Kind: EndpointUSB, Path: path, Description: desc})
		dev.Close()
	}
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("enumerate usb devices: %w", err)
	}
	return out, nil
}

func usbPresent(path string) bool {
	vid, pid, err := parseVIDPID(path)
	if err != nil {
		return false
	}
	ctx := gousb.NewContext()
	defer ctx.Close()

	found := false
	ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == vid && desc.Product == pid {
			found = true
		}
		return false
	})
	return found
}
