//go:build windows

package printer

import (
	"strings"

	"golang.org/x/sys/windows/registry"
)

const serialCommKey = `HARDWARE\DEVICEMAP\SERIALCOMM`

// readSerialComm maps COM port names to their driver device names.
func readSerialComm() (map[string]string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, serialCommKey, registry.READ)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	names, err := key.ReadValueNames(-1)
	if err != nil {
		return nil, err
	}

	ports := make(map[string]string, len(names))
	for _, name := range names {
		val, _, err := key.GetStringValue(name)
		if err == nil {
			ports[val] = name
		}
	}
	return ports, nil
}

// listDeviceFiles returns Bluetooth SPP COM ports. Windows creates them
// on pairing, so they behave like serial ports.
func listDeviceFiles() ([]Endpoint, error) {
	ports, err := readSerialComm()
	if err != nil {
		return nil, err
	}
	return bluetoothCOMPorts(ports), nil
}

func serialPortExists(name string) bool {
	ports, err := readSerialComm()
	if err != nil {
		return false
	}
	_, ok := ports[strings.TrimPrefix(name, `\\.\`)]
	return ok
}
