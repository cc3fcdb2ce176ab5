//go:build !windows

package printer

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// deviceFilePatterns cover USB line-printer nodes and bound RFCOMM
// serial links.
var deviceFilePatterns = []string{"/dev/usb/lp*", "/dev/lp*", "/dev/rfcomm*"}

// listDeviceFiles returns existing printer device nodes. RFCOMM nodes
// are serial links; the rest take raw writes.
func listDeviceFiles() ([]Endpoint, error) {
	var out []Endpoint
	for _, pattern := range deviceFilePatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		for _, m := range matches {
			kind := EndpointFile
			if strings.HasPrefix(m, "/dev/rfcomm") {
				kind = EndpointSerial
			}
			out = append(out, Endpoint{Kind: kind, Path: m, Description: filepath.Base(m)})
		}
	}
	return out, nil
}

func serialPortExists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}
