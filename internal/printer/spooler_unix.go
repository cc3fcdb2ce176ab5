//go:build !windows

package printer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// lpSpooler submits jobs through the CUPS command line tools.
type lpSpooler struct{}

// NewSpooler returns the host print spooler.
func NewSpooler() Spooler {
	return lpSpooler{}
}

// Queues lists the queues accepting jobs.
func (lpSpooler) Queues(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, "lpstat", "-a").Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: lpstat not installed", ErrUnsupportedEnvironment)
		}
		// lpstat exits non-zero when no queue exists
		return nil, nil
	}

	var queues []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		// Format: "Thermal_58 accepting requests since ..."
		line := strings.TrimSpace(scanner.Text())
		if name, rest, ok := strings.Cut(line, " "); ok && strings.HasPrefix(rest, "accepting") {
			queues = append(queues, name)
		}
	}
	return queues, nil
}

// Submit queues data as a raw job, bypassing filters.
func (lpSpooler) Submit(ctx context.Context, queue string, data []byte) error {
	cmd := exec.CommandContext(ctx, "lp", "-d", queue, "-o", "raw")
	cmd.Stdin = bytes.NewReader(data)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: lp not installed", ErrUnsupportedEnvironment)
		}
		return fmt.Errorf("lp: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
