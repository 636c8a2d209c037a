package scanner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// BlueZ discovers devices by shelling out to bluetoothctl. It scans for a
// fixed window and returns the first device that appears, which fits the
// kiosk flow where the student holds their device next to the reader.
type BlueZ struct {
	Path   string
	Window time.Duration
}

// NewBlueZ creates a chooser using the given bluetoothctl binary.
func NewBlueZ(path string, window time.Duration) *BlueZ {
	if path == "" {
		path = "bluetoothctl"
	}
	if window <= 0 {
		window = 8 * time.Second
	}
	return &BlueZ{Path: path, Window: window}
}

// Available reports whether bluetoothctl is on PATH.
func (b *BlueZ) Available() bool {
	_, err := exec.LookPath(b.Path)
	return err == nil
}

// Request scans for the configured window and returns the first discovered
// device. Context cancellation surfaces as ErrCancelled.
func (b *BlueZ) Request(ctx context.Context) (Device, error) {
	before, err := b.devices(ctx)
	if err != nil {
		return Device{}, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, b.Window)
	defer cancel()
	secs := int(b.Window.Seconds())
	if secs < 1 {
		secs = 1
	}
	scan := exec.CommandContext(scanCtx, b.Path, "--timeout", fmt.Sprintf("%d", secs), "scan", "on")
	if err := scan.Run(); err != nil && ctx.Err() != nil {
		return Device{}, ErrCancelled
	}

	after, err := b.devices(ctx)
	if err != nil {
		return Device{}, err
	}
	for _, d := range after {
		if _, seen := before[d.ID]; !seen {
			return d, nil
		}
	}
	for _, d := range after {
		return d, nil
	}
	return Device{}, fmt.Errorf("no devices discovered")
}

func (b *BlueZ) devices(ctx context.Context) (map[string]Device, error) {
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}
	out, err := exec.CommandContext(ctx, b.Path, "devices").Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("bluetoothctl devices failed: %w", err)
	}
	return parseDevices(out), nil
}

// parseDevices reads bluetoothctl "Device <addr> <name>" lines.
func parseDevices(out []byte) map[string]Device {
	found := map[string]Device{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || fields[0] != "Device" {
			continue
		}
		d := Device{ID: fields[1]}
		if len(fields) > 2 {
			d.Name = strings.Join(fields[2:], " ")
		}
		found[d.ID] = d
	}
	return found
}
