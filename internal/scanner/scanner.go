// Package scanner abstracts device discovery. The workflow only consumes the
// discovered identifier and name; both are untrusted strings.
package scanner

import (
	"context"
	"errors"
)

// ErrCancelled is returned when discovery is aborted before a device is
// chosen.
var ErrCancelled = errors.New("scan cancelled")

// Device is the pair a discovery run yields. Either field may be empty.
type Device struct {
	ID   string
	Name string
}

// Chooser discovers a nearby device. Available reports whether the capability
// exists at all; callers must check it before Request and skip the network
// entirely when it is false.
type Chooser interface {
	Available() bool
	Request(ctx context.Context) (Device, error)
}

// Static is a fixed chooser for tests and for manual entry paths.
type Static struct {
	Supported bool
	Device    Device
	Err       error
}

// Available implements Chooser.
func (s Static) Available() bool { return s.Supported }

// Request implements Chooser.
func (s Static) Request(ctx context.Context) (Device, error) {
	if s.Err != nil {
		return Device{}, s.Err
	}
	return s.Device, nil
}
