package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"rollcall/internal/api"
	"rollcall/internal/bus"
	"rollcall/internal/metrics"
	"rollcall/internal/scanner"
)

// ScanState is the terminal state of one scan attempt. A scan runs exactly
// one pass; the user re-triggers the whole flow to retry.
type ScanState string

// Terminal states.
const (
	ScanUnsupported ScanState = "unsupported"
	ScanFailed      ScanState = "failed"
	ScanAccepted    ScanState = "accepted"
	ScanDuplicate   ScanState = "duplicate"
	ScanRejected    ScanState = "rejected"
)

// ScanOutcome is the single result of a scan attempt. Status is the one
// human-readable line adapters display.
type ScanOutcome struct {
	AttemptID string
	State     ScanState
	Status    string
	Student   *api.Student
	Timestamp string
	Scope     string
	Reason    string
}

// Scan runs one full scan attempt: capability check, discovery, validation.
// Every exit path is a terminal state carried in the outcome; no error
// escapes to the caller.
func (a *App) Scan(ctx context.Context, chooser scanner.Chooser) ScanOutcome {
	attempt := uuid.NewString()

	if chooser == nil || !chooser.Available() {
		return a.finish(ScanOutcome{
			AttemptID: attempt,
			State:     ScanUnsupported,
			Status:    "Bluetooth is not available on this machine.",
		})
	}

	dev, err := chooser.Request(ctx)
	if err != nil {
		return a.finish(ScanOutcome{
			AttemptID: attempt,
			State:     ScanFailed,
			Status:    "Bluetooth scan failed or was cancelled.",
		})
	}

	return a.validateDevice(ctx, attempt, dev)
}

// ValidateDevice validates an already-discovered device, for adapters whose
// front end performs discovery itself (the browser's own device chooser).
func (a *App) ValidateDevice(ctx context.Context, dev scanner.Device) ScanOutcome {
	return a.validateDevice(ctx, uuid.NewString(), dev)
}

func (a *App) validateDevice(ctx context.Context, attempt string, dev scanner.Device) ScanOutcome {
	// Prefer the advertised identifier; fall back to the name. An empty scan
	// result never reaches the network.
	if dev.ID == "" && dev.Name == "" {
		return a.finish(ScanOutcome{
			AttemptID: attempt,
			State:     ScanFailed,
			Status:    "Scan returned no identifier or name.",
		})
	}

	res, err := a.api.Validate(ctx, dev.ID, dev.Name)
	if err != nil {
		if errors.Is(err, api.ErrUnknownStudent) {
			return a.finish(ScanOutcome{
				AttemptID: attempt,
				State:     ScanRejected,
				Status:    "Invalid device or id: no matching student.",
			})
		}
		metrics.BackendErrors.Inc()
		return a.finish(ScanOutcome{
			AttemptID: attempt,
			State:     ScanFailed,
			Status:    "Validation request failed.",
		})
	}

	student := res.Student
	if res.Logged {
		out := ScanOutcome{
			AttemptID: attempt,
			State:     ScanAccepted,
			Status:    fmt.Sprintf("Logged: %s at %s (%s)", student.Name, res.Timestamp, res.Scope),
			Student:   &student,
			Timestamp: res.Timestamp,
			Scope:     res.Scope,
		}
		a.bus.Publish(bus.Event{Type: bus.AttendanceLogged})
		return a.finish(out)
	}

	text := "already logged today"
	if res.Reason == api.ReasonAlreadyInSession {
		text = "already logged for this session"
	}
	return a.finish(ScanOutcome{
		AttemptID: attempt,
		State:     ScanDuplicate,
		Status:    fmt.Sprintf("Duplicate: %s %s.", student.Name, text),
		Student:   &student,
		Scope:     res.Scope,
		Reason:    res.Reason,
	})
}

func (a *App) finish(out ScanOutcome) ScanOutcome {
	metrics.ScansTotal.WithLabelValues(string(out.State)).Inc()
	return out
}
