package core

import (
	"context"
	"errors"
	"strings"

	"rollcall/internal/api"
	"rollcall/internal/bus"
	"rollcall/internal/metrics"
)

// ErrEmptySessionName rejects blank session names before any network call.
var ErrEmptySessionName = errors.New("session name required")

// ActiveSession re-fetches the open session and replaces the cache. A
// transport failure degrades to "no session": the cache is cleared and nil is
// returned rather than an error, so views keep rendering.
func (a *App) ActiveSession(ctx context.Context) *api.Session {
	s, err := a.api.ActiveSession(ctx)
	if err != nil {
		metrics.BackendErrors.Inc()
		a.setActive(nil)
		return nil
	}
	a.setActive(s)
	return s
}

// StartSession opens a new session. Whitespace-only names are rejected here;
// conflicts remain the service's call. On success the cache is replaced and a
// session change is announced so visible views re-fetch.
func (a *App) StartSession(ctx context.Context, name string) (*api.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptySessionName
	}
	s, err := a.api.StartSession(ctx, name)
	if err != nil {
		metrics.BackendErrors.Inc()
		return nil, err
	}
	a.setActive(s)
	a.bus.Publish(bus.Event{Type: bus.SessionChanged})
	return s, nil
}

// EndSession closes the open session and clears the cache. When the service
// reports nothing to end, that is a warning, not an error: the stale cache is
// cleared, the session state is re-fetched and the returned message says so.
func (a *App) EndSession(ctx context.Context) (string, error) {
	err := a.api.EndSession(ctx)
	switch {
	case err == nil:
		a.setActive(nil)
		a.bus.Publish(bus.Event{Type: bus.SessionChanged})
		return "Session ended", nil
	case errors.Is(err, api.ErrNoActiveSession):
		a.setActive(nil)
		a.ActiveSession(ctx)
		a.bus.Publish(bus.Event{Type: bus.SessionChanged})
		return "No active session to end", nil
	default:
		metrics.BackendErrors.Inc()
		return "", err
	}
}
