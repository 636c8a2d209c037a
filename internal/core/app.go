// Package core implements the attendance workflow: the active-session cache,
// the scan/validate state machine, scope-filtered queries and summary
// aggregation. Presentation adapters call into this package and render
// whatever it returns; nothing here assumes a rendering technology.
package core

import (
	"context"
	"net/url"
	"sync"
	"time"

	"rollcall/internal/api"
	"rollcall/internal/bus"
	"rollcall/internal/metrics"
)

// App owns all client-side mutable state: the single cached active session
// and the students/sessions list caches. Caches are replaced wholesale on
// refresh, never mutated in place.
type App struct {
	api   *api.Client
	bus   *bus.Bus
	limit int
	now   func() time.Time
	Views *Views

	mu       sync.RWMutex
	active   *api.Session
	students []api.Student
	sessions []api.Session
}

// Option configures an App.
type Option func(*App)

// WithLimit overrides the default row cap for list queries.
func WithLimit(n int) Option {
	return func(a *App) { a.limit = n }
}

// WithClock overrides the time source, used by tests to pin "today".
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New creates an App around an API client and an event bus.
func New(client *api.Client, b *bus.Bus, opts ...Option) *App {
	a := &App{
		api:   client,
		bus:   b,
		limit: 500,
		now:   time.Now,
		Views: NewViews(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Subscribe delivers refresh events until ctx is done. Adapters listen here
// so state changed through another front end sharing this core re-fetches
// their visible views.
func (a *App) Subscribe(ctx context.Context) <-chan bus.Event {
	return a.bus.Subscribe(ctx)
}

// Active returns the cached active session without touching the network.
func (a *App) Active() *api.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

// Students returns the cached class list.
func (a *App) Students() []api.Student {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.students
}

// Sessions returns the cached session list.
func (a *App) Sessions() []api.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessions
}

// RefreshStudents re-fetches the class list and replaces the cache.
func (a *App) RefreshStudents(ctx context.Context) ([]api.Student, error) {
	metrics.RefreshesTotal.WithLabelValues("students").Inc()
	students, err := a.api.Students(ctx)
	if err != nil {
		metrics.BackendErrors.Inc()
		return a.Students(), err
	}
	a.mu.Lock()
	a.students = students
	a.mu.Unlock()
	return students, nil
}

// RefreshSessions re-fetches the session list and replaces the cache.
func (a *App) RefreshSessions(ctx context.Context) ([]api.Session, error) {
	metrics.RefreshesTotal.WithLabelValues("sessions").Inc()
	sessions, err := a.api.Sessions(ctx)
	if err != nil {
		metrics.BackendErrors.Inc()
		return a.Sessions(), err
	}
	a.mu.Lock()
	a.sessions = sessions
	a.mu.Unlock()
	return sessions, nil
}

// Attendance fetches rows for the given scope using the cached active
// session.
func (a *App) Attendance(ctx context.Context, scope Scope) ([]api.Record, error) {
	metrics.RefreshesTotal.WithLabelValues("attendance").Inc()
	rows, err := a.api.Attendance(ctx, a.ListQuery(scope))
	if err != nil {
		metrics.BackendErrors.Inc()
		return nil, err
	}
	return rows, nil
}

// ListQuery builds the attendance list parameters for a scope.
func (a *App) ListQuery(scope Scope) url.Values {
	return ListQuery(scope, a.Active(), a.now(), a.limit)
}

// ExportQuery builds the export parameters for a scope and format.
func (a *App) ExportQuery(scope Scope, format string) url.Values {
	return ExportQuery(scope, a.Active(), a.now(), format)
}

// ExportURL builds the download URL for a scoped export.
func (a *App) ExportURL(scope Scope, format string) string {
	return a.api.ExportURL(a.ExportQuery(scope, format))
}

// Export downloads a scoped export file.
func (a *App) Export(ctx context.Context, scope Scope, format string) (string, []byte, error) {
	name, data, err := a.api.Export(ctx, a.ExportQuery(scope, format))
	if err != nil {
		metrics.BackendErrors.Inc()
	}
	return name, data, err
}

// AddStudent registers one student and announces the roster change.
func (a *App) AddStudent(ctx context.Context, studentID, name, mac string) (api.Student, error) {
	st, err := a.api.AddStudent(ctx, studentID, name, mac)
	if err != nil {
		metrics.BackendErrors.Inc()
		return api.Student{}, err
	}
	a.bus.Publish(bus.Event{Type: bus.RosterChanged})
	return st, nil
}

// UploadRoster replaces the class list from raw CSV text and announces the
// roster change.
func (a *App) UploadRoster(ctx context.Context, csvText string) (string, error) {
	msg, err := a.api.UploadRoster(ctx, csvText)
	if err != nil {
		metrics.BackendErrors.Inc()
		return "", err
	}
	a.bus.Publish(bus.Event{Type: bus.RosterChanged})
	return msg, nil
}

// MarkAttendance logs attendance manually by id or name and announces the
// new row.
func (a *App) MarkAttendance(ctx context.Context, input string) (string, error) {
	msg, err := a.api.MarkAttendance(ctx, input, input)
	if err != nil {
		metrics.BackendErrors.Inc()
		return "", err
	}
	a.bus.Publish(bus.Event{Type: bus.AttendanceLogged})
	return msg, nil
}

func (a *App) setActive(s *api.Session) {
	a.mu.Lock()
	a.active = s
	a.mu.Unlock()
}
