package core

import (
	"net/url"
	"strconv"
	"time"

	"rollcall/internal/api"
)

// Scope selects which attendance rows a list or export should request.
type Scope string

// The three scopes a view can show.
const (
	ScopeSession Scope = "session"
	ScopeToday   Scope = "today"
	ScopeAll     Scope = "all"
)

// ParseScope maps user input onto a scope, defaulting to the session scope.
func ParseScope(s string) Scope {
	switch Scope(s) {
	case ScopeToday:
		return ScopeToday
	case ScopeAll:
		return ScopeAll
	default:
		return ScopeSession
	}
}

// Next cycles session -> today -> all -> session.
func (s Scope) Next() Scope {
	switch s {
	case ScopeSession:
		return ScopeToday
	case ScopeToday:
		return ScopeAll
	default:
		return ScopeSession
	}
}

// LocalDate formats a timestamp as the calendar day in its own location.
func LocalDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// ListQuery derives the attendance list parameters for a scope. The session
// scope with no active session intentionally falls back to an unfiltered,
// limit-capped query: the view shows the most recent rows instead of erroring.
func ListQuery(scope Scope, active *api.Session, today time.Time, limit int) url.Values {
	q := scopeFilter(scope, active, today)
	if limit <= 0 {
		limit = 500
	}
	q.Set("limit", strconv.Itoa(limit))
	return q
}

// ExportQuery derives the export parameters for a scope. Exports carry the
// same filters as the list they mirror, with a format and no row cap.
func ExportQuery(scope Scope, active *api.Session, today time.Time, format string) url.Values {
	q := scopeFilter(scope, active, today)
	if format == "" {
		format = "csv"
	}
	q.Set("format", format)
	return q
}

func scopeFilter(scope Scope, active *api.Session, today time.Time) url.Values {
	q := url.Values{}
	switch scope {
	case ScopeToday:
		day := LocalDate(today)
		q.Set("date_from", day)
		q.Set("date_to", day)
	case ScopeSession:
		if active != nil {
			q.Set("session_id", strconv.FormatInt(active.ID, 10))
		}
	}
	return q
}
