package core

import (
	"context"

	"rollcall/internal/api"
	"rollcall/internal/metrics"
)

// TodaySummary fetches the present/absent breakdown for the current calendar
// day, regardless of any active session. The dashboard uses this.
func (a *App) TodaySummary(ctx context.Context) (api.Summary, error) {
	metrics.RefreshesTotal.WithLabelValues("summary").Inc()
	s, err := a.api.SummaryForDate(ctx, LocalDate(a.now()))
	if err != nil {
		metrics.BackendErrors.Inc()
	}
	return s, err
}

// SessionSummary fetches the present/absent breakdown for one session. The
// reports view uses this with a user-selected session id.
func (a *App) SessionSummary(ctx context.Context, sessionID int64) (api.Summary, error) {
	metrics.RefreshesTotal.WithLabelValues("summary").Inc()
	s, err := a.api.SummaryForSession(ctx, sessionID)
	if err != nil {
		metrics.BackendErrors.Inc()
	}
	return s, err
}
