// Package metrics exposes the client's prometheus instruments. They are
// served by the kiosk gateway's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ScansTotal counts scan attempts by terminal outcome.
	ScansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_scans_total",
		Help: "Scan attempts by terminal outcome.",
	}, []string{"outcome"})

	// RefreshesTotal counts view refreshes by view name.
	RefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_view_refreshes_total",
		Help: "View refreshes triggered by user actions or session changes.",
	}, []string{"view"})

	// BackendErrors counts failed calls to the attendance service.
	BackendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_backend_errors_total",
		Help: "Transport or status failures talking to the attendance service.",
	})
)

func init() {
	prometheus.MustRegister(ScansTotal, RefreshesTotal, BackendErrors)
}
