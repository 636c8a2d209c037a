package core

import "sync"

// View names for refresh sequencing.
const (
	ViewAttendance = "attendance"
	ViewSummary    = "summary"
	ViewStudents   = "students"
	ViewSessions   = "sessions"
)

// Views hands out a monotonically increasing token per view. Two overlapping
// fetches for the same view can complete out of order; adapters tag each
// fetch with Next and drop any response whose token is no longer Latest.
type Views struct {
	mu  sync.Mutex
	seq map[string]uint64
}

// NewViews creates an empty token registry.
func NewViews() *Views {
	return &Views{seq: make(map[string]uint64)}
}

// Next issues the next token for a view, superseding all earlier ones.
func (v *Views) Next(view string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq[view]++
	return v.seq[view]
}

// Latest reports whether the token is still the most recent issued for the
// view.
func (v *Views) Latest(view string, token uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.seq[view] == token
}
