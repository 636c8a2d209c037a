package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"rollcall/internal/api"
	"rollcall/internal/bus"
)

// fakeService is a minimal in-memory stand-in for the attendance service,
// implementing just enough of its HTTP interface for workflow tests.
type fakeService struct {
	mu            sync.Mutex
	active        *api.Session
	nextID        int64
	students      []api.Student
	rows          []api.Record
	loggedSession map[string]bool
	loggedDay     map[string]bool
	calls         []string
	lastQuery     url.Values
	srv           *httptest.Server
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{
		nextID:        1,
		loggedSession: make(map[string]bool),
		loggedDay:     make(map[string]bool),
	}

	mux := http.NewServeMux()
	handle(mux, http.MethodGet, "/api/session", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"active_session": f.active})
	})
	handle(mux, http.MethodPost, "/api/session/start", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var body struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		s := &api.Session{ID: f.nextID, Name: body.Name, StartTS: time.Now().Format(time.RFC3339)}
		f.nextID++
		f.active = s
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"active_session": s, "message": "Session started"})
	})
	handle(mux, http.MethodPost, "/api/session/end", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.active == nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "No active session to end"})
			return
		}
		f.active = nil
		writeJSON(w, http.StatusOK, map[string]any{"message": "Session ended"})
	})
	handle(mux, http.MethodPost, "/api/validate", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var body struct {
			MAC  string `json:"mac_address"`
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		var matched *api.Student
		for i := range f.students {
			s := &f.students[i]
			if (body.MAC != "" && strings.EqualFold(s.MAC, body.MAC)) ||
				(body.Name != "" && strings.EqualFold(s.Name, body.Name)) {
				matched = s
				break
			}
		}
		if matched == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"status": "invalid"})
			return
		}
		now := time.Now().Format(time.RFC3339)
		if f.active != nil {
			key := matched.StudentID + "|" + strconv.FormatInt(f.active.ID, 10)
			if f.loggedSession[key] {
				writeJSON(w, http.StatusOK, map[string]any{
					"status": "valid", "logged": false,
					"reason": api.ReasonAlreadyInSession, "scope": "session",
					"student": matched,
				})
				return
			}
			f.loggedSession[key] = true
			writeJSON(w, http.StatusOK, map[string]any{
				"status": "valid", "logged": true, "timestamp": now,
				"scope": "session", "student": matched,
			})
			return
		}
		if f.loggedDay[matched.StudentID] {
			writeJSON(w, http.StatusOK, map[string]any{
				"status": "valid", "logged": false,
				"reason": api.ReasonAlreadyToday, "scope": "day",
				"student": matched,
			})
			return
		}
		f.loggedDay[matched.StudentID] = true
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "valid", "logged": true, "timestamp": now,
			"scope": "day", "student": matched,
		})
	})
	handle(mux, http.MethodGet, "/api/attendance", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		f.lastQuery = r.URL.Query()
		rows := f.rows
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, rows)
	})
	handle(mux, http.MethodGet, "/api/reports/summary", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusOK, api.Summary{TotalStudents: 10, Present: 4, Absent: 6})
	})
	handle(mux, http.MethodGet, "/api/students", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		students := f.students
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, students)
	})
	handle(mux, http.MethodGet, "/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusOK, []api.Session{})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeService) record(r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.mu.Unlock()
}

func (f *fakeService) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// handle registers h for a single method, matching the Go 1.22+
// "METHOD /path" mux patterns on toolchains that predate them.
func handle(mux *http.ServeMux, method, path string, h http.HandlerFunc) {
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestApp(t *testing.T, f *fakeService, opts ...Option) (*App, *bus.Bus) {
	t.Helper()
	events := bus.New()
	client := api.New(f.srv.URL, 2*time.Second)
	return New(client, events, opts...), events
}
