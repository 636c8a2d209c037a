package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall/internal/api"
	"rollcall/internal/bus"
	"rollcall/internal/config"
	"rollcall/internal/core"
	"rollcall/internal/scanner"
)

// fakeBackend stands in for the attendance API and records what it saw.
type fakeBackend struct {
	mu        sync.Mutex
	calls     []string
	lastQuery url.Values
	active    *api.Session
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	handle(mux, http.MethodGet, "/api/session", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		active := f.active
		f.mu.Unlock()
		writeJSON(w, map[string]any{"active_session": active})
	})
	handle(mux, http.MethodPost, "/api/session/start", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var req struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.active = &api.Session{ID: 7, Name: req.Name, StartTS: "2026-01-05 09:00:00"}
		f.mu.Unlock()
		writeJSON(w, map[string]any{"active_session": f.active, "message": "Session started"})
	})
	handle(mux, http.MethodGet, "/api/attendance", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		f.lastQuery = r.URL.Query()
		f.mu.Unlock()
		writeJSON(w, []api.Record{{TS: "2026-01-05 09:05:00", StudentID: "S1", Name: "Ada"}})
	})
	handle(mux, http.MethodPost, "/api/validate", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, api.ValidateResult{
			Status:    "success",
			Logged:    true,
			Scope:     "session",
			Student:   api.Student{StudentID: "S1", Name: "Ada", MAC: "AA:BB"},
			Timestamp: "2026-01-05 09:05:00",
		})
	})
	handle(mux, http.MethodGet, "/api/students", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, []api.Student{{StudentID: "S1", Name: "Ada", MAC: "AA:BB"}})
	})
	handle(mux, http.MethodGet, "/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, []api.Session{})
	})
	handle(mux, http.MethodGet, "/api/attendance/export", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		f.lastQuery = r.URL.Query()
		f.mu.Unlock()
		w.Header().Set("Content-Disposition", `attachment; filename="attendance export 2026-01-05.csv"`)
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("Student ID,Name\nS1,Ada\n"))
	})
	handle(mux, http.MethodGet, "/api/reports/summary", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		f.lastQuery = r.URL.Query()
		f.mu.Unlock()
		writeJSON(w, api.Summary{TotalStudents: 10, Present: 4, Absent: 6})
	})
	return mux
}

func (f *fakeBackend) record(r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.mu.Unlock()
}

func (f *fakeBackend) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeBackend) query() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQuery
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

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestServer(t *testing.T, f *fakeBackend) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	backend := httptest.NewServer(f.handler())
	t.Cleanup(backend.Close)

	app := core.New(api.New(backend.URL, 2*time.Second), bus.New(), core.WithLimit(500))
	cfg := config.App{Env: "test", APIBaseURL: backend.URL}
	return New(cfg, app, scanner.Static{Supported: false}, nil)
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(t, &fakeBackend{})
	w := do(s, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(w.Body.String(), "<html") {
		t.Fatal("page body missing html")
	}
	for _, id := range []string{`id="rows"`, `id="students"`, `id="reportSession"`, `id="chart"`} {
		if !strings.Contains(w.Body.String(), id) {
			t.Fatalf("page is missing element %s", id)
		}
	}
}

func TestExportFilenameQuoting(t *testing.T) {
	f := &fakeBackend{}
	s := newTestServer(t, f)

	w := do(s, http.MethodGet, "/ui/export?scope=all&format=csv", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	cd := w.Header().Get("Content-Disposition")
	if cd != `attachment; filename="attendance export 2026-01-05.csv"` {
		t.Fatalf("filename not quoted: %q", cd)
	}
	q := f.query()
	if q.Get("format") != "csv" {
		t.Fatalf("format not forwarded: %v", q)
	}
	if q.Get("limit") != "" {
		t.Fatalf("export must not cap rows: %v", q)
	}
}

func TestSummarySelection(t *testing.T) {
	f := &fakeBackend{}
	s := newTestServer(t, f)

	t.Run("session id is forwarded", func(t *testing.T) {
		w := do(s, http.MethodGet, "/ui/summary?session_id=7", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if q := f.query(); q.Get("session_id") != "7" {
			t.Fatalf("session_id not forwarded: %v", q)
		}
	})

	t.Run("no session means today", func(t *testing.T) {
		w := do(s, http.MethodGet, "/ui/summary", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if q := f.query(); q.Get("date") != core.LocalDate(time.Now()) {
			t.Fatalf("expected today's date param, got %v", q)
		}
	})

	t.Run("a malformed session id is rejected", func(t *testing.T) {
		w := do(s, http.MethodGet, "/ui/summary?session_id=nope", "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}

func TestStartSessionValidation(t *testing.T) {
	f := &fakeBackend{}
	s := newTestServer(t, f)

	t.Run("blank name is rejected locally", func(t *testing.T) {
		w := do(s, http.MethodPost, "/ui/session/start", `{"name":"   "}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		if n := f.count("POST /api/session/start"); n != 0 {
			t.Fatalf("blank name must not reach the backend, saw %d calls", n)
		}
	})

	t.Run("valid name starts a session", func(t *testing.T) {
		w := do(s, http.MethodPost, "/ui/session/start", `{"name":"CS101"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var out struct {
			ActiveSession *api.Session `json:"active_session"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out.ActiveSession == nil || out.ActiveSession.Name != "CS101" {
			t.Fatalf("unexpected session %+v", out.ActiveSession)
		}
	})
}

func TestAttendanceScope(t *testing.T) {
	f := &fakeBackend{}
	s := newTestServer(t, f)

	t.Run("all scope sends no filters", func(t *testing.T) {
		w := do(s, http.MethodGet, "/ui/attendance?scope=all", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		q := f.query()
		if q.Get("session_id") != "" || q.Get("date_from") != "" {
			t.Fatalf("all scope must be unfiltered, got %v", q)
		}
		if q.Get("limit") != "500" {
			t.Fatalf("limit missing: %v", q)
		}
	})

	t.Run("today scope sends the local date range", func(t *testing.T) {
		w := do(s, http.MethodGet, "/ui/attendance?scope=today", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		q := f.query()
		today := core.LocalDate(time.Now())
		if q.Get("date_from") != today || q.Get("date_to") != today {
			t.Fatalf("expected today filter %s, got %v", today, q)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("empty discovery result never reaches the backend", func(t *testing.T) {
		f := &fakeBackend{}
		s := newTestServer(t, f)

		w := do(s, http.MethodPost, "/ui/validate", `{"mac_address":"","name":""}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var out struct {
			State string `json:"state"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out.State != string(core.ScanFailed) {
			t.Fatalf("expected failed state, got %q", out.State)
		}
		if n := f.count("POST /api/validate"); n != 0 {
			t.Fatalf("empty payload must not reach the backend, saw %d calls", n)
		}
	})

	t.Run("a discovered device is validated", func(t *testing.T) {
		f := &fakeBackend{}
		s := newTestServer(t, f)

		w := do(s, http.MethodPost, "/ui/validate", `{"mac_address":"AA:BB","name":"Ada Phone"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var out struct {
			State   string       `json:"state"`
			Student *api.Student `json:"student"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out.State != string(core.ScanAccepted) {
			t.Fatalf("expected accepted, got %q: %s", out.State, w.Body.String())
		}
		if out.Student == nil || out.Student.StudentID != "S1" {
			t.Fatalf("student missing from response: %s", w.Body.String())
		}
	})
}

func TestScanWithoutCapability(t *testing.T) {
	f := &fakeBackend{}
	s := newTestServer(t, f)

	w := do(s, http.MethodPost, "/ui/scan", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.State != string(core.ScanUnsupported) {
		t.Fatalf("expected unsupported, got %q", out.State)
	}
	if n := f.count("POST /api/validate"); n != 0 {
		t.Fatalf("unsupported scan must not call the backend, saw %d", n)
	}
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := &fakeBackend{}
	backend := httptest.NewServer(f.handler())
	t.Cleanup(backend.Close)

	app := core.New(api.New(backend.URL, 2*time.Second), bus.New())
	cfg := config.App{Env: "test", APIBaseURL: backend.URL}
	s := New(cfg, app, scanner.Static{}, denyAll{})

	w := do(s, http.MethodGet, "/ui/students", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) bool { return false }
