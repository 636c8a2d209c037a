// Package api is the client for the remote attendance service. The service
// owns the student registry, the session log and all attendance storage; this
// package only speaks its HTTP interface.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Sentinel errors for the two structured failures the service reports.
var (
	// ErrNoActiveSession is returned by EndSession when the service has no
	// session open.
	ErrNoActiveSession = errors.New("no active session")
	// ErrUnknownStudent is returned when an identifier matches no student.
	ErrUnknownStudent = errors.New("unknown student")
)

// Session is one lecture session. EndTS is nil while the session is open.
type Session struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	StartTS string  `json:"start_ts"`
	EndTS   *string `json:"end_ts"`
}

// Student mirrors the registry's wire shape. The service serializes class
// list entries with spaced, capitalized keys.
type Student struct {
	StudentID string `json:"Student ID"`
	Name      string `json:"Name"`
	MAC       string `json:"MAC"`
}

// Record is one attendance row. SessionID is nil for rows logged outside any
// session.
type Record struct {
	ID        int64  `json:"id"`
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	MAC       string `json:"mac"`
	TS        string `json:"ts"`
	SessionID *int64 `json:"session_id"`
}

// ValidateResult is the structured outcome of a scan validation. Logged=false
// with a Reason means the student matched but was already recorded within the
// active scope.
type ValidateResult struct {
	Status    string   `json:"status"`
	Logged    bool     `json:"logged"`
	Reason    string   `json:"reason"`
	Scope     string   `json:"scope"`
	Student   Student  `json:"student"`
	Timestamp string   `json:"timestamp"`
	Date      string   `json:"date"`
	Session   *Session `json:"session"`
}

// Reason codes carried by ValidateResult.
const (
	ReasonAlreadyInSession = "already_logged_in_session"
	ReasonAlreadyToday     = "already_logged_today"
)

// Summary is the present/absent breakdown for a session or a day.
type Summary struct {
	TotalStudents int    `json:"total_students"`
	Present       int    `json:"present"`
	Absent        int    `json:"absent"`
	Scope         string `json:"scope"`
}

// Client calls the attendance service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client with the given request timeout. Every call is also
// bounded by its context, so callers can cancel earlier.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Students fetches the full class list.
func (c *Client) Students(ctx context.Context) ([]Student, error) {
	var out []Student
	if err := c.doJSON(ctx, http.MethodGet, "/api/students", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddStudent registers a single student.
func (c *Client) AddStudent(ctx context.Context, studentID, name, mac string) (Student, error) {
	body := map[string]string{"student_id": studentID, "name": name, "mac": mac}
	var out struct {
		Message string  `json:"message"`
		Student Student `json:"student"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/students", nil, body, &out); err != nil {
		return Student{}, err
	}
	return out.Student, nil
}

// UploadRoster replaces the class list with the given raw CSV text.
func (c *Client) UploadRoster(ctx context.Context, csvText string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/students/upload", nil, map[string]string{"csv": csvText}, &out)
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

// ActiveSession returns the currently open session, or nil when none is open.
func (c *Client) ActiveSession(ctx context.Context) (*Session, error) {
	var out struct {
		ActiveSession *Session `json:"active_session"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/session", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.ActiveSession, nil
}

// StartSession opens a new session. The service closes any previous open
// session itself.
func (c *Client) StartSession(ctx context.Context, name string) (*Session, error) {
	var out struct {
		ActiveSession *Session `json:"active_session"`
		Message       string   `json:"message"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/session/start", nil, map[string]string{"name": name}, &out)
	if err != nil {
		return nil, err
	}
	if out.ActiveSession == nil {
		return nil, fmt.Errorf("service returned no session")
	}
	return out.ActiveSession, nil
}

// EndSession closes the open session. Returns ErrNoActiveSession when the
// service reports nothing to end.
func (c *Client) EndSession(ctx context.Context) error {
	var out struct {
		Message string `json:"message"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/session/end", nil, struct{}{}, &out)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusBadRequest {
			return ErrNoActiveSession
		}
		return err
	}
	return nil
}

// Sessions lists all sessions, newest first.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	var out []Session
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Attendance returns attendance rows for the given query. Use the core query
// builder to derive values from a scope.
func (c *Client) Attendance(ctx context.Context, query url.Values) ([]Record, error) {
	var out []Record
	if err := c.doJSON(ctx, http.MethodGet, "/api/attendance", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkAttendance logs attendance manually by student id or name. The service
// answers 404 for an unknown student and 400 for a duplicate within scope;
// the duplicate message is surfaced as a StatusError.
func (c *Client) MarkAttendance(ctx context.Context, studentID, name string) (string, error) {
	body := map[string]string{"student_id": studentID, "name": name}
	var out struct {
		Message   string  `json:"message"`
		Student   Student `json:"student"`
		Timestamp string  `json:"timestamp"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/attendance", nil, body, &out)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return "", ErrUnknownStudent
		}
		return "", err
	}
	return out.Message, nil
}

// Validate resolves a scanned or typed identifier. At least one of macAddress
// or name must be non-empty; the caller is expected to enforce that before
// reaching the network.
func (c *Client) Validate(ctx context.Context, macAddress, name string) (*ValidateResult, error) {
	payload := map[string]string{}
	if macAddress != "" {
		payload["mac_address"] = macAddress
	} else {
		payload["name"] = name
	}
	var out ValidateResult
	err := c.doJSON(ctx, http.MethodPost, "/api/validate", nil, payload, &out)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, ErrUnknownStudent
		}
		return nil, err
	}
	return &out, nil
}

// ExportURL builds the export download URL for the given query. The query
// should already carry format and scope filters.
func (c *Client) ExportURL(query url.Values) string {
	u := c.BaseURL + "/api/attendance/export"
	if enc := query.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// Export downloads an export file and returns its suggested filename and
// contents.
func (c *Client) Export(ctx context.Context, query url.Values) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ExportURL(query), nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("attendance service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", nil, &StatusError{Code: resp.StatusCode, Body: string(bodyBytes)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read export: %w", err)
	}
	name := "attendance_export"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if fn := params["filename"]; fn != "" {
			name = fn
		}
	}
	return name, data, nil
}

// SummaryForDate fetches the present/absent breakdown for a calendar day.
func (c *Client) SummaryForDate(ctx context.Context, date string) (Summary, error) {
	q := url.Values{}
	q.Set("date", date)
	var out Summary
	if err := c.doJSON(ctx, http.MethodGet, "/api/reports/summary", q, nil, &out); err != nil {
		return Summary{}, err
	}
	return out, nil
}

// SummaryForSession fetches the present/absent breakdown for one session.
func (c *Client) SummaryForSession(ctx context.Context, sessionID int64) (Summary, error) {
	q := url.Values{}
	q.Set("session_id", strconv.FormatInt(sessionID, 10))
	var out Summary
	if err := c.doJSON(ctx, http.MethodGet, "/api/reports/summary", q, nil, &out); err != nil {
		return Summary{}, err
	}
	return out, nil
}

// Healthy reports whether the service answers at all.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.ActiveSession(ctx)
	return err == nil
}

// StatusError carries a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("attendance service error %d: %s", e.Code, e.Body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.BaseURL + path
	if enc := query.Encode(); enc != "" {
		u += "?" + enc
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("attendance service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: string(bodyBytes)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
