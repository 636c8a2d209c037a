// Package tui is the terminal adapter for the attendance workflow.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rollcall/internal/api"
	"rollcall/internal/bus"
	"rollcall/internal/core"
	"rollcall/internal/roster"
	"rollcall/internal/scanner"
)

type mode int

const (
	modeList mode = iota
	modeSessionName
	modeManualMark
	modeRosterPath
)

// Model is the bubbletea model around the workflow core.
type Model struct {
	app     *core.App
	chooser scanner.Chooser
	events  <-chan bus.Event

	scope   core.Scope
	rows    []api.Record
	active  *api.Session
	summary *SummaryPanel
	status  string

	mode   mode
	input  textinput.Model
	cursor int
	offset int
	width  int
	height int

	quitting bool
}

type rowsMsg struct {
	token uint64
	rows  []api.Record
	err   error
}

type sessionMsg struct {
	active *api.Session
	status string
}

type summaryMsg struct {
	token   uint64
	summary api.Summary
	err     error
}

type scanMsg struct {
	out core.ScanOutcome
}

type markMsg struct {
	status string
}

type busMsg struct {
	evt bus.Event
}

// NewModel builds the terminal model.
func NewModel(app *core.App, chooser scanner.Chooser) Model {
	ti := textinput.New()
	ti.CharLimit = 100

	return Model{
		app:     app,
		chooser: chooser,
		events:  app.Subscribe(context.Background()),
		scope:   core.ScopeSession,
		input:   ti,
		width:   120,
		height:  30,
		status:  "Loading...",
	}
}

// Init kicks off the first refresh and starts listening for refresh events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshRows(), m.refreshSummary(), m.waitForEvent())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampOffset()
		return m, nil

	case rowsMsg:
		if !m.app.Views.Latest(core.ViewAttendance, msg.token) {
			return m, nil
		}
		if msg.err != nil {
			m.status = "Failed to load attendance."
			return m, nil
		}
		m.rows = msg.rows
		m.active = m.app.Active()
		m.status = fmt.Sprintf("Loaded %d attendance rows.", len(msg.rows))
		m.clampOffset()
		return m, nil

	case summaryMsg:
		if !m.app.Views.Latest(core.ViewSummary, msg.token) {
			return m, nil
		}
		if msg.err == nil {
			m.summary = NewSummaryPanel(msg.summary, m.width/2)
		}
		return m, nil

	case sessionMsg:
		m.active = msg.active
		m.status = msg.status
		return m, tea.Batch(m.refreshRows(), m.refreshSummary())

	case scanMsg:
		m.status = msg.out.Status
		if msg.out.State == core.ScanAccepted {
			return m, tea.Batch(m.refreshRows(), m.refreshSummary())
		}
		return m, nil

	case markMsg:
		m.status = msg.status
		return m, tea.Batch(m.refreshRows(), m.refreshSummary())

	case busMsg:
		return m, tea.Batch(m.refreshRows(), m.refreshSummary(), m.waitForEvent())

	case tea.KeyMsg:
		switch m.mode {
		case modeList:
			return m.updateList(msg)
		default:
			return m.updateInput(msg)
		}
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.clampOffset()
		}

	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
			m.clampOffset()
		}

	case "tab":
		m.scope = m.scope.Next()
		m.cursor = 0
		return m, m.refreshRows()

	case "r":
		return m, tea.Batch(m.refreshRows(), m.refreshSummary())

	case "s":
		m.status = "Scanning..."
		return m, m.scanCmd()

	case "n":
		m.mode = modeSessionName
		m.input.Placeholder = "session name"
		m.input.SetValue("")
		m.input.Focus()

	case "m":
		m.mode = modeManualMark
		m.input.Placeholder = "student id or name"
		m.input.SetValue("")
		m.input.Focus()

	case "u":
		m.mode = modeRosterPath
		m.input.Placeholder = "path to roster csv"
		m.input.SetValue("")
		m.input.Focus()

	case "e":
		return m, m.endSessionCmd()
	}

	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.mode = modeList
		return m, nil

	case "enter":
		value := m.input.Value()
		entered := m.mode
		m.input.Blur()
		m.mode = modeList
		switch entered {
		case modeSessionName:
			return m, m.startSessionCmd(value)
		case modeRosterPath:
			return m, m.rosterCmd(value)
		default:
			return m, m.markCmd(value)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// waitForEvent blocks on the refresh bus. Tokens on the resulting fetches
// keep the extra refreshes harmless when the change came from this model's
// own command.
func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-m.events
		if !ok {
			return nil
		}
		return busMsg{evt: evt}
	}
}

func (m Model) refreshRows() tea.Cmd {
	token := m.app.Views.Next(core.ViewAttendance)
	scope := m.scope
	return func() tea.Msg {
		ctx := context.Background()
		m.app.ActiveSession(ctx)
		rows, err := m.app.Attendance(ctx, scope)
		return rowsMsg{token: token, rows: rows, err: err}
	}
}

func (m Model) refreshSummary() tea.Cmd {
	token := m.app.Views.Next(core.ViewSummary)
	return func() tea.Msg {
		s, err := m.app.TodaySummary(context.Background())
		return summaryMsg{token: token, summary: s, err: err}
	}
}

func (m Model) scanCmd() tea.Cmd {
	return func() tea.Msg {
		return scanMsg{out: m.app.Scan(context.Background(), m.chooser)}
	}
}

func (m Model) startSessionCmd(name string) tea.Cmd {
	return func() tea.Msg {
		sess, err := m.app.StartSession(context.Background(), name)
		if err != nil {
			return sessionMsg{active: m.app.Active(), status: "Could not start session: " + err.Error()}
		}
		return sessionMsg{active: sess, status: "Session started: " + sess.Name}
	}
}

func (m Model) endSessionCmd() tea.Cmd {
	return func() tea.Msg {
		msg, err := m.app.EndSession(context.Background())
		if err != nil {
			return sessionMsg{active: m.app.Active(), status: "Failed to end session."}
		}
		return sessionMsg{active: m.app.Active(), status: msg}
	}
}

func (m Model) rosterCmd(path string) tea.Cmd {
	return func() tea.Msg {
		parsed, raw, err := roster.Load(strings.TrimSpace(path))
		if err != nil {
			return markMsg{status: "Roster: " + err.Error()}
		}
		if len(parsed.Entries) == 0 {
			return markMsg{status: "Roster has no valid rows."}
		}
		msg, err := m.app.UploadRoster(context.Background(), raw)
		if err != nil {
			return markMsg{status: "Roster upload failed: " + err.Error()}
		}
		return markMsg{status: fmt.Sprintf("%s (%d rows, %d skipped)", msg, len(parsed.Entries), parsed.Skipped)}
	}
}

func (m Model) markCmd(input string) tea.Cmd {
	return func() tea.Msg {
		msg, err := m.app.MarkAttendance(context.Background(), strings.TrimSpace(input))
		if err != nil {
			return markMsg{status: "Manual mark failed: " + err.Error()}
		}
		return markMsg{status: msg}
	}
}

// View renders the terminal UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := titleStyle.Render("Rollcall")
	scopeInfo := dimStyle.Render(fmt.Sprintf("  [%s]  %d rows", m.scope, len(m.rows)))
	b.WriteString(title + scopeInfo + "\n")

	if m.active != nil {
		b.WriteString(activeBadge.Render("Active: "+m.active.Name) + "\n")
	} else {
		b.WriteString(idleBadge.Render("No active session") + "\n")
	}

	b.WriteString(m.renderHeader() + "\n")

	visible := m.visibleRows()
	end := m.offset + visible
	if end > len(m.rows) {
		end = len(m.rows)
	}
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(m.rows[i], i == m.cursor) + "\n")
	}
	for i := end - m.offset; i < visible; i++ {
		b.WriteString("\n")
	}

	if m.summary != nil {
		b.WriteString(m.summary.Render() + "\n")
	}

	switch m.mode {
	case modeSessionName:
		b.WriteString(statusBarStyle.Render("New session: ") + m.input.View())
	case modeManualMark:
		b.WriteString(statusBarStyle.Render("Mark: ") + m.input.View())
	case modeRosterPath:
		b.WriteString(statusBarStyle.Render("Roster: ") + m.input.View())
	default:
		b.WriteString(statusBarStyle.Render(m.status) + "\n")
		b.WriteString(helpStyle.Render("  s: scan  n: new session  e: end  m: mark  u: roster  Tab: scope  r: refresh  q: quit"))
	}

	return b.String()
}

type colWidths struct {
	ts      int
	id      int
	name    int
	mac     int
	session int
}

func (m Model) colWidths() colWidths {
	w := colWidths{ts: 19, id: 12, mac: 18, session: 7}
	used := w.ts + w.id + w.mac + w.session + 6
	w.name = m.width - used
	if w.name < 12 {
		w.name = 12
	}
	return w
}

func (m Model) renderHeader() string {
	w := m.colWidths()
	cols := []string{
		pad("Timestamp", w.ts),
		pad("Student ID", w.id),
		pad("Name", w.name),
		pad("MAC", w.mac),
		pad("Session", w.session),
	}
	return headerStyle.Render(strings.Join(cols, " "))
}

func (m Model) renderRow(r api.Record, selected bool) string {
	w := m.colWidths()
	session := ""
	if r.SessionID != nil {
		session = fmt.Sprintf("%d", *r.SessionID)
	}
	cols := []string{
		pad(r.TS, w.ts),
		pad(r.StudentID, w.id),
		pad(r.Name, w.name),
		pad(r.MAC, w.mac),
		pad(session, w.session),
	}
	row := strings.Join(cols, " ")
	if selected {
		row = selectedStyle.Render(row)
		row = lipgloss.PlaceHorizontal(m.width, lipgloss.Left, row)
	}
	return row
}

func (m Model) visibleRows() int {
	rows := m.height - 8
	if m.summary == nil {
		rows += 3
	}
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (m *Model) clampOffset() {
	visible := m.visibleRows()
	if m.cursor >= len(m.rows) {
		m.cursor = max(0, len(m.rows)-1)
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func pad(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return string(runes[:width])
	}
	return s + strings.Repeat(" ", width-len(runes))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
