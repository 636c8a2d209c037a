package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"rollcall/internal/api"
	"rollcall/internal/bus"
	"rollcall/internal/config"
	"rollcall/internal/core"
	"rollcall/internal/roster"
	"rollcall/internal/scanner"
	"rollcall/internal/tui"
)

func main() {
	var (
		listOnly   = flag.Bool("list", false, "print attendance rows and exit")
		scopeFlag  = flag.String("scope", "session", "scope for -list: session, today or all")
		rosterPath = flag.String("roster", "", "validate and upload a roster CSV, then exit")
	)
	flag.Parse()

	cfg := config.Load()
	client := api.New(cfg.APIBaseURL, cfg.RequestTimeout)
	events := bus.New()
	app := core.New(client, events, core.WithLimit(cfg.ListLimit))
	ctx := context.Background()

	if *rosterPath != "" {
		parsed, raw, err := roster.Load(*rosterPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "roster: %v\n", err)
			os.Exit(1)
		}
		if len(parsed.Entries) == 0 {
			fmt.Fprintln(os.Stderr, "roster: no valid rows")
			os.Exit(1)
		}
		msg, err := app.UploadRoster(ctx, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s (%d rows parsed, %d skipped)\n", msg, len(parsed.Entries), parsed.Skipped)
		return
	}

	if *listOnly {
		app.ActiveSession(ctx)
		rows, err := app.Attendance(ctx, core.ParseScope(*scopeFlag))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, r := range rows {
			session := "-"
			if r.SessionID != nil {
				session = fmt.Sprintf("%d", *r.SessionID)
			}
			fmt.Printf("%-20s │ %-12s │ %-24s │ %-18s │ %s\n",
				r.TS, r.StudentID, r.Name, r.MAC, session)
		}
		return
	}

	chooser := scanner.NewBlueZ(cfg.BluetoothctlPath, cfg.ScanWindow)
	m := tui.NewModel(app, chooser)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
