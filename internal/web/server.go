// Package web is the browser-facing adapter: a local gin gateway that maps
// UI routes onto the workflow core and serves the embedded page.
package web

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/api"
	"rollcall/internal/config"
	"rollcall/internal/core"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/roster"
	"rollcall/internal/scanner"
)

// Server wires the core into HTTP routes.
type Server struct {
	app     *core.App
	chooser scanner.Chooser
	engine  *gin.Engine
}

// New builds the gateway with the standard middleware stack.
func New(cfg config.App, app *core.App, chooser scanner.Chooser, limiter httpmiddleware.Limiter) *Server {
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	if limiter != nil {
		r.Use(httpmiddleware.GinMiddleware(limiter))
	}

	s := &Server{app: app, chooser: chooser, engine: r}
	s.routes()
	return s
}

// Handler exposes the underlying engine for http.Server and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexPage)
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		backend := s.app.ActiveSession(c.Request.Context()) != nil
		// A nil session is also healthy; distinguish via a cheap list call.
		_, err := s.app.RefreshSessions(c.Request.Context())
		status := http.StatusOK
		if err != nil {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "backend": err == nil, "session_active": backend})
	})

	ui := r.Group("/ui")

	ui.GET("/state", func(c *gin.Context) {
		active := s.app.ActiveSession(c.Request.Context())
		students, _ := s.app.RefreshStudents(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"active_session": active,
			"total_students": len(students),
		})
	})

	ui.GET("/students", func(c *gin.Context) {
		students, err := s.app.RefreshStudents(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load students"})
			return
		}
		c.JSON(http.StatusOK, students)
	})

	ui.POST("/students", func(c *gin.Context) {
		var req struct {
			StudentID string `json:"student_id" binding:"required"`
			Name      string `json:"name" binding:"required"`
			MAC       string `json:"mac"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		st, err := s.app.AddStudent(c.Request.Context(), req.StudentID, req.Name, req.MAC)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Student added", "student": st})
	})

	ui.POST("/students/upload", func(c *gin.Context) {
		var req struct {
			CSV string `json:"csv" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "csv data required"})
			return
		}
		// Validate locally before shipping the raw text upstream.
		parsed, err := roster.Parse(strings.NewReader(req.CSV))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(parsed.Entries) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no valid roster rows"})
			return
		}
		msg, err := s.app.UploadRoster(c.Request.Context(), req.CSV)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msg, "parsed": len(parsed.Entries), "skipped": parsed.Skipped})
	})

	ui.GET("/session", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"active_session": s.app.ActiveSession(c.Request.Context())})
	})

	ui.GET("/sessions", func(c *gin.Context) {
		sessions, err := s.app.RefreshSessions(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load sessions"})
			return
		}
		c.JSON(http.StatusOK, sessions)
	})

	ui.POST("/session/start", func(c *gin.Context) {
		var req struct {
			Name string `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sess, err := s.app.StartSession(c.Request.Context(), req.Name)
		if err != nil {
			if errors.Is(err, core.ErrEmptySessionName) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"active_session": sess, "message": "Session started"})
	})

	ui.POST("/session/end", func(c *gin.Context) {
		msg, err := s.app.EndSession(c.Request.Context())
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msg, "active_session": s.app.Active()})
	})

	ui.GET("/attendance", func(c *gin.Context) {
		scope := core.ParseScope(c.Query("scope"))
		s.app.ActiveSession(c.Request.Context())
		rows, err := s.app.Attendance(c.Request.Context(), scope)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load attendance"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rows": rows, "scope": scope})
	})

	ui.POST("/attendance", func(c *gin.Context) {
		var req struct {
			Input string `json:"input" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "student id or name required"})
			return
		}
		msg, err := s.app.MarkAttendance(c.Request.Context(), req.Input)
		if err != nil {
			if errors.Is(err, api.ErrUnknownStudent) {
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msg})
	})

	// Server-side discovery for kiosks without a capable browser.
	ui.POST("/scan", func(c *gin.Context) {
		out := s.app.Scan(c.Request.Context(), s.chooser)
		c.JSON(http.StatusOK, scanJSON(out))
	})

	// Browser-side discovery: the page's own device chooser already ran.
	ui.POST("/validate", func(c *gin.Context) {
		var req struct {
			MACAddress string `json:"mac_address"`
			Name       string `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		out := s.app.ValidateDevice(c.Request.Context(), scanner.Device{ID: req.MACAddress, Name: req.Name})
		c.JSON(http.StatusOK, scanJSON(out))
	})

	ui.GET("/summary", func(c *gin.Context) {
		var (
			summary api.Summary
			err     error
		)
		if sid := c.Query("session_id"); sid != "" {
			id, perr := strconv.ParseInt(sid, 10, 64)
			if perr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session_id"})
				return
			}
			summary, err = s.app.SessionSummary(c.Request.Context(), id)
		} else {
			summary, err = s.app.TodaySummary(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load summary"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	ui.GET("/export", func(c *gin.Context) {
		scope := core.ParseScope(c.Query("scope"))
		format := c.DefaultQuery("format", "csv")
		s.app.ActiveSession(c.Request.Context())
		name, data, err := s.app.Export(c.Request.Context(), scope, format)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "export failed"})
			return
		}
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
		c.Data(http.StatusOK, contentTypeFor(format), data)
	})
}

func scanJSON(out core.ScanOutcome) gin.H {
	h := gin.H{
		"attempt_id": out.AttemptID,
		"state":      out.State,
		"status":     out.Status,
	}
	if out.Student != nil {
		h["student"] = out.Student
	}
	if out.Timestamp != "" {
		h["timestamp"] = out.Timestamp
	}
	if out.Scope != "" {
		h["scope"] = out.Scope
	}
	if out.Reason != "" {
		h["reason"] = out.Reason
	}
	return h
}

func statusFor(err error) int {
	var se *api.StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return http.StatusBadGateway
}

func contentTypeFor(format string) string {
	switch format {
	case "pdf":
		return "application/pdf"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	}
}
