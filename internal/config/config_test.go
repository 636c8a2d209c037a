package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		for _, key := range []string{"API_BASE_URL", "HTTP_PORT", "REQUEST_TIMEOUT", "LIST_LIMIT", "RATE_LIMIT_BACKEND"} {
			t.Setenv(key, "")
		}

		cfg := Load()
		if cfg.APIBaseURL != "http://localhost:5000" {
			t.Fatalf("unexpected default base url %q", cfg.APIBaseURL)
		}
		if cfg.HTTPPort != "8081" {
			t.Fatalf("expected default port 8081, got %q", cfg.HTTPPort)
		}
		if cfg.RequestTimeout != 10*time.Second {
			t.Fatalf("expected 10s timeout, got %s", cfg.RequestTimeout)
		}
		if cfg.ListLimit != 500 {
			t.Fatalf("expected limit 500, got %d", cfg.ListLimit)
		}
		if cfg.RateLimitBackend != "memory" {
			t.Fatalf("expected memory limiter, got %q", cfg.RateLimitBackend)
		}
	})

	t.Run("reads overrides from the environment", func(t *testing.T) {
		t.Setenv("API_BASE_URL", "http://attendance.local:9000")
		t.Setenv("REQUEST_TIMEOUT", "3s")
		t.Setenv("LIST_LIMIT", "50")

		cfg := Load()
		if cfg.APIBaseURL != "http://attendance.local:9000" {
			t.Fatalf("override not applied: %q", cfg.APIBaseURL)
		}
		if cfg.RequestTimeout != 3*time.Second {
			t.Fatalf("timeout override not applied: %s", cfg.RequestTimeout)
		}
		if cfg.ListLimit != 50 {
			t.Fatalf("limit override not applied: %d", cfg.ListLimit)
		}
	})

	t.Run("falls back on malformed values", func(t *testing.T) {
		t.Setenv("REQUEST_TIMEOUT", "not-a-duration")
		t.Setenv("LIST_LIMIT", "many")

		cfg := Load()
		if cfg.RequestTimeout != 10*time.Second {
			t.Fatalf("expected fallback timeout, got %s", cfg.RequestTimeout)
		}
		if cfg.ListLimit != 500 {
			t.Fatalf("expected fallback limit, got %d", cfg.ListLimit)
		}
	})
}
