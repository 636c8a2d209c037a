package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rollcall/internal/api"
	"rollcall/internal/bus"
	"rollcall/internal/config"
	"rollcall/internal/core"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/scanner"
	"rollcall/internal/store"
	"rollcall/internal/web"
)

// The kiosk runs the web gateway: it serves the browser page, proxies the
// attendance service and exposes metrics.
func main() {
	cfg := config.Load()

	client := api.New(cfg.APIBaseURL, cfg.RequestTimeout)
	events := bus.New()
	app := core.New(client, events, core.WithLimit(cfg.ListLimit))
	chooser := scanner.NewBlueZ(cfg.BluetoothctlPath, cfg.ScanWindow)
	if !chooser.Available() {
		log.Println("bluetoothctl not found; kiosk scanning disabled, browser scanning still works")
	}

	var limiter httpmiddleware.Limiter
	if cfg.RateLimitBackend == "redis" {
		redisClient := store.NewRedis(cfg.RedisAddr, "")
		defer redisClient.Close()
		if !redisClient.Healthy(context.Background()) {
			log.Printf("warning: redis not reachable at %s, limiter will fail open", cfg.RedisAddr)
		}
		limiter = httpmiddleware.NewRedisWindow(redisClient, cfg.RateLimitPerMin)
	} else {
		limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	server := web.New(cfg, app, chooser, limiter)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Handler(),
	}

	go func() {
		log.Printf("kiosk gateway listening on :%s (backend %s)", cfg.HTTPPort, cfg.APIBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
