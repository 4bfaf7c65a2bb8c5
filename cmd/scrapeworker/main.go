package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/scrapeworker/api"
	"github.com/use-agent/scrapeworker/browser"
	"github.com/use-agent/scrapeworker/cache"
	"github.com/use-agent/scrapeworker/config"
	"github.com/use-agent/scrapeworker/jobs"
	"github.com/use-agent/scrapeworker/pipeline"
	"github.com/use-agent/scrapeworker/proxyresolve"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("scrapeworker starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"maxConcurrentPages", cfg.Browser.MaxConcurrentPages,
	)

	// ── 3. Initialise browser pool (launches Chrome lazily) ─────────
	pool := browser.New(cfg.Browser)
	defer pool.Close()

	// ── 4. Initialise engine router (tlsclient + chrome-cdp/playwright) ─
	env := proxyresolve.Env{
		Server:   cfg.Proxy.Server,
		Username: cfg.Proxy.Username,
		Password: cfg.Proxy.Password,
	}
	router := pipeline.NewEngineRouter(pool, env)

	// ── 5. Initialise response cache ─────────────────────────────────
	cc := cache.New(1000)

	// ── 6. Initialise job manager (starts the TTL sweeper) ───────────
	mgr := jobs.New(router, cc, cfg.Job)
	defer mgr.Close()

	// ── 7. Setup router ───────────────────────────────────────────────
	ginRouter := api.NewRouter(mgr, cfg)

	// ── 8. Start HTTP server ───────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: ginRouter,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 9. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// mgr.Close() stops the TTL sweeper, pool.Close() kills Chrome — both via defer.
	slog.Info("scrapeworker stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
