package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultOpsPort = 9090

// opsServer serves the worker's operational endpoints on one port:
// /metrics for Prometheus, /health as a liveness probe, and /ready, which
// reports 503 until the cron schedule is installed.
type opsServer struct {
	srv   *http.Server
	ready atomic.Bool
}

// startOpsServer listens on OPS_PORT (default 9090) and shuts down within
// five seconds of ctx being cancelled.
func startOpsServer(ctx context.Context, logger *slog.Logger) *opsServer {
	ops := &opsServer{}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "alive")
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, _ *http.Request) {
		if !ops.ready.Load() {
			writeStatus(w, http.StatusServiceUnavailable, "starting")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})

	ops.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", opsPort()),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("ops server starting", slog.String("addr", ops.srv.Addr))
		if err := ops.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server failed", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ops.srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("ops server shutdown failed", slog.Any("error", err))
		}
	}()

	return ops
}

// SetReady flips the readiness probe once the schedule is installed.
func (o *opsServer) SetReady(ready bool) {
	o.ready.Store(ready)
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"status":%q}`, status)
}

func opsPort() int {
	raw := os.Getenv("OPS_PORT")
	if raw == "" {
		return defaultOpsPort
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return defaultOpsPort
	}
	return port
}
