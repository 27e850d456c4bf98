// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package main runs mup1wd, a long-lived driver process: it opens one
// carrier, drives the handler pipeline over it for as long as the process
// lives, and exposes Prometheus metrics and liveness/readiness endpoints
// for whatever supervises it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/blockwise"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/breaker"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/carrier"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/coap"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/driver"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/health"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/metrics"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/mup1"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := Config{}
	_ = godotenv.Load() // .env is optional
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "mup1wd: config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting mup1wd", slog.String("device", cfg.Device))

	c, err := carrier.Open(cfg.Device)
	if err != nil {
		logger.Error("failed to open carrier", slog.String("error", err.Error()))
		os.Exit(2)
	}
	defer c.Close()

	m := metrics.New("mup1wd")
	d := driver.New(c, logger)
	defer d.Close()
	d.SetMetrics(m)

	state := newLivenessState()
	d.OnAnnounce(func(f mup1.Frame) {
		state.markSuccess()
		logger.Info("device announce", slog.String("payload", string(f.Payload)))
	})
	d.OnPing(func(f mup1.Frame) {
		state.markSuccess()
		logger.Debug("device ping", slog.String("payload", string(f.Payload)))
	})
	d.OnTrace(func(f mup1.Frame) {
		logger.Debug("device trace", slog.String("payload", string(f.Payload)))
	})
	d.OnRawBytes(func(f mup1.Frame) {
		logger.Debug("non-mup1 bytes observed", slog.Int("n", len(f.Payload)))
	})

	checker := health.NewChecker(10 * time.Second)
	checker.Register("goroutines", func(ctx context.Context) error {
		count := runtime.NumGoroutine()
		if count > cfg.MaxGoroutines {
			return fmt.Errorf("too many goroutines: %d > %d", count, cfg.MaxGoroutines)
		}
		m.GoroutinesActive.WithLabelValues("all").Set(float64(count))
		return nil
	})
	checker.Register("memory", func(ctx context.Context) error {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		m.MemoryAllocated.WithLabelValues("heap").Set(float64(stats.HeapAlloc))
		m.MemoryAllocated.WithLabelValues("sys").Set(float64(stats.Sys))
		return nil
	})
	checker.Register("carrier", func(ctx context.Context) error {
		return state.readinessCheck(cfg.ReadinessGrace)
	})

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return runMetricsServer(ctx, cfg.MetricsPort, logger) })
	g.Go(func() error { return runHealthServer(ctx, cfg.HealthPort, checker, logger) })

	g.Go(func() error {
		if err := d.Idle(ctx); err != nil && err != context.Canceled {
			return fmt.Errorf("idle loop: %w", err)
		}
		return nil
	})

	if cfg.PollPath != "" {
		g.Go(func() error { return runPollLoop(ctx, d, cfg, state, logger) })
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("context cancelled")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("graceful shutdown completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, forcing exit")
		os.Exit(1)
	}
}

// runPollLoop issues a CoAP GET against cfg.PollPath on every PollInterval
// so liveness tracks the carrier even when no other request is in flight.
// It shares the carrier with Idle safely: both ultimately serialize through
// Driver.doMu. A circuit breaker wraps the call so a device that has gone
// unresponsive doesn't pay the full block-wise retry budget on every tick;
// once tripped, the breaker itself rejects attempts until ResetTimeout
// passes and it lets one trial call through.
func runPollLoop(ctx context.Context, d *driver.Driver, cfg Config, state *livenessState, logger *slog.Logger) error {
	cb := breaker.New(breaker.Config{
		MaxFailures:  3,
		ResetTimeout: cfg.PollInterval * 4,
		Timeout:      cfg.PollInterval,
	})
	cb.OnStateChange(func(from, to breaker.State) {
		logger.Warn("poll circuit breaker state change", slog.String("from", from.String()), slog.String("to", to.String()))
	})

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := cb.Call(func() error {
				_, err := d.Do(blockwise.Request{Method: coap.GET, URI: cfg.PollPath})
				return err
			})
			if err != nil {
				logger.Warn("poll request failed", slog.String("path", cfg.PollPath), slog.String("error", err.Error()))
				continue
			}
			state.markSuccess()
		}
	}
}

// setupLogger creates a structured logger at the configured level and
// format.
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// runMetricsServer serves /metrics until ctx is cancelled.
func runMetricsServer(ctx context.Context, port int, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return runHTTPServer(ctx, port, mux, "metrics", logger)
}

// runHealthServer serves /health, /ready and /live until ctx is cancelled.
func runHealthServer(ctx context.Context, port int, checker *health.Checker, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HTTPHandler())
	mux.HandleFunc("/ready", checker.ReadinessHandler())
	mux.HandleFunc("/live", health.LivenessHandler())
	return runHTTPServer(ctx, port, mux, "health", logger)
}

func runHTTPServer(ctx context.Context, port int, mux *http.ServeMux, name string, logger *slog.Logger) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting "+name+" server", slog.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("%s server: %w", name, err)
		}
		return nil
	}
}
