// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import "time"

// Config holds mup1wd's runtime configuration, loaded from the environment
// (optionally via a .env file) the way every binary in this repo loads its
// config: caarlos0/env struct tags with explicit defaults.
type Config struct {
	// Device is the carrier URI the driver opens: termhub://host:port,
	// telnet://host:port, or a local serial device path.
	Device string `env:"DEVICE,required"`

	// PollPath, when set, is a CoAP URI the daemon GETs on PollInterval to
	// exercise the carrier even when nothing else is talking to the
	// device, so readiness has a recent signal to check even on an
	// otherwise idle link.
	PollPath     string        `env:"POLL_PATH"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`

	// ReadinessGrace bounds two things: how long after startup the daemon
	// reports ready without yet having a successful exchange, and how
	// stale the last successful exchange may be before readiness flips.
	ReadinessGrace time.Duration `env:"READINESS_GRACE" envDefault:"45s"`

	MetricsPort int    `env:"METRICS_PORT" envDefault:"9090"`
	HealthPort  int    `env:"HEALTH_PORT"  envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT"   envDefault:"json"`

	MaxGoroutines int `env:"MAX_GOROUTINES" envDefault:"10000"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}
