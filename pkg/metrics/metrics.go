// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package metrics provides Prometheus instrumentation for a MUP1/CoAP
// driver process: frames crossing the carrier, block-wise requests, their
// retransmits, and codec failures.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the driver registers.
type Metrics struct {
	// Frame-level metrics
	FramesRx    *prometheus.CounterVec
	FramesTx    *prometheus.CounterVec
	FrameErrors *prometheus.CounterVec

	// Block-wise request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Retransmits     *prometheus.CounterVec

	// Codec metrics
	CodecErrors *prometheus.CounterVec

	// Carrier metrics
	BytesRead         prometheus.Counter
	BytesWritten      prometheus.Counter
	CarrierReconnects prometheus.Counter

	// Pipeline metrics
	PipelineTimeouts *prometheus.CounterVec

	// Resource metrics
	GoroutinesActive *prometheus.GaugeVec
	MemoryAllocated  *prometheus.GaugeVec
}

// New creates a Metrics instance with all counters, gauges, and histograms
// registered under namespace ("mup1wd" if empty).
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mup1wd"
	}

	m := &Metrics{
		FramesRx: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_received_total",
				Help:      "Total number of MUP1 frames received, by type tag",
			},
			[]string{"tag"},
		),
		FramesTx: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_sent_total",
				Help:      "Total number of MUP1 frames sent, by type tag",
			},
			[]string{"tag"},
		),
		FrameErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frame_errors_total",
				Help:      "Total number of locally-recovered MUP1 framing errors, by kind",
			},
			[]string{"kind"},
		),
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of block-wise CoAP requests, by method and outcome",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Block-wise CoAP request duration in seconds, by method",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5, 10, 15, 30},
			},
			[]string{"method"},
		),
		Retransmits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retransmits_total",
				Help:      "Total number of block-wise request retransmits, by method",
			},
			[]string{"method"},
		),
		CodecErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "codec_errors_total",
				Help:      "Total number of CoAP/CBOR codec errors, by stage and kind",
			},
			[]string{"stage", "kind"},
		),
		BytesRead: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "carrier_bytes_read_total",
				Help:      "Total bytes read from the carrier",
			},
		),
		BytesWritten: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "carrier_bytes_written_total",
				Help:      "Total bytes written to the carrier",
			},
		),
		CarrierReconnects: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "carrier_reconnects_total",
				Help:      "Total number of times the driver reopened the carrier after a failure",
			},
		),
		PipelineTimeouts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_timeouts_total",
				Help:      "Total number of handler pipeline layers that fired their own timeout, by layer",
			},
			[]string{"layer"},
		),
		GoroutinesActive: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "goroutines_active",
				Help:      "Number of active goroutines by component",
			},
			[]string{"component"},
		),
		MemoryAllocated: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "memory_allocated_bytes",
				Help:      "Memory allocated in bytes",
			},
			[]string{"type"},
		),
	}

	return m
}

// ObserveRequest times a block-wise request and records its outcome. f
// returns the status label ("ok", "timeout", "error") to tally alongside
// the error it returns.
func (m *Metrics) ObserveRequest(method string, f func() (status string, err error)) error {
	start := time.Now()

	status, err := f()
	duration := time.Since(start).Seconds()

	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration)

	return err
}
