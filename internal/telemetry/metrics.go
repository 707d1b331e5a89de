// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// METRICS
// =============================================================================

// Metrics holds the Prometheus collectors for one console.
type Metrics struct {
	probesTotal   *prometheus.CounterVec
	probeDuration prometheus.Histogram
	connected     prometheus.Gauge

	chatsTotal  *prometheus.CounterVec
	chatLatency prometheus.Histogram

	pipelineEvents *prometheus.CounterVec
	feedConnected  prometheus.Gauge

	status *prometheus.GaugeVec

	registry *prometheus.Registry
}

// Statuses lists the readiness labels exported by the status gauge.
var Statuses = []string{"initializing", "ready", "loading_model", "error"}

// NewMetrics creates a metrics instance with a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guardctl_probes_total",
				Help: "Backend connectivity probes by result",
			},
			[]string{"result"},
		),
		probeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "guardctl_probe_duration_seconds",
				Help:    "Duration of health check plus catalog fetch",
				Buckets: prometheus.DefBuckets,
			},
		),
		connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "guardctl_backend_connected",
				Help: "1 while the backend is reachable",
			},
		),
		chatsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guardctl_chat_requests_total",
				Help: "Chat requests by outcome",
			},
			[]string{"outcome"},
		),
		chatLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "guardctl_chat_duration_seconds",
				Help:    "Round trip time of chat requests",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		pipelineEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guardctl_pipeline_events_total",
				Help: "Log feed events by severity",
			},
			[]string{"severity"},
		),
		feedConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "guardctl_log_feed_connected",
				Help: "1 while the log feed is subscribed",
			},
		),
		status: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "guardctl_status",
				Help: "Current readiness status (1 for the active one)",
			},
			[]string{"status"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.probesTotal,
		m.probeDuration,
		m.connected,
		m.chatsTotal,
		m.chatLatency,
		m.pipelineEvents,
		m.feedConnected,
		m.status,
	)

	return m
}

// RecordProbe records one completed connectivity probe.
func (m *Metrics) RecordProbe(ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.probesTotal.WithLabelValues(result).Inc()
	m.probeDuration.Observe(duration.Seconds())
}

// SetConnected updates the backend reachability gauge.
func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	m.connected.Set(boolValue(connected))
}

// RecordChat records a finished chat request.
func (m *Metrics) RecordChat(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.chatsTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		m.chatLatency.Observe(duration.Seconds())
	}
}

// RecordPipelineEvent counts one log feed event.
func (m *Metrics) RecordPipelineEvent(severity string) {
	if m == nil {
		return
	}
	m.pipelineEvents.WithLabelValues(severity).Inc()
}

// SetFeedConnected updates the log feed gauge.
func (m *Metrics) SetFeedConnected(connected bool) {
	if m == nil {
		return
	}
	m.feedConnected.Set(boolValue(connected))
}

// SetStatus marks status as the active readiness status.
func (m *Metrics) SetStatus(status string) {
	if m == nil {
		return
	}
	for _, s := range Statuses {
		m.status.WithLabelValues(s).Set(boolValue(s == status))
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
