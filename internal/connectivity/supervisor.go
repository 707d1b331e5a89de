// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package connectivity keeps the console connected to the backend.
//
// The Supervisor probes the backend (health, then frameworks and providers
// in parallel) on start and every retry interval while disconnected. At most
// one probe and one retry timer exist at any time. Chat failures drop the
// connection immediately through Drop so the retry loop takes over. After the
// backend reports it is busy loading a model, a separate warm-up poll clears
// the warming flag once health checks pass again. A busy health answer counts
// as connected and warming, and the retry loop keeps checking until the
// catalog can be fetched.
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/guardrails-console/internal/gateway"
	"github.com/jeranaias/guardrails-console/internal/model"
)

// DefaultRetryInterval is the delay between probes while disconnected.
const DefaultRetryInterval = 3 * time.Second

// reminderPeriod spaces the "still unreachable" notices during an outage.
const reminderPeriod = 30 * time.Second

// Prober is the part of the backend the supervisor talks to.
type Prober interface {
	HealthCheck(ctx context.Context) (gateway.Health, error)
	Frameworks(ctx context.Context) ([]gateway.Option, error)
	Providers(ctx context.Context) ([]gateway.Option, error)
}

// =============================================================================
// MESSAGES
// =============================================================================

// ProbeResultMsg carries the outcome of one probe.
type ProbeResultMsg struct {
	Seq        uint64
	Frameworks []gateway.Option
	Providers  []gateway.Option
	Health     gateway.Health
	Err        error
	Duration   time.Duration
}

// RetryTickMsg fires when the retry interval elapses.
type RetryTickMsg struct{}

// WarmupTickMsg fires when it is time to re-check a warming backend.
type WarmupTickMsg struct{}

// WarmupResultMsg carries the health check made during warm-up.
type WarmupResultMsg struct {
	Health gateway.Health
	Err    error
}

// =============================================================================
// SUPERVISOR
// =============================================================================

// Supervisor owns the connected flag. It must only be used from the event
// loop goroutine.
type Supervisor struct {
	prober   Prober
	sink     model.Sink
	logger   *slog.Logger
	interval time.Duration

	connected bool
	probed    bool
	lastErr   error
	attempts  int
	health    gateway.Health

	// catalogPending is set while the backend is reachable but too busy to
	// list its catalog.
	catalogPending bool

	probeSeq       uint64
	probeInFlight  bool
	retryScheduled bool

	warming       bool
	warmScheduled bool
	warmInFlight  bool
}

// NewSupervisor creates a disconnected supervisor. interval <= 0 selects
// DefaultRetryInterval.
func NewSupervisor(prober Prober, sink model.Sink, logger *slog.Logger, interval time.Duration) *Supervisor {
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{
		prober:   prober,
		sink:     sink,
		logger:   logger.With("component", "connectivity"),
		interval: interval,
	}
}

// Connected reports whether the last probe succeeded and nothing failed since.
func (s *Supervisor) Connected() bool { return s.connected }

// Probed reports whether at least one probe has finished.
func (s *Supervisor) Probed() bool { return s.probed }

// Warming reports whether the backend is still loading a model.
func (s *Supervisor) Warming() bool { return s.warming }

// Probing reports whether a probe is in flight.
func (s *Supervisor) Probing() bool { return s.probeInFlight }

// Health returns the body of the last health check that answered.
func (s *Supervisor) Health() gateway.Health { return s.health }

// CatalogPending reports whether a busy backend has not yet served its
// catalog.
func (s *Supervisor) CatalogPending() bool { return s.catalogPending }

// LastError returns the error that caused the last disconnect.
func (s *Supervisor) LastError() error { return s.lastErr }

// Attempts returns the number of failed probes since the last success.
func (s *Supervisor) Attempts() int { return s.attempts }

// Interval returns the retry interval.
func (s *Supervisor) Interval() time.Duration { return s.interval }

// Start issues the first probe.
func (s *Supervisor) Start() tea.Cmd {
	return s.probe()
}

// Refresh probes now, even when connected. It is a no-op while a probe is
// already in flight.
func (s *Supervisor) Refresh() tea.Cmd {
	return s.probe()
}

func (s *Supervisor) probe() tea.Cmd {
	if s.probeInFlight {
		return nil
	}
	s.probeInFlight = true
	s.probeSeq++
	seq := s.probeSeq
	prober := s.prober

	return func() tea.Msg {
		start := time.Now()
		msg := ProbeResultMsg{Seq: seq}
		msg.Health, msg.Frameworks, msg.Providers, msg.Err = runProbe(context.Background(), prober)
		msg.Duration = time.Since(start)
		return msg
	}
}

func runProbe(ctx context.Context, prober Prober) (health gateway.Health, frameworks, providers []gateway.Option, err error) {
	health, err = prober.HealthCheck(ctx)
	if err != nil {
		return health, nil, nil, fmt.Errorf("health check: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if frameworks, err = prober.Frameworks(gctx); err != nil {
			return fmt.Errorf("frameworks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if providers, err = prober.Providers(gctx); err != nil {
			return fmt.Errorf("providers: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return health, nil, nil, err
	}
	return health, frameworks, providers, nil
}

// HandleProbe applies a probe result. ok is true when the probe succeeded and
// msg's catalog should be resolved. The returned command schedules the next
// retry after a failure or a busy answer.
func (s *Supervisor) HandleProbe(msg ProbeResultMsg) (cmd tea.Cmd, ok bool) {
	if msg.Seq != s.probeSeq {
		return nil, false
	}
	s.probeInFlight = false
	s.probed = true
	if msg.Health != (gateway.Health{}) {
		s.health = msg.Health
	}

	if gateway.IsBusy(msg.Err) {
		wasConnected := s.connected
		s.connected = true
		s.lastErr = nil
		s.attempts = 0
		s.catalogPending = true
		s.logger.Info("backend busy, catalog pending", "error", msg.Err)
		if !s.warming {
			s.warming = true
			if !wasConnected {
				s.sink.Log(model.SeveritySuccess, "Connected to backend")
			}
			s.sink.Log(model.SeverityInfo, "Backend is loading a model, waiting")
		}
		return s.scheduleRetry(), false
	}

	if msg.Err != nil {
		wasConnected := s.connected
		s.connected = false
		s.lastErr = msg.Err
		s.attempts++
		s.logger.Warn("probe failed", "attempt", s.attempts, "kind", gateway.Kind(msg.Err), "error", msg.Err)

		// One error entry per outage, then a periodic reminder.
		switch {
		case wasConnected || s.attempts == 1:
			s.sink.Log(model.SeverityError, "Failed to connect to backend: "+msg.Err.Error())
		case s.attempts%s.reminderEvery() == 0:
			s.sink.Log(model.SeverityWarning,
				fmt.Sprintf("Backend still unreachable after %d attempts, retrying every %s", s.attempts, s.interval))
		}
		return s.scheduleRetry(), false
	}

	wasConnected := s.connected
	s.connected = true
	s.lastErr = nil
	s.attempts = 0
	s.logger.Info("probe succeeded", "frameworks", len(msg.Frameworks), "providers", len(msg.Providers), "duration", msg.Duration)
	if !wasConnected {
		s.sink.Log(model.SeveritySuccess, "Connected to backend")
	}
	if s.catalogPending {
		s.catalogPending = false
		if s.warming {
			s.warming = false
			s.sink.Log(model.SeveritySuccess, "Backend model is ready")
		}
	}
	return nil, true
}

// HandleTick runs the scheduled retry probe.
func (s *Supervisor) HandleTick(RetryTickMsg) tea.Cmd {
	s.retryScheduled = false
	if s.connected && !s.catalogPending {
		return nil
	}
	return s.probe()
}

func (s *Supervisor) reminderEvery() int {
	return max(1, int(reminderPeriod/s.interval))
}

func (s *Supervisor) scheduleRetry() tea.Cmd {
	if s.retryScheduled {
		return nil
	}
	s.retryScheduled = true
	return tea.Tick(s.interval, func(time.Time) tea.Msg {
		return RetryTickMsg{}
	})
}

// Drop marks the backend unreachable after a failure observed elsewhere and
// makes sure a retry is scheduled.
func (s *Supervisor) Drop(err error) tea.Cmd {
	if s.connected {
		s.connected = false
		s.lastErr = err
		s.warming = false
		s.logger.Warn("connection dropped", "error", err)
		s.sink.Log(model.SeverityWarning, fmt.Sprintf("Connection lost, retrying every %s", s.interval))
	}
	if s.probeInFlight {
		return nil
	}
	return s.scheduleRetry()
}

// =============================================================================
// WARM-UP
// =============================================================================

// MarkBusy records that the backend is still loading a model and starts the
// warm-up poll.
func (s *Supervisor) MarkBusy() tea.Cmd {
	if !s.warming {
		s.logger.Info("backend warming")
	}
	s.warming = true
	return s.scheduleWarmup()
}

func (s *Supervisor) scheduleWarmup() tea.Cmd {
	if s.warmScheduled || s.warmInFlight {
		return nil
	}
	s.warmScheduled = true
	return tea.Tick(s.interval, func(time.Time) tea.Msg {
		return WarmupTickMsg{}
	})
}

// HandleWarmupTick checks health if the backend is still marked warming.
func (s *Supervisor) HandleWarmupTick(WarmupTickMsg) tea.Cmd {
	s.warmScheduled = false
	// The retry loop owns a backend that has not served its catalog yet.
	if !s.warming || !s.connected || s.catalogPending {
		return nil
	}
	s.warmInFlight = true
	prober := s.prober
	return func() tea.Msg {
		health, err := prober.HealthCheck(context.Background())
		return WarmupResultMsg{Health: health, Err: err}
	}
}

// HandleWarmup applies a warm-up health check.
func (s *Supervisor) HandleWarmup(msg WarmupResultMsg) tea.Cmd {
	s.warmInFlight = false
	if msg.Health != (gateway.Health{}) {
		s.health = msg.Health
	}
	if !s.warming {
		return nil
	}
	switch {
	case msg.Err == nil:
		s.warming = false
		s.sink.Log(model.SeveritySuccess, "Backend model is ready")
		return nil
	case gateway.IsNetwork(msg.Err):
		return s.Drop(msg.Err)
	default:
		return s.scheduleWarmup()
	}
}
