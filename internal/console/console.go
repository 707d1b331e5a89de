// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/guardrails-console/internal/connectivity"
	"github.com/jeranaias/guardrails-console/internal/gateway"
	"github.com/jeranaias/guardrails-console/internal/logstream"
	"github.com/jeranaias/guardrails-console/internal/model"
	"github.com/jeranaias/guardrails-console/internal/readiness"
	"github.com/jeranaias/guardrails-console/internal/resources"
	"github.com/jeranaias/guardrails-console/internal/session"
	"github.com/jeranaias/guardrails-console/internal/telemetry"
)

// Backend is everything the console needs from the gateway client.
type Backend interface {
	connectivity.Prober
	resources.Catalog
	session.Sender
	RequestModelPull(ctx context.Context, providerID, modelName string) (gateway.PullAck, error)
}

// Options configure a Console. The zero value is usable.
type Options struct {
	// RetryInterval is the probe interval while disconnected.
	RetryInterval time.Duration
	// Preferences are the initial framework, provider and model.
	Preferences resources.Preferences
	// MaxLogEntries bounds the operator log; 0 keeps everything.
	MaxLogEntries int
	Logger        *slog.Logger
	Metrics       *telemetry.Metrics
	// Feed is the log stream ingestor. The caller starts and stops it.
	Feed *logstream.Ingestor
}

// PullResultMsg carries the answer to a model pull request.
type PullResultMsg struct {
	ProviderID string
	Model      string
	Ack        gateway.PullAck
	Err        error
}

// =============================================================================
// CONSOLE
// =============================================================================

// Console wires the session components together on the Bubble Tea event
// loop. Every method must be called from the loop goroutine (Update or an
// intent invoked from Update).
type Console struct {
	backend Backend
	logger  *slog.Logger
	metrics *telemetry.Metrics

	activity   *model.ActivityLog
	transcript *model.Transcript

	supervisor *connectivity.Supervisor
	resolver   *resources.Resolver
	machine    *readiness.Machine
	chat       *session.Controller
	feed       *logstream.Ingestor

	feedConnected bool
	feedSeen      bool

	// modelPending is set while the loading status comes from a model list
	// or a warming backend, not only from a rules fetch.
	modelPending bool
}

// New creates a console for backend.
func New(backend Backend, opts Options) *Console {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	activity := model.NewActivityLog(opts.MaxLogEntries)
	transcript := &model.Transcript{}

	c := &Console{
		backend:    backend,
		logger:     logger.With("component", "console"),
		metrics:    opts.Metrics,
		activity:   activity,
		transcript: transcript,
		supervisor: connectivity.NewSupervisor(backend, activity, logger, opts.RetryInterval),
		resolver:   resources.NewResolver(backend, activity, logger, opts.Preferences),
		machine:    readiness.NewMachine(),
		chat:       session.NewController(backend, transcript, activity, logger),
		feed:       opts.Feed,
	}
	c.metrics.SetStatus(string(c.machine.Status()))
	return c
}

// Init logs the start of the session and issues the first probe.
func (c *Console) Init() tea.Cmd {
	c.activity.Log(model.SeverityInfo, "System initializing...")
	return tea.Batch(c.supervisor.Start(), c.listen())
}

func (c *Console) listen() tea.Cmd {
	if c.feed == nil {
		return nil
	}
	return c.feed.Listen()
}

// Update routes a message to the component that owns it and recomputes the
// readiness status. Messages the console does not know are ignored.
func (c *Console) Update(msg tea.Msg) tea.Cmd {
	cmd := c.route(msg)
	c.recompute()
	return cmd
}

func (c *Console) route(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case connectivity.ProbeResultMsg:
		retry, ok := c.supervisor.HandleProbe(msg)
		c.metrics.RecordProbe(msg.Err == nil, msg.Duration)
		c.metrics.SetConnected(c.supervisor.Connected())
		if !ok {
			return retry
		}
		return tea.Batch(retry, c.resolver.ApplyCatalog(msg.Frameworks, msg.Providers))

	case connectivity.RetryTickMsg:
		return c.supervisor.HandleTick(msg)

	case connectivity.WarmupTickMsg:
		return c.supervisor.HandleWarmupTick(msg)

	case connectivity.WarmupResultMsg:
		cmd := c.supervisor.HandleWarmup(msg)
		c.metrics.SetConnected(c.supervisor.Connected())
		return cmd

	case resources.ModelsLoadedMsg:
		applied, err := c.resolver.HandleModels(msg)
		if applied && gateway.IsNetwork(err) {
			return c.drop(err)
		}

	case resources.SwitchesLoadedMsg:
		applied, err := c.resolver.HandleSwitches(msg)
		if applied && gateway.IsNetwork(err) {
			return c.drop(err)
		}

	case session.ChatResultMsg:
		return c.handleChat(msg)

	case PullResultMsg:
		return c.handlePull(msg)

	case logstream.EventMsg:
		entry := logstream.Append(c.activity, msg.Event)
		c.metrics.RecordPipelineEvent(string(entry.Severity))
		return c.listen()

	case logstream.StateMsg:
		c.handleFeedState(msg)
		return c.listen()
	}
	return nil
}

func (c *Console) handleChat(msg session.ChatResultMsg) tea.Cmd {
	outcome := c.chat.HandleResult(msg)
	switch outcome {
	case session.OutcomeIgnored:
		return nil
	case session.OutcomeBusy:
		c.metrics.RecordChat("busy", msg.Elapsed)
		return c.supervisor.MarkBusy()
	case session.OutcomeDisconnect:
		c.metrics.RecordChat("failed", msg.Elapsed)
		return c.drop(msg.Err)
	case session.OutcomeBlocked:
		c.metrics.RecordChat("blocked", msg.Elapsed)
	default:
		c.metrics.RecordChat("delivered", msg.Elapsed)
	}
	return nil
}

func (c *Console) handlePull(msg PullResultMsg) tea.Cmd {
	if msg.Err != nil {
		c.activity.Log(model.SeverityError, fmt.Sprintf("Model pull failed for %s: %v", msg.Model, msg.Err))
		if gateway.IsNetwork(msg.Err) {
			return c.drop(msg.Err)
		}
		return nil
	}

	detail := ""
	if msg.Ack.Message != "" {
		detail = ": " + msg.Ack.Message
	}
	if !msg.Ack.Started() {
		c.activity.Log(model.SeverityWarning, fmt.Sprintf("Model pull not started for %s (%s)%s", msg.Model, msg.Ack.Status, detail))
		return nil
	}
	c.activity.Log(model.SeverityInfo, fmt.Sprintf("Pulling model %s%s", msg.Model, detail))
	if msg.ProviderID != c.resolver.Snapshot().SelectedProvider {
		return nil
	}
	return c.resolver.RefreshModels()
}

func (c *Console) handleFeedState(msg logstream.StateMsg) {
	c.metrics.SetFeedConnected(msg.Connected)
	switch {
	case msg.Connected && !c.feedConnected:
		if c.feedSeen {
			c.activity.Log(model.SeverityInfo, "Log stream reconnected")
		} else {
			c.activity.Log(model.SeverityInfo, "Log stream connected")
		}
		c.feedSeen = true
	case !msg.Connected && c.feedConnected:
		line := "Log stream disconnected, reconnecting"
		if msg.Err != nil {
			line += ": " + msg.Err.Error()
		}
		c.activity.Log(model.SeverityWarning, line)
	}
	c.feedConnected = msg.Connected
}

func (c *Console) drop(err error) tea.Cmd {
	cmd := c.supervisor.Drop(err)
	c.metrics.SetConnected(c.supervisor.Connected())
	return cmd
}

// recompute derives the status from the current inputs. It runs after every
// message and intent.
func (c *Console) recompute() {
	in := c.inputs()
	if in.ModelsLoading || in.Warming {
		c.modelPending = true
	}
	prev, changed := c.machine.Update(in)
	status := c.machine.Status()
	announce := c.modelPending && prev == readiness.StatusLoadingModel && status == readiness.StatusReady
	if status != readiness.StatusLoadingModel {
		c.modelPending = false
	}
	if !changed {
		return
	}
	c.metrics.SetStatus(string(status))
	c.logger.Info("status changed", "from", prev, "to", status)

	if announce {
		if name := c.resolver.Snapshot().SelectedModel; name != "" {
			c.activity.Log(model.SeveritySuccess, fmt.Sprintf("Model %s is ready", name))
		}
	}
}

func (c *Console) inputs() readiness.Inputs {
	return readiness.Inputs{
		Probed:        c.supervisor.Probed(),
		Connected:     c.supervisor.Connected(),
		ModelsLoading: c.resolver.ModelsLoading(),
		RulesLoading:  c.resolver.SwitchesLoading(),
		Warming:       c.supervisor.Warming(),
	}
}

// =============================================================================
// READERS
// =============================================================================

// Status returns the current readiness status.
func (c *Console) Status() readiness.Status { return c.machine.Status() }

// Connected reports backend reachability.
func (c *Console) Connected() bool { return c.supervisor.Connected() }

// FeedConnected reports whether the log feed is subscribed.
func (c *Console) FeedConnected() bool { return c.feedConnected }

// InFlight reports whether a chat request is pending.
func (c *Console) InFlight() bool { return c.chat.InFlight() }

// Resources returns a snapshot of the resource set.
func (c *Console) Resources() resources.ResourceSet { return c.resolver.Snapshot() }

// Rules returns the rule config of the selected framework.
func (c *Console) Rules() resources.RuleConfig { return c.resolver.Rules() }

// Activity returns the operator log.
func (c *Console) Activity() *model.ActivityLog { return c.activity }

// Transcript returns the chat transcript.
func (c *Console) Transcript() *model.Transcript { return c.transcript }

// GPULabel describes the backend's accelerator: "Checking..." before the
// first health answer, the GPU name, "CPU Only", or "" when the backend does
// not report one.
func (c *Console) GPULabel() string {
	health := c.supervisor.Health()
	switch {
	case health == (gateway.Health{}):
		if c.supervisor.Probed() {
			return ""
		}
		return "Checking..."
	case health.GPU == nil:
		return ""
	default:
		return health.GPU.Label()
	}
}

// Health returns the last health answer from the backend.
func (c *Console) Health() gateway.Health { return c.supervisor.Health() }

// LastError returns the most recent connectivity failure.
func (c *Console) LastError() error { return c.supervisor.LastError() }

// StatusLine renders "Online | <framework> | <model>" when ready and the
// status label otherwise.
func (c *Console) StatusLine() string {
	status := c.machine.Status()
	if status != readiness.StatusReady {
		return status.Label()
	}
	set := c.resolver.Snapshot()
	line := status.Label()
	if fw := set.FrameworkLabel(); fw != "" {
		line += " | " + fw
	}
	if set.SelectedModel != "" {
		line += " | " + set.SelectedModel
	}
	return line
}
