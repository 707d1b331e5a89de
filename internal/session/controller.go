// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/guardrails-console/internal/gateway"
	"github.com/jeranaias/guardrails-console/internal/model"
	"github.com/jeranaias/guardrails-console/internal/readiness"
)

// Sender performs one chat round trip.
type Sender interface {
	SendChat(ctx context.Context, requestID string, req gateway.ChatRequest) (gateway.ChatResult, error)
}

// Target is the selection a message is sent with.
type Target struct {
	FrameworkID string
	ProviderID  string
	ModelName   string
	Rules       map[string]bool
}

// SubmitResult tells the caller what Submit did with the input.
type SubmitResult int

const (
	// SubmitAccepted means the message was appended and a request issued.
	// The input field should be cleared.
	SubmitAccepted SubmitResult = iota
	// SubmitEmpty means the input was blank.
	SubmitEmpty
	// SubmitNotReady means the system status forbids sending.
	SubmitNotReady
	// SubmitInFlight means another request is still pending.
	SubmitInFlight
)

// Outcome classifies a handled chat result for the rest of the console.
type Outcome int

const (
	// OutcomeIgnored is returned for results of unknown or finished requests.
	OutcomeIgnored Outcome = iota
	OutcomeDelivered
	OutcomeBlocked
	// OutcomeBusy means the backend is still loading a model.
	OutcomeBusy
	// OutcomeDisconnect means the request failed and connectivity is lost.
	OutcomeDisconnect
)

// ChatResultMsg carries the reply to one submitted message.
type ChatResultMsg struct {
	RequestID string
	Result    gateway.ChatResult
	Err       error
	Elapsed   time.Duration
}

// Controller owns the transcript and the in-flight flag. It must only be used
// from the event loop goroutine.
type Controller struct {
	sender     Sender
	transcript *model.Transcript
	sink       model.Sink
	logger     *slog.Logger

	inFlight  bool
	requestID string
	framework string
}

// NewController creates a controller appending to transcript.
func NewController(sender Sender, transcript *model.Transcript, sink model.Sink, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		sender:     sender,
		transcript: transcript,
		sink:       sink,
		logger:     logger.With("component", "session"),
	}
}

// InFlight reports whether a request is pending.
func (c *Controller) InFlight() bool {
	return c.inFlight
}

// Transcript returns the transcript the controller appends to.
func (c *Controller) Transcript() *model.Transcript {
	return c.transcript
}

// Submit validates and sends text. Blank input and a pending request are
// silent no-ops; a status other than ready produces exactly one warning.
func (c *Controller) Submit(text string, status readiness.Status, target Target) (tea.Cmd, SubmitResult) {
	text = norm.NFC.String(strings.TrimSpace(text))
	if text == "" {
		return nil, SubmitEmpty
	}
	if status != readiness.StatusReady {
		err := &readiness.NotReadyError{Action: readiness.ActionSubmit, Status: status}
		c.sink.Log(model.SeverityWarning, "System not ready: "+err.Error())
		return nil, SubmitNotReady
	}
	if c.inFlight {
		return nil, SubmitInFlight
	}

	c.transcript.Append(model.NewUserMessage(text))
	c.inFlight = true
	c.requestID = uuid.NewString()
	c.framework = target.FrameworkID

	req := gateway.ChatRequest{
		Message:     text,
		Config:      target.Rules,
		FrameworkID: target.FrameworkID,
		ProviderID:  target.ProviderID,
		ModelName:   target.ModelName,
	}
	c.logger.Debug("chat submitted", "request_id", c.requestID,
		"framework", req.FrameworkID, "provider", req.ProviderID, "model", req.ModelName)
	return sendCmd(c.sender, c.requestID, req), SubmitAccepted
}

func sendCmd(sender Sender, requestID string, req gateway.ChatRequest) tea.Cmd {
	return func() (msg tea.Msg) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				msg = ChatResultMsg{
					RequestID: requestID,
					Err:       fmt.Errorf("chat transport panicked: %v", r),
					Elapsed:   time.Since(start),
				}
			}
		}()
		result, err := sender.SendChat(context.Background(), requestID, req)
		return ChatResultMsg{RequestID: requestID, Result: result, Err: err, Elapsed: time.Since(start)}
	}
}

// HandleResult records the reply and releases the in-flight flag.
func (c *Controller) HandleResult(msg ChatResultMsg) Outcome {
	if !c.inFlight || msg.RequestID != c.requestID {
		c.logger.Debug("discarding chat result", "request_id", msg.RequestID)
		return OutcomeIgnored
	}
	defer func() {
		c.inFlight = false
		c.requestID = ""
	}()

	log := c.logger.With("request_id", msg.RequestID, "elapsed", msg.Elapsed)

	if msg.Err != nil {
		if gateway.IsBusy(msg.Err) {
			log.Info("backend busy", "error", msg.Err)
			return c.busy()
		}
		log.Warn("chat failed", "kind", gateway.Kind(msg.Err), "error", msg.Err)
		c.transcript.Append(model.NewSystemMessage("Request failed: "+msg.Err.Error(), model.StatusError))
		c.sink.Log(model.SeverityError, "Server Error: "+msg.Err.Error())
		return OutcomeDisconnect
	}

	res := msg.Result
	framework := res.FrameworkUsed
	if framework == "" {
		framework = c.framework
	}

	switch res.Status {
	case gateway.ChatLoading:
		log.Info("backend reported loading")
		return c.busy()

	case gateway.ChatBlocked:
		kind := res.Violation
		c.transcript.Append(model.NewAIMessage(res.Response, model.StatusBlocked, kind, framework))
		line := "Blocked: " + kind
		if kind == "" {
			line = "Blocked by moderation"
		}
		if res.Reason != "" {
			line += " (" + res.Reason + ")"
		}
		c.sink.Log(model.SeverityError, line)
		log.Info("chat blocked", "violation", kind)
		return OutcomeBlocked

	default:
		c.transcript.Append(model.NewAIMessage(res.Response, model.StatusSuccess, "", framework))
		c.sink.Log(model.SeveritySuccess, fmt.Sprintf("Response received in %s", msg.Elapsed.Round(10*time.Millisecond)))
		return OutcomeDelivered
	}
}

func (c *Controller) busy() Outcome {
	c.transcript.Append(model.NewSystemMessage("Model is still loading on the server. Try again shortly.", model.StatusError))
	c.sink.Log(model.SeverityWarning, "Model is loading on server")
	return OutcomeBusy
}
