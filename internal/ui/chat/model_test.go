// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/guardrails-console/internal/config"
	"github.com/jeranaias/guardrails-console/internal/connectivity"
	"github.com/jeranaias/guardrails-console/internal/console"
	"github.com/jeranaias/guardrails-console/internal/gateway"
	"github.com/jeranaias/guardrails-console/internal/model"
	"github.com/jeranaias/guardrails-console/internal/readiness"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

type stubBackend struct {
	down   bool
	result gateway.ChatResult
	chats  []gateway.ChatRequest
}

var errDown = errors.New("connection refused")

func (s *stubBackend) HealthCheck(context.Context) (gateway.Health, error) {
	if s.down {
		return gateway.Health{}, errDown
	}
	return gateway.Health{Status: "ok", GPU: &gateway.GPUInfo{CUDAAvailable: true, Name: "RTX 4090"}}, nil
}

func (s *stubBackend) Frameworks(context.Context) ([]gateway.Option, error) {
	return []gateway.Option{{ID: "guardrails_ai", Name: "Guardrails AI"}, {ID: "nemo", Name: "NeMo"}}, nil
}

func (s *stubBackend) Providers(context.Context) ([]gateway.Option, error) {
	return []gateway.Option{{ID: "ollama", Name: "Ollama"}}, nil
}

func (s *stubBackend) Models(context.Context, string) ([]string, error) {
	return []string{"m1", "m2"}, nil
}

func (s *stubBackend) Switches(_ context.Context, frameworkID string) ([]gateway.SwitchInfo, error) {
	if frameworkID == "nemo" {
		return []gateway.SwitchInfo{{Key: "jailbreak", Label: "Jailbreak", Default: true}}, nil
	}
	return []gateway.SwitchInfo{
		{Key: "pii", Label: "PII", Default: true},
		{Key: "toxicity", Label: "Toxicity", Default: true},
	}, nil
}

func (s *stubBackend) SendChat(_ context.Context, _ string, req gateway.ChatRequest) (gateway.ChatResult, error) {
	s.chats = append(s.chats, req)
	return s.result, nil
}

func (s *stubBackend) RequestModelPull(context.Context, string, string) (gateway.PullAck, error) {
	return gateway.PullAck{Status: "started"}, nil
}

// =============================================================================
// HARNESS
// =============================================================================

type tui struct {
	t *testing.T
	m Model
	b *stubBackend
}

func newTUI(t *testing.T, b *stubBackend) *tui {
	t.Helper()
	c := console.New(b, console.Options{RetryInterval: time.Hour})
	h := &tui{t: t, m: New(c, Options{Backend: "http://127.0.0.1:8000"}), b: b}
	h.send(tea.WindowSizeMsg{Width: 120, Height: 40})
	h.run(h.m.Init())
	return h
}

// send delivers msg and runs the resulting commands to completion.
func (h *tui) send(msg tea.Msg) {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	h.run(cmd)
}

func (h *tui) run(cmd tea.Cmd) {
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(h.t, steps, 500, "commands did not settle")
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case connectivity.RetryTickMsg, connectivity.WarmupTickMsg, spinner.TickMsg:
			// timers are not fired in these tests
		case tea.QuitMsg:
			h.m.quitting = true
		default:
			updated, cmd := h.m.Update(msg)
			h.m = updated.(Model)
			queue = append(queue, cmd)
		}
	}
}

func (h *tui) typeText(s string) {
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func (h *tui) press(k tea.KeyType) {
	h.send(tea.KeyMsg{Type: k})
}

func (h *tui) enter(s string) {
	h.typeText(s)
	h.press(tea.KeyEnter)
}

func lastLog(c *console.Console) model.LogEntry {
	entries := c.Activity().Entries()
	return entries[len(entries)-1]
}

// =============================================================================
// TESTS
// =============================================================================

func TestModel_StartupView(t *testing.T) {
	h := newTUI(t, &stubBackend{})
	require.Equal(t, readiness.StatusReady, h.m.Console().Status())

	view := h.m.View()
	for _, want := range []string{"Guardrails Console", "Guardrails AI", "Ollama", "m1", "[x] PII", "Connected to backend", "Online", "RTX 4090"} {
		assert.Contains(t, view, want)
	}
}

func TestModel_SubmitChat(t *testing.T) {
	b := &stubBackend{result: gateway.ChatResult{Response: "[SAFE] Hello back", Status: gateway.ChatSuccess, FrameworkUsed: "Guardrails AI"}}
	h := newTUI(t, b)

	h.enter("hello")

	require.Len(t, b.chats, 1)
	assert.Equal(t, "hello", b.chats[0].Message)
	assert.Equal(t, "m1", b.chats[0].ModelName)
	assert.Empty(t, h.m.InputValue())
	assert.Equal(t, 2, h.m.Console().Transcript().Len())

	view := h.m.View()
	assert.Contains(t, view, "Hello back")
	assert.NotContains(t, view, "[SAFE]")
}

func TestModel_BlockedReplyShowsViolation(t *testing.T) {
	b := &stubBackend{result: gateway.ChatResult{Response: "Blocked: contains an email", Status: gateway.ChatBlocked, Violation: "PII"}}
	h := newTUI(t, b)

	h.enter("my email is a@b.c")
	assert.Contains(t, h.m.View(), "PII Detected")
}

func TestModel_SubmitWhenOffline(t *testing.T) {
	h := newTUI(t, &stubBackend{down: true})
	require.Equal(t, readiness.StatusError, h.m.Console().Status())

	h.enter("hello")

	notice, isErr := h.m.Notice()
	assert.True(t, isErr)
	assert.Equal(t, "cannot send messages while Offline", notice)
	assert.Equal(t, "hello", h.m.InputValue(), "input kept for retry")
	assert.Equal(t, "System not ready: cannot send messages while Offline", lastLog(h.m.Console()).Message)
}

func TestModel_SlashCommands(t *testing.T) {
	h := newTUI(t, &stubBackend{})

	h.enter("/model m2")
	notice, isErr := h.m.Notice()
	assert.False(t, isErr)
	assert.Equal(t, "Model set to m2", notice)
	assert.Equal(t, "m2", h.m.Console().Resources().SelectedModel)
	assert.Empty(t, h.m.InputValue())

	h.enter("/fw nemo")
	assert.Equal(t, "nemo", h.m.Console().Resources().SelectedFramework)
	assert.Equal(t, []string{"jailbreak"}, h.m.Console().Rules().Keys())

	h.enter("/bogus")
	notice, isErr = h.m.Notice()
	assert.True(t, isErr)
	assert.Contains(t, notice, "unknown command")

	h.press(tea.KeyEsc)
	notice, _ = h.m.Notice()
	assert.Empty(t, notice)
}

func TestModel_TabCompletion(t *testing.T) {
	h := newTUI(t, &stubBackend{})

	h.typeText("/mo")
	h.press(tea.KeyTab)
	assert.Equal(t, "/model", h.m.InputValue())
	assert.Equal(t, FocusInput, h.m.Focus())

	h.typeText(" ")
	h.press(tea.KeyTab)
	assert.Equal(t, "/model m1", h.m.InputValue())
	h.press(tea.KeyTab)
	assert.Equal(t, "/model m2", h.m.InputValue())
}

func TestModel_PanelNavigation(t *testing.T) {
	h := newTUI(t, &stubBackend{})

	h.press(tea.KeyTab)
	require.Equal(t, FocusFramework, h.m.Focus())
	h.press(tea.KeyDown)
	assert.Equal(t, "nemo", h.m.Console().Resources().SelectedFramework)
	h.press(tea.KeyUp)
	assert.Equal(t, "guardrails_ai", h.m.Console().Resources().SelectedFramework)

	h.press(tea.KeyTab)
	h.press(tea.KeyTab)
	require.Equal(t, FocusModel, h.m.Focus())
	h.press(tea.KeyRight)
	assert.Equal(t, "m2", h.m.Console().Resources().SelectedModel)

	h.press(tea.KeyShiftTab)
	assert.Equal(t, FocusProvider, h.m.Focus())
	h.press(tea.KeyEsc)
	assert.Equal(t, FocusInput, h.m.Focus())
}

func TestModel_ToggleRule(t *testing.T) {
	h := newTUI(t, &stubBackend{})

	for h.m.Focus() != FocusRules {
		h.press(tea.KeyTab)
	}
	h.press(tea.KeyDown)
	h.press(tea.KeySpace)

	assert.Equal(t, map[string]bool{"pii": true, "toxicity": false}, h.m.Console().Rules().Map())
	assert.Contains(t, h.m.View(), "[ ] Toxicity")
}

func TestModel_ToggleRuleWhenOffline(t *testing.T) {
	h := newTUI(t, &stubBackend{down: true})

	for h.m.Focus() != FocusRules {
		h.press(tea.KeyTab)
	}
	h.press(tea.KeySpace)

	_, isErr := h.m.Notice()
	assert.True(t, isErr)
}

func TestModel_ClearLogsAndHelp(t *testing.T) {
	h := newTUI(t, &stubBackend{})
	require.NotZero(t, h.m.Console().Activity().Len())

	h.press(tea.KeyCtrlL)
	assert.Zero(t, h.m.Console().Activity().Len())
	assert.Contains(t, h.m.View(), "Log is empty.")

	h.press(tea.KeyCtrlG)
	assert.Contains(t, h.m.View(), "clear system log")
}

func TestModel_ConfigReload(t *testing.T) {
	h := newTUI(t, &stubBackend{})

	cfg := config.Default()
	cfg.UI.Theme = "light"
	cfg.UI.MaxLogEntries = 2
	cfg.UI.RenderMarkdown = false
	h.send(ConfigReloadedMsg{Config: cfg})

	assert.Equal(t, "light", h.m.theme.Mode)
	assert.Equal(t, 2, h.m.Console().Activity().Len())
	assert.Equal(t, "Configuration reloaded", lastLog(h.m.Console()).Message)
}

func TestModel_NarrowLayoutHidesSidebar(t *testing.T) {
	h := newTUI(t, &stubBackend{})
	h.send(tea.WindowSizeMsg{Width: 50, Height: 30})

	view := h.m.View()
	assert.NotContains(t, view, "Provider")
	assert.Contains(t, view, "System Log")
}

func TestModel_Quit(t *testing.T) {
	h := newTUI(t, &stubBackend{})
	h.press(tea.KeyCtrlC)
	assert.True(t, h.m.Quitting())
	assert.Empty(t, h.m.View())

	h = newTUI(t, &stubBackend{})
	h.enter("/quit")
	assert.True(t, h.m.Quitting())
}

func TestMarkdownRenderer_Caches(t *testing.T) {
	r := newMarkdownRenderer("dark")

	out := r.Render("id-1", "**bold** text", 40)
	assert.Contains(t, out, "bold")
	assert.Equal(t, 1, r.Len())

	assert.Equal(t, out, r.Render("id-1", "**bold** text", 40))
	assert.Equal(t, 1, r.Len())

	r.Render("id-1", "**bold** text", 60)
	assert.Equal(t, 2, r.Len())

	r.SetStyle("light")
	assert.Zero(t, r.Len())
}
