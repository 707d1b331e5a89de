// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/guardrails-console/internal/commands"
	"github.com/jeranaias/guardrails-console/internal/config"
	"github.com/jeranaias/guardrails-console/internal/console"
	"github.com/jeranaias/guardrails-console/internal/model"
	"github.com/jeranaias/guardrails-console/internal/readiness"
	"github.com/jeranaias/guardrails-console/internal/session"
	"github.com/jeranaias/guardrails-console/internal/ui/components"
	"github.com/jeranaias/guardrails-console/internal/ui/styles"
)

// errNoRule is reported when the rules panel is empty.
var errNoRule = errors.New("no rules for this framework")

// Focus is the panel receiving navigation keys.
type Focus int

const (
	FocusInput Focus = iota
	FocusFramework
	FocusProvider
	FocusModel
	FocusRules
	FocusLogs
	focusCount
)

func (f Focus) String() string {
	switch f {
	case FocusFramework:
		return "framework"
	case FocusProvider:
		return "provider"
	case FocusModel:
		return "model"
	case FocusRules:
		return "rules"
	case FocusLogs:
		return "logs"
	default:
		return "input"
	}
}

// ConfigReloadedMsg carries a configuration re-read from disk. Only the [ui]
// section is applied live.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// Options configure the TUI. The zero value renders plain text with the
// dark theme.
type Options struct {
	UI config.UIConfig
	// Backend is shown in the header.
	Backend string
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the interactive console.
type Model struct {
	console *console.Console
	theme   *styles.Theme
	keys    KeyMap

	registry   *commands.Registry
	completer  *commands.Completer
	completion *commands.CompletionState

	input      textinput.Model
	transcript viewport.Model
	logs       viewport.Model
	spinner    spinner.Model
	help       help.Model
	statusBar  *components.StatusBar
	markdown   *markdownRenderer

	ui      config.UIConfig
	backend string

	focus      Focus
	ruleCursor int
	showHelp   bool

	notice    string
	noticeErr bool

	// content fingerprints, to re-render and auto-scroll only on change
	renderedMsgs  int
	renderedLogID uint64
	renderedLogs  int

	width  int
	height int

	quitting bool
}

// New creates the TUI model around c.
func New(c *console.Console, opts Options) Model {
	ui := opts.UI
	if ui.Theme == "" {
		ui.Theme = styles.ModeDark
	}
	theme := styles.NewTheme(ui.Theme)

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message or /help..."
	ti.CharLimit = 8192
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	registry := commands.NewRegistry()
	keys := DefaultKeyMap()

	bar := components.NewStatusBar(theme)
	bar.Shortcuts = []components.Shortcut{
		{Key: "Tab", Desc: "panels"},
		{Key: "C-r", Desc: "refresh"},
		{Key: "C-g", Desc: "help"},
		{Key: "C-c", Desc: "quit"},
	}

	m := Model{
		console:    c,
		theme:      theme,
		keys:       keys,
		registry:   registry,
		completer:  commands.NewTargetCompleter(registry, c),
		completion: commands.NewCompletionState(),
		input:      ti,
		transcript: viewport.New(80, 10),
		logs:       viewport.New(80, 5),
		spinner:    sp,
		help:       help.New(),
		statusBar:  bar,
		markdown:   newMarkdownRenderer(theme.GlamourStyle()),
		ui:         ui,
		backend:    opts.Backend,
		width:      80,
		height:     24,
	}
	m.layout()
	return m
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the console and the cursor blink.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.console.Init())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()

	case tea.KeyMsg:
		m, cmd = m.handleKey(msg)

	case spinner.TickMsg:
		// Ticking stops once no reply is pending.
		if m.console.InFlight() {
			m.spinner, cmd = m.spinner.Update(msg)
		}

	case ConfigReloadedMsg:
		m.applyUI(msg.Config.UI)

	default:
		cmd = m.console.Update(msg)
	}

	m.sync()
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.layout()
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.console.Refresh()
	case key.Matches(msg, m.keys.ClearLogs):
		m.console.ClearLogs()
		return m, nil
	case key.Matches(msg, m.keys.Dismiss):
		m.completion.Clear()
		m.setNotice("", false)
		m.setFocus(FocusInput)
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.transcript.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.transcript.HalfViewDown()
		return m, nil
	case key.Matches(msg, m.keys.FocusPrev):
		m.completion.Clear()
		m.setFocus((m.focus + focusCount - 1) % focusCount)
		return m, nil
	}

	if m.focus == FocusInput && key.Matches(msg, m.keys.Complete) && commands.IsCommand(m.input.Value()) {
		m.complete()
		return m, nil
	}
	if key.Matches(msg, m.keys.FocusNext) {
		m.completion.Clear()
		m.setFocus((m.focus + 1) % focusCount)
		return m, nil
	}

	if m.focus == FocusInput {
		return m.handleInputKey(msg)
	}
	return m.handlePanelKey(msg)
}

func (m Model) handleInputKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Submit) {
		return m.submit()
	}
	m.completion.Clear()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handlePanelKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	back := key.Matches(msg, m.keys.Up) || key.Matches(msg, m.keys.Left)
	forward := key.Matches(msg, m.keys.Down) || key.Matches(msg, m.keys.Right)
	step := 0
	if back {
		step = -1
	} else if forward {
		step = 1
	}

	switch m.focus {
	case FocusFramework:
		if step != 0 {
			return m, m.console.CycleFramework(step)
		}
	case FocusProvider:
		if step != 0 {
			return m, m.console.CycleProvider(step)
		}
	case FocusModel:
		if step != 0 {
			m.console.CycleModel(step)
		}
	case FocusRules:
		keys := m.console.Rules().Keys()
		switch {
		case key.Matches(msg, m.keys.Toggle):
			if m.ruleCursor >= len(keys) {
				m.setNotice(errNoRule.Error(), true)
				break
			}
			if _, err := m.console.ToggleRule(keys[m.ruleCursor]); err != nil {
				m.setNotice(err.Error(), true)
			}
		case key.Matches(msg, m.keys.Up):
			m.ruleCursor = max(m.ruleCursor-1, 0)
		case key.Matches(msg, m.keys.Down):
			m.ruleCursor = min(m.ruleCursor+1, max(len(keys)-1, 0))
		}
	case FocusLogs:
		switch {
		case key.Matches(msg, m.keys.Up):
			m.logs.LineUp(1)
		case key.Matches(msg, m.keys.Down):
			m.logs.LineDown(1)
		}
	}
	return m, nil
}

// submit runs a slash command or sends the input as chat text.
func (m Model) submit() (Model, tea.Cmd) {
	text := m.input.Value()
	m.completion.Clear()

	if commands.IsCommand(text) {
		m.input.Reset()
		res, err := m.registry.Execute(m.console, text)
		if err != nil {
			m.setNotice(err.Error(), true)
			return m, nil
		}
		m.setNotice(res.Output, false)
		if res.Quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, res.Cmd
	}

	cmd, result := m.console.Submit(text)
	switch result {
	case session.SubmitAccepted:
		m.input.Reset()
		m.setNotice("", false)
		return m, tea.Batch(cmd, m.spinner.Tick)
	case session.SubmitInFlight:
		m.setNotice("Waiting for the previous reply", true)
	case session.SubmitNotReady:
		err := &readiness.NotReadyError{Action: readiness.ActionSubmit, Status: m.console.Status()}
		m.setNotice(err.Error(), true)
	}
	return m, nil
}

// complete fills the input from the next completion candidate.
func (m *Model) complete() {
	if m.completion.Visible {
		m.completion.Next()
	} else {
		value := m.input.Value()
		m.completion.Update(value, m.completer.Complete(value, len(value)))
	}
	if m.completion.Selection() == nil {
		return
	}
	m.input.SetValue(m.completion.Apply())
	m.input.CursorEnd()
	m.layout()
}

func (m *Model) setFocus(f Focus) {
	m.focus = f
	if f == FocusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
	m.layout()
}

// applyUI applies a reloaded [ui] section.
func (m *Model) applyUI(ui config.UIConfig) {
	if ui.Theme != m.ui.Theme {
		m.theme = styles.NewTheme(ui.Theme)
		m.statusBar = rebuildStatusBar(m.statusBar, m.theme)
		m.spinner.Style = m.theme.Spinner
		m.markdown.SetStyle(m.theme.GlamourStyle())
	}
	m.console.Activity().SetMaxEntries(ui.MaxLogEntries)
	m.ui = ui
	m.renderedMsgs = -1
	m.console.Activity().Log(model.SeverityInfo, "Configuration reloaded")
	m.layout()
}

func rebuildStatusBar(old *components.StatusBar, theme *styles.Theme) *components.StatusBar {
	bar := components.NewStatusBar(theme)
	bar.Shortcuts = old.Shortcuts
	bar.SetWidth(old.Width)
	return bar
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Focus returns the focused panel.
func (m Model) Focus() Focus { return m.focus }

// Notice returns the current command output or error line.
func (m Model) Notice() (string, bool) { return m.notice, m.noticeErr }

// Quitting reports whether the model asked the program to exit.
func (m Model) Quitting() bool { return m.quitting }

// InputValue returns the text in the input field.
func (m Model) InputValue() string { return m.input.Value() }

// Console returns the wrapped console.
func (m Model) Console() *console.Console { return m.console }
