// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/guardrails-console/internal/commands"
	"github.com/jeranaias/guardrails-console/internal/config"
	"github.com/jeranaias/guardrails-console/internal/console"
	"github.com/jeranaias/guardrails-console/internal/gateway"
	"github.com/jeranaias/guardrails-console/internal/model"
	"github.com/jeranaias/guardrails-console/internal/readiness"
	"github.com/jeranaias/guardrails-console/internal/resources"
	"github.com/jeranaias/guardrails-console/internal/session"
	"github.com/jeranaias/guardrails-console/internal/ui/styles"
)

const linePrompt = "guardctl> "

func newChatCmd(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Line-mode console with history and tab completion",
		Long: `Runs the console without the full-screen interface.

Plain text is sent through the moderation pipeline. Lines starting with /
are commands; /help lists them. System log entries are printed as they
arrive. Ctrl+D or /quit exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return runLine(cmd.Context(), cfg, path, os.Stdout)
		},
	}
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineEditor provides line editing, history and completion for line mode.
type lineEditor struct {
	line        *liner.State
	historyFile string
}

func newLineEditor(complete func(string) []string) *lineEditor {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetTabCompletionStyle(liner.TabPrints)
	line.SetCompleter(complete)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	e := &lineEditor{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(e.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return e
}

// Prompt reads one line. Non-blank input is added to the history.
func (e *lineEditor) Prompt(prompt string) (string, error) {
	input, err := e.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		e.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history (0600) and restores the terminal.
func (e *lineEditor) Close() {
	if err := os.MkdirAll(filepath.Dir(e.historyFile), 0o700); err == nil {
		if f, err := os.OpenFile(e.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = e.line.WriteHistory(f)
			f.Close()
		}
	}
	e.line.Close()
}

// =============================================================================
// LINE MODEL
// =============================================================================

// inputMsg carries one line typed by the operator. done is closed once the
// line has been handled, including the reply to a chat message.
type inputMsg struct {
	text string
	done chan struct{}
}

type lineReloadMsg struct {
	cfg *config.Config
}

// lineModel drives the console on a headless Bubble Tea program and prints
// log entries and replies as they arrive.
type lineModel struct {
	console  *console.Console
	registry *commands.Registry
	theme    *styles.Theme
	out      io.Writer

	printedLog  uint64
	printedMsgs int

	settled chan struct{} // closed once the first probe has an outcome
	quit    chan struct{} // closed when the operator asked to exit
	pending chan struct{}

	// completion candidates, read from the editor goroutine
	mu    sync.Mutex
	set   resources.ResourceSet
	rules []string
}

func newLineModel(c *console.Console, out io.Writer) *lineModel {
	return &lineModel{
		console:  c,
		registry: commands.NewRegistry(),
		theme:    styles.NewTheme(styles.ModeDark),
		out:      out,
		settled:  make(chan struct{}),
		quit:     make(chan struct{}),
	}
}

func (m *lineModel) Init() tea.Cmd {
	cmd := m.console.Init()
	m.flush()
	return cmd
}

func (m *lineModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case inputMsg:
		m.pending = msg.done
		cmd = m.handleInput(msg.text)
	case lineReloadMsg:
		m.console.Activity().SetMaxEntries(msg.cfg.UI.MaxLogEntries)
		m.console.Activity().Log(model.SeverityInfo, "Configuration reloaded")
	default:
		cmd = m.console.Update(msg)
	}

	m.flush()
	m.snapshot()
	m.signal()
	return m, cmd
}

func (m *lineModel) View() string { return "" }

func (m *lineModel) handleInput(text string) tea.Cmd {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if commands.IsCommand(text) {
		res, err := m.registry.Execute(m.console, text)
		if err != nil {
			fmt.Fprintln(m.out, styles.RenderError(err.Error()))
			return nil
		}
		if res.Output != "" {
			fmt.Fprintln(m.out, res.Output)
		}
		if res.Quit {
			close(m.quit)
			return tea.Quit
		}
		return res.Cmd
	}

	cmd, result := m.console.Submit(text)
	if result == session.SubmitInFlight {
		fmt.Fprintln(m.out, WarningStyle.Render("Waiting for the previous reply"))
	}
	return cmd
}

// flush prints log entries and transcript messages not printed yet. The
// operator's own messages are not echoed.
func (m *lineModel) flush() {
	for _, e := range m.console.Activity().Entries() {
		if e.ID <= m.printedLog {
			continue
		}
		line := m.theme.LogLine(e)
		if e.Source == model.SourcePipeline {
			line = DimStyle.Render("pipeline ") + line
		}
		fmt.Fprintln(m.out, line)
		m.printedLog = e.ID
	}

	msgs := m.console.Transcript().Messages()
	if m.printedMsgs > len(msgs) {
		m.printedMsgs = 0
	}
	for _, msg := range msgs[m.printedMsgs:] {
		if msg.Sender != model.SenderUser {
			fmt.Fprintln(m.out, formatReply(msg))
		}
	}
	m.printedMsgs = len(msgs)
}

func (m *lineModel) snapshot() {
	set := m.console.Resources().Clone()
	rules := m.console.Rules().Keys()
	m.mu.Lock()
	m.set, m.rules = set, rules
	m.mu.Unlock()
}

func (m *lineModel) signal() {
	if m.settled != nil {
		if s := m.console.Status(); s == readiness.StatusReady || s == readiness.StatusError {
			close(m.settled)
			m.settled = nil
		}
	}
	if m.pending != nil && !m.console.InFlight() {
		close(m.pending)
		m.pending = nil
	}
}

// completer returns a completer over the last snapshot.
func (m *lineModel) completer() *commands.Completer {
	c := commands.NewCompleter(m.registry)
	c.FrameworksFn = func() []gateway.Option {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.set.Frameworks
	}
	c.ProvidersFn = func() []gateway.Option {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.set.Providers
	}
	c.ModelsFn = func() []string {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.set.Models
	}
	c.RulesFn = func() []string {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.rules
	}
	return c
}

// formatReply renders an AI or system message for line mode.
func formatReply(msg model.ChatMessage) string {
	switch msg.Sender {
	case model.SenderAI:
		label := msg.Sender.DisplayName()
		if msg.Framework != "" {
			label += " via " + msg.Framework
		}
		text := session.CleanResponse(msg.Text)
		if msg.IsBlocked() {
			v := session.PresentViolation(msg.ViolationKind)
			return fmt.Sprintf("%s %s\n%s",
				AILabelStyle.Render(label+":"),
				ErrorStyle.Render("["+v.Label+"]"),
				text)
		}
		return AILabelStyle.Render(label+":") + " " + text
	default:
		if msg.IsError() {
			return styles.RenderError(msg.Text)
		}
		return DimStyle.Render(styles.StatusIndicators.Info + " " + msg.Text)
	}
}

// =============================================================================
// LINE MODE
// =============================================================================

// runLine runs the console in line mode until EOF, /quit or ctx ends.
func runLine(ctx context.Context, cfg *config.Config, path string, out io.Writer) error {
	a, err := newApp(cfg, path)
	if err != nil {
		return err
	}
	defer a.stop()

	m := newLineModel(a.console, out)
	settled, quit := m.settled, m.quit
	completer := m.completer()

	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	)
	a.start(ctx, func(next *config.Config) {
		config.SetGlobal(next)
		p.Send(lineReloadMsg{cfg: next})
	})

	exited := make(chan error, 1)
	go func() {
		_, err := p.Run()
		exited <- err
	}()

	printBanner(out, cfg)

	select {
	case <-settled:
	case <-time.After(cfg.RequestTimeout()):
	case err := <-exited:
		return programErr(ctx, err)
	}

	editor := newLineEditor(completer.Lines)
	defer editor.Close()

	for {
		line, err := editor.Prompt(linePrompt)
		if err != nil {
			// Ctrl+C, Ctrl+D or closed input
			fmt.Fprintln(out)
			break
		}

		done := make(chan struct{})
		p.Send(inputMsg{text: line, done: done})
		select {
		case <-done:
		case err := <-exited:
			return programErr(ctx, err)
		}

		select {
		case <-quit:
			return programErr(ctx, <-exited)
		default:
		}
	}

	p.Quit()
	return programErr(ctx, <-exited)
}

func programErr(ctx context.Context, err error) error {
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func printBanner(out io.Writer, cfg *config.Config) {
	fmt.Fprintln(out, TitleStyle.Render("guardctl line mode"))
	fmt.Fprintf(out, "%s %s\n", LabelStyle.Render("Backend:"), ValueStyle.Render(cfg.Backend.URL))
	fmt.Fprintln(out, DimStyle.Render("Type a message and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(out)
}
