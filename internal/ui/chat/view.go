// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/guardrails-console/internal/gateway"
	"github.com/jeranaias/guardrails-console/internal/model"
	"github.com/jeranaias/guardrails-console/internal/readiness"
	"github.com/jeranaias/guardrails-console/internal/session"
	"github.com/jeranaias/guardrails-console/internal/ui/styles"
	"github.com/jeranaias/guardrails-console/internal/util"
)

const (
	headerHeight    = 1
	inputHeight     = 3 // border + line
	statusBarHeight = 1
	sidebarWidth    = 32
	minLogHeight    = 5
	maxPopupItems   = 6
)

// =============================================================================
// LAYOUT
// =============================================================================

// layout sizes the viewports for the current terminal and overlays.
func (m *Model) layout() {
	m.theme.SetSize(m.width, m.height)
	m.statusBar.SetWidth(m.width)
	m.help.Width = m.width

	body := m.bodyHeight()
	logHeight := max(body/3, minLogHeight)
	chatHeight := max(body-logHeight, 3)

	mainCol := m.mainWidth()
	// panel border and padding take 4 columns; border and title take 3 rows
	m.transcript.Width = max(mainCol-4, 10)
	m.transcript.Height = max(chatHeight-3, 1)
	m.logs.Width = max(mainCol-4, 10)
	m.logs.Height = max(logHeight-3, 1)
	m.input.Width = max(m.width-8, 10)

	// force a re-render at the new width
	m.renderedMsgs = -1
	m.renderedLogs = -1
	m.sync()
}

func (m *Model) bodyHeight() int {
	reserved := headerHeight + inputHeight + statusBarHeight
	if m.notice != "" {
		reserved += lipgloss.Height(m.notice) + 2
	}
	if m.completion.Visible {
		reserved += min(len(m.completion.Completions), maxPopupItems) + 2
	}
	if m.showHelp {
		reserved += lipgloss.Height(m.help.FullHelpView(m.keys.FullHelp()))
	}
	return max(m.height-reserved, minLogHeight+3)
}

func (m *Model) showSidebar() bool {
	return m.theme.GetLayoutMode() != styles.LayoutNarrow
}

func (m *Model) mainWidth() int {
	if m.showSidebar() {
		return m.width - sidebarWidth
	}
	return m.width
}

// sync re-renders the transcript and log viewports when their content
// changed and refreshes the status bar.
func (m *Model) sync() {
	transcript := m.console.Transcript()
	if n := transcript.Len(); n != m.renderedMsgs {
		m.transcript.SetContent(m.renderMessages(transcript.Messages()))
		m.transcript.GotoBottom()
		m.renderedMsgs = n
	}

	activity := m.console.Activity()
	if id, n := activity.LastID(), activity.Len(); id != m.renderedLogID || n != m.renderedLogs {
		atBottom := m.logs.AtBottom() || m.renderedLogs <= 0
		m.logs.SetContent(m.renderLogs(activity.Entries()))
		if atBottom {
			m.logs.GotoBottom()
		}
		m.renderedLogID, m.renderedLogs = id, n
	}

	if keys := m.console.Rules().Len(); m.ruleCursor >= keys {
		m.ruleCursor = max(keys-1, 0)
	}

	m.statusBar.Status = m.console.Status()
	m.statusBar.Line = m.console.StatusLine()
	m.statusBar.FeedOnline = m.console.FeedConnected()
	m.statusBar.GPU = m.console.GPULabel()
	m.statusBar.Waiting = m.console.InFlight()
	m.statusBar.Spinner = m.spinner.View()
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		m.renderPanel("Chat", m.transcript.View(), m.mainWidth(), false),
		m.renderPanel("System Log", m.logs.View(), m.mainWidth(), m.focus == FocusLogs),
	)
	if m.showSidebar() {
		sidebar := lipgloss.NewStyle().
			Width(sidebarWidth).
			MaxHeight(m.bodyHeight()).
			Render(m.renderSidebar())
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, body)
	}

	parts := []string{m.renderHeader(), body}
	if m.notice != "" {
		parts = append(parts, m.renderNotice())
	}
	if m.completion.Visible {
		parts = append(parts, m.renderCompletions())
	}
	parts = append(parts, m.renderInput(), m.statusBar.View())
	if m.showHelp {
		parts = append(parts, m.help.FullHelpView(m.keys.FullHelp()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("Guardrails Console")
	meta := ""
	if m.backend != "" {
		meta = m.theme.HeaderMeta.Render("  " + m.backend)
	}
	return m.theme.Header.Width(m.width).Render(title + meta)
}

func (m Model) renderPanel(title, content string, width int, focused bool) string {
	style := m.theme.Panel
	if focused {
		style = m.theme.PanelFocused
	}
	// Width excludes the border in lipgloss.
	return style.Width(max(width-2, 1)).Render(m.theme.PanelTitle.Render(title) + "\n" + content)
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar() string {
	set := m.console.Resources()
	inner := sidebarWidth - 4

	sections := []string{
		m.renderPanel("Framework", m.renderOptions(set.Frameworks, set.SelectedFramework, inner), sidebarWidth, m.focus == FocusFramework),
		m.renderPanel("Provider", m.renderOptions(set.Providers, set.SelectedProvider, inner), sidebarWidth, m.focus == FocusProvider),
		m.renderPanel("Model", m.renderModels(set.Models, set.SelectedModel, inner), sidebarWidth, m.focus == FocusModel),
		m.renderPanel("Rules", m.renderRules(inner), sidebarWidth, m.focus == FocusRules),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderOptions(options []gateway.Option, selected string, width int) string {
	if len(options) == 0 {
		return m.theme.Muted.Render("none")
	}
	lines := make([]string, len(options))
	for i, o := range options {
		lines[i] = m.renderChoice(o.Label(), o.ID == selected, width)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderModels(models []string, selected string, width int) string {
	if len(models) == 0 {
		if m.console.Resources().SelectedProvider != "" && m.console.Status() == readiness.StatusLoadingModel {
			return m.theme.Muted.Render("loading...")
		}
		return m.theme.Muted.Render("none")
	}
	lines := make([]string, len(models))
	for i, name := range models {
		lines[i] = m.renderChoice(name, name == selected, width)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderChoice(label string, selected bool, width int) string {
	label = util.TruncateWidth(label, width-2)
	if selected {
		return m.theme.Selected.Render("> " + label)
	}
	return m.theme.Value.Render("  " + label)
}

func (m Model) renderRules(width int) string {
	rules := m.console.Rules()
	if rules.Len() == 0 {
		return m.theme.Muted.Render("none")
	}
	lines := make([]string, 0, rules.Len())
	for i, sw := range rules.Switches() {
		box, style := "[ ]", m.theme.RuleOff
		if rules.Enabled(sw.Key) {
			box, style = "[x]", m.theme.RuleOn
		}
		label := sw.Label
		if label == "" {
			label = sw.Key
		}
		line := style.Render(box + " " + util.TruncateWidth(label, width-6))
		if m.focus == FocusRules && i == m.ruleCursor {
			line = m.theme.Selected.Render(">") + " " + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m *Model) renderMessages(msgs []model.ChatMessage) string {
	if len(msgs) == 0 {
		return m.theme.Muted.Render("No messages yet. Pick a framework and model, then type below.")
	}
	blocks := make([]string, len(msgs))
	for i, msg := range msgs {
		blocks[i] = m.renderMessage(msg)
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) renderMessage(msg model.ChatMessage) string {
	width := m.transcript.Width
	ts := m.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))

	switch msg.Sender {
	case model.SenderUser:
		header := m.theme.UserLabel.Render(msg.Sender.DisplayName()) + " " + ts
		return header + "\n" + m.theme.UserText.Width(width).Render(msg.Text)

	case model.SenderAI:
		label := msg.Sender.DisplayName()
		if msg.Framework != "" {
			label += " via " + msg.Framework
		}
		header := m.theme.AILabel.Render(label) + " " + ts
		text := session.CleanResponse(msg.Text)
		if msg.IsBlocked() {
			v := session.PresentViolation(msg.ViolationKind)
			badge := m.theme.ViolationBadge(v.Class, v.Icon+" "+v.Label)
			return header + " " + badge + "\n" + m.theme.AIText.Width(width).Render(text)
		}
		if m.ui.RenderMarkdown {
			return header + "\n" + m.markdown.Render(msg.ID, text, width)
		}
		return header + "\n" + m.theme.AIText.Width(width).Render(text)

	default:
		style := m.theme.SystemText
		if msg.IsError() {
			style = m.theme.ErrorText
		}
		return style.Width(width).Render(styles.StatusIndicators.Info + " " + msg.Text)
	}
}

// =============================================================================
// SYSTEM LOG
// =============================================================================

func (m *Model) renderLogs(entries []model.LogEntry) string {
	if len(entries) == 0 {
		return m.theme.Muted.Render("Log is empty.")
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		line := m.theme.LogLine(e)
		if e.Source == model.SourcePipeline {
			line = m.theme.Muted.Render("pipeline ") + line
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// INPUT AREA
// =============================================================================

func (m Model) renderInput() string {
	style := m.theme.InputContainer
	if m.focus == FocusInput {
		style = style.BorderForeground(styles.Purple)
	}
	return style.Width(max(m.width-2, 1)).Render(m.input.View())
}

func (m Model) renderNotice() string {
	style := m.theme.Panel
	text := m.notice
	if m.noticeErr {
		text = styles.RenderError(text)
	}
	return style.Width(max(m.width-2, 1)).Render(text)
}

func (m Model) renderCompletions() string {
	items := m.completion.Completions
	start := 0
	if m.completion.Selected >= maxPopupItems {
		start = m.completion.Selected - maxPopupItems + 1
	}
	end := min(start+maxPopupItems, len(items))

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		c := items[i]
		line := c.Display
		if c.Description != "" {
			line = fmt.Sprintf("%-22s %s", c.Display, c.Description)
		}
		line = util.TruncateWidth(line, max(m.width-4, 10))
		if i == m.completion.Selected {
			lines = append(lines, m.theme.CompletionSelected.Render(line))
		} else {
			lines = append(lines, m.theme.CompletionItem.Render(line))
		}
	}
	return m.theme.CompletionPopup.Render(strings.Join(lines, "\n"))
}
