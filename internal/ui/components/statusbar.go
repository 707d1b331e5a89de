// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/guardrails-console/internal/readiness"
	"github.com/jeranaias/guardrails-console/internal/ui/styles"
	"github.com/jeranaias/guardrails-console/internal/util"
)

// Shortcut is one key hint shown in the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// StatusBar is the bottom line: readiness, feed state, GPU and key hints.
type StatusBar struct {
	Status     readiness.Status
	Line       string // e.g. "Online | Guardrails AI | llama3"
	FeedOnline bool
	GPU        string // e.g. "RTX 4090" or "CPU Only"; hidden when empty
	Waiting    bool   // a chat request is pending
	Spinner    string // current spinner frame, shown while Waiting
	Shortcuts  []Shortcut
	Width      int
	theme      *styles.Theme
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Status: readiness.StatusInitializing,
		Width:  80,
		theme:  theme,
	}
}

// SetWidth updates the status bar width
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// View renders the bar for the current width.
func (s *StatusBar) View() string {
	var content string
	switch {
	case s.Width < 60:
		content = s.viewNarrow()
	case s.Width < 100:
		content = s.viewMedium()
	default:
		content = s.viewWide()
	}
	return s.theme.StatusBar.Width(s.Width).Render(content)
}

// viewNarrow: indicator and status only.
func (s *StatusBar) viewNarrow() string {
	return s.theme.StatusBadge(s.Status, s.Status.Label()) + s.waiting()
}

// viewMedium: full status line, feed state and GPU.
func (s *StatusBar) viewMedium() string {
	return s.left()
}

// viewWide: status line, feed state and shortcuts right-aligned.
func (s *StatusBar) viewWide() string {
	left := s.left()
	right := s.renderShortcuts()
	// 2 for the bar padding
	gap := s.Width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 || right == "" {
		return left
	}
	return left + strings.Repeat(" ", gap) + right
}

func (s *StatusBar) left() string {
	line := s.Line
	if line == "" {
		line = s.Status.Label()
	}
	separator := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" | ")
	feed := s.theme.RuleOn.Render("logs live")
	if !s.FeedOnline {
		feed = s.theme.Muted.Render("logs offline")
	}
	badge := s.theme.StatusBadge(s.Status, util.TruncateWidth(line, max(s.Width/2, 12)))
	gpu := ""
	if s.GPU != "" {
		gpu = separator + s.theme.Muted.Render(util.TruncateWidth(s.GPU, 24))
	}
	return badge + separator + feed + gpu + s.waiting()
}

func (s *StatusBar) waiting() string {
	if !s.Waiting {
		return ""
	}
	return " " + s.theme.Spinner.Render(s.Spinner) + s.theme.Muted.Render(" waiting for reply")
}

// renderShortcuts renders keyboard shortcut hints
func (s *StatusBar) renderShortcuts() string {
	parts := make([]string, 0, len(s.Shortcuts))
	for _, sc := range s.Shortcuts {
		parts = append(parts, s.theme.ShortcutKey.Render(sc.Key)+" "+s.theme.ShortcutDesc.Render(sc.Desc))
	}
	return strings.Join(parts, "  ")
}
