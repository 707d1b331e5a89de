// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/guardrails-console/internal/model"
	"github.com/jeranaias/guardrails-console/internal/readiness"
)

// Theme modes accepted by NewTheme.
const (
	ModeDark  = "dark"
	ModeLight = "light"
	ModeAuto  = "auto"
)

// Theme holds all the styled components for the application.
type Theme struct {
	Mode         string
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderMeta  lipgloss.Style

	// ==========================================================================
	// PANELS
	// ==========================================================================

	Panel        lipgloss.Style
	PanelFocused lipgloss.Style
	PanelTitle   lipgloss.Style
	Label        lipgloss.Style
	Value        lipgloss.Style
	Selected     lipgloss.Style
	Muted        lipgloss.Style
	RuleOn       lipgloss.Style
	RuleOff      lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT
	// ==========================================================================

	UserLabel   lipgloss.Style
	UserText    lipgloss.Style
	AILabel     lipgloss.Style
	AIText      lipgloss.Style
	SystemText  lipgloss.Style
	ErrorText   lipgloss.Style
	Timestamp   lipgloss.Style
	CommandEcho lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS BAR
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	StatusBar      lipgloss.Style
	ShortcutKey    lipgloss.Style
	ShortcutDesc   lipgloss.Style
	Spinner        lipgloss.Style

	CompletionPopup    lipgloss.Style
	CompletionItem     lipgloss.Style
	CompletionSelected lipgloss.Style
}

// NewTheme creates a theme for mode ("dark", "light" or "auto"). Auto asks
// the terminal for its background. The choice is applied to lipgloss so
// adaptive colors follow it.
func NewTheme(mode string) *Theme {
	isDark := true
	switch mode {
	case ModeLight:
		isDark = false
	case ModeAuto:
		isDark = termenv.HasDarkBackground()
	default:
		mode = ModeDark
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		Mode:         mode,
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

// GlamourStyle returns the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderMeta = lipgloss.NewStyle().
		Foreground(TextSecondary)

	// Panels
	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.PanelFocused = t.Panel.
		BorderForeground(Purple)

	t.PanelTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.Label = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.Value = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.Selected = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.Muted = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.RuleOn = lipgloss.NewStyle().
		Foreground(Emerald)

	t.RuleOff = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Transcript
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Blue)

	t.UserText = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.AILabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.AIText = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.SystemText = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)

	t.ErrorText = lipgloss.NewStyle().
		Foreground(Rose)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.CommandEcho = lipgloss.NewStyle().
		Foreground(TextSecondary)

	// Input
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ShortcutKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	// Completion popup
	t.CompletionPopup = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Overlay)

	t.CompletionItem = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.CompletionSelected = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Purple)
}

// StatusBadge renders the readiness indicator and label.
func (t *Theme) StatusBadge(s readiness.Status, label string) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(StatusColor(s)).
		Render(StatusIndicator(s) + " " + label)
}

// ViolationBadge renders a blocked-reply badge in the class color.
func (t *Theme) ViolationBadge(class, text string) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Background(ViolationColor(class)).
		Padding(0, 1).
		Render(text)
}

// LogLine renders one system log entry.
func (t *Theme) LogLine(entry model.LogEntry) string {
	ts := t.Timestamp.Render(entry.Timestamp.Format("15:04:05"))
	return ts + " " + RenderSeverity(entry.Severity, entry.Message)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns, no sidebar
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
