// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/guardrails-console/internal/model"
	"github.com/jeranaias/guardrails-console/internal/readiness"
)

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Purple - Primary accent, assistant replies, focus
var Purple = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}

// Cyan - Brand color, info entries, commands
var Cyan = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// Emerald - Success, ready status
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Rose - Errors, blocked replies
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Amber - Warnings, model loading
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// Blue - User messages
var Blue = lipgloss.AdaptiveColor{Light: "#2563EB", Dark: "#60A5FA"}

// =============================================================================
// SURFACE AND TEXT
// =============================================================================

var SurfaceDim = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}

// Overlay - Borders, separators
var Overlay = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}

var TextPrimary = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}
var TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
var TextMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}

// TextInverse - Text on colored backgrounds
var TextInverse = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#1E1E2E"}

// =============================================================================
// VIOLATION CLASSES (Catppuccin Latte/Mocha)
// =============================================================================

var violationColors = map[string]lipgloss.AdaptiveColor{
	"pii":           {Light: "#8839EF", Dark: "#CBA6F7"}, // Mauve
	"jailbreak":     {Light: "#D20F39", Dark: "#F38BA8"}, // Red
	"offtopic":      {Light: "#DF8E1D", Dark: "#F9E2AF"}, // Yellow
	"toxicity":      {Light: "#FE640B", Dark: "#FAB387"}, // Peach
	"hallucination": {Light: "#04A5E5", Dark: "#89DCEB"}, // Sky
	"competitor":    {Light: "#1E66F5", Dark: "#89B4FA"}, // Blue
	"llama":         {Light: "#40A02B", Dark: "#A6E3A1"}, // Green
	"error":         {Light: "#E64553", Dark: "#EBA0AC"}, // Maroon
}

// ViolationColor returns the color for a violation class. Unknown classes
// use Rose.
func ViolationColor(class string) lipgloss.AdaptiveColor {
	if c, ok := violationColors[class]; ok {
		return c
	}
	return Rose
}

// =============================================================================
// STATUS AND SEVERITY
// =============================================================================

// StatusColor returns the indicator color for a readiness status.
func StatusColor(s readiness.Status) lipgloss.AdaptiveColor {
	switch s {
	case readiness.StatusReady:
		return Emerald
	case readiness.StatusLoadingModel:
		return Amber
	case readiness.StatusError:
		return Rose
	default:
		return TextSecondary
	}
}

// SeverityColor returns the color of a system log entry.
func SeverityColor(sev model.Severity) lipgloss.AdaptiveColor {
	switch sev {
	case model.SeveritySuccess:
		return Emerald
	case model.SeverityWarning:
		return Amber
	case model.SeverityError:
		return Rose
	default:
		return Cyan
	}
}

// =============================================================================
// ACCESSIBILITY: Shapes alongside colors
// =============================================================================

// StatusIndicatorSet contains text indicators for status states.
type StatusIndicatorSet struct {
	Success string
	Error   string
	Warning string
	Info    string
	Pending string
	Active  string
}

// StatusIndicators provides ASCII shape indicators so state never depends
// on color alone.
var StatusIndicators = StatusIndicatorSet{
	Success: "[OK]",
	Error:   "[X]",
	Warning: "[!]",
	Info:    "[i]",
	Pending: "[ ]",
	Active:  "[*]",
}

// StatusIndicator returns the shape indicator for a readiness status.
func StatusIndicator(s readiness.Status) string {
	switch s {
	case readiness.StatusReady:
		return StatusIndicators.Active
	case readiness.StatusLoadingModel, readiness.StatusInitializing:
		return StatusIndicators.Pending
	default:
		return StatusIndicators.Error
	}
}

// SeverityIndicator returns the shape indicator for a log severity.
func SeverityIndicator(sev model.Severity) string {
	switch sev {
	case model.SeveritySuccess:
		return StatusIndicators.Success
	case model.SeverityWarning:
		return StatusIndicators.Warning
	case model.SeverityError:
		return StatusIndicators.Error
	default:
		return StatusIndicators.Info
	}
}

// RenderSeverity renders message with the indicator and color of sev.
func RenderSeverity(sev model.Severity, message string) string {
	style := lipgloss.NewStyle().Foreground(SeverityColor(sev))
	if sev == model.SeverityError {
		style = style.Bold(true)
	}
	return style.Render(SeverityIndicator(sev) + " " + message)
}

// RenderError renders an error message with X mark indicator.
func RenderError(message string) string {
	return RenderSeverity(model.SeverityError, message)
}
