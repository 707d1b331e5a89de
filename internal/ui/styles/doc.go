// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the console TUI.

All colors use Lip Gloss AdaptiveColor. NewTheme pins the background to the
configured mode (dark, light or auto-detected) so the adaptive colors
resolve consistently.

# Colors (colors.go)

  - Purple, Cyan, Emerald, Amber, Rose, Blue accents
  - StatusColor for readiness states
  - SeverityColor for system log entries
  - ViolationColor for blocked-reply classes

Every colored state also has an ASCII indicator (StatusIndicators) so it
reads without color.

# Theme (theme.go)

	theme := styles.NewTheme(cfg.UI.Theme)
	line := theme.LogLine(entry)
	badge := theme.StatusBadge(console.Status(), console.StatusLine())
*/
package styles
