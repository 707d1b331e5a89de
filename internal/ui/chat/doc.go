// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the interactive Bubble Tea console.
//
// The model wraps a console.Console and renders:
//   - a sidebar with the framework, provider, model and rule panels
//   - the chat transcript, with glamour-rendered replies when enabled
//   - the system log fed by the activity log and the pipeline stream
//   - an input line that accepts chat text and /commands with tab completion
//
// Panels are focused with Tab and navigated with the arrow keys. Every
// network operation runs as a tea.Cmd owned by the console.
package chat
