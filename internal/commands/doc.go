// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system shared by the TUI and
// the line-mode chat.
//
// Commands operate on a Target, which the console satisfies. A handler
// returns a Result carrying an optional Bubble Tea command to run, text to
// show the operator, and a quit flag.
//
// # Key Types
//
//   - Registry: Command registry with all built-in commands
//   - Parser / ParseResult: Splits "/name args" with quote handling
//   - Completer: Tab completion for command names and arguments
//
// # Built-in Commands
//
//   - /framework, /provider, /model: Change the selection
//   - /toggle: Flip a moderation rule
//   - /pull: Ask the backend to download a model
//   - /export: Save the session to Markdown or JSON
//   - /refresh, /status, /rules, /clear, /help, /quit
//
// # Usage
//
//	reg := commands.NewRegistry()
//	res, err := reg.Execute(console, "/model llama3")
package commands
