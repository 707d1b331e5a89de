// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the session records shown to the operator.
//
// # Key Types
//
//   - ChatMessage: immutable transcript entry (user, AI or system)
//   - Transcript: append-only list of ChatMessage values
//   - LogEntry: one line of the operator activity log
//   - ActivityLog: append-only, clearable log with monotonic entry ids
//
// # Usage
//
//	log := model.NewActivityLog(0)
//	log.Log(model.SeverityWarning, "No models found in ollama")
//
//	var t model.Transcript
//	t.Append(model.NewUserMessage("hello"))
//
// Values are created once and never mutated after being appended. Both
// containers are owned by a single writer on the event loop and carry no
// locking.
package model
