// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session manages the lifecycle of outgoing chat messages.
//
// A Controller accepts at most one message at a time. Submission is gated on
// the readiness status; the response is classified as delivered, blocked by
// a moderation rule, busy (model still loading) or failed, and recorded in the
// transcript and the activity log.
//
// # Key Types
//
//   - Controller: submit/result state machine for one in-flight request
//   - ChatResultMsg: Bubble Tea message carrying a backend response
//   - Violation: display info for a moderation outcome
//
// # Usage
//
//	ctl := session.NewController(client, transcript, activity, logger)
//	cmd, res := ctl.Submit(text, status, target)
//	// later, in Update:
//	outcome := ctl.HandleResult(msg)
package session
