// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package console composes the session orchestration core.
//
// A Console owns one instance of each component: the connectivity
// supervisor, the resource resolver, the readiness machine, the chat
// controller and the operator log. It is driven entirely by the Bubble Tea
// event loop: network work runs inside returned tea.Cmds, results come back
// as messages through Update, and the readiness status is recomputed after
// every message and intent.
//
// # Usage
//
//	c := console.New(client, console.Options{Feed: ingestor})
//	cmd := c.Init()
//	// in the program's Update:
//	cmd = c.Update(msg)
//	// operator intents:
//	cmd, res := c.Submit("hello")
package console
