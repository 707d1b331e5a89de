// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable view pieces for the console TUI.
//
// StatusBar renders the readiness line with a responsive layout: narrow
// terminals get the indicator only, wide ones add key hints.
package components
