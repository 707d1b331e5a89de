// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry exposes Prometheus metrics for a console session.
//
// Metrics uses its own registry so several consoles (or tests) can coexist
// in one process. A nil *Metrics is valid and records nothing.
//
// # Usage
//
//	m := telemetry.NewMetrics()
//	go http.ListenAndServe(addr, m.Handler())
//	m.RecordProbe(true, elapsed)
package telemetry
