// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package resources resolves the cascading selections of a session:
// framework to rule switches and provider to model list.
//
// The Resolver is the only writer of the ResourceSet and the RuleConfig.
// Both are values that are replaced, never edited in place, whenever an
// upstream selection changes. Fetches run as bubbletea commands; each result
// carries the sequence number and the key it was requested for, and is
// dropped if a newer request was issued or the selection moved on.
//
// Selection policy:
//
//   - frameworks, providers: keep the current choice if still offered, else
//     the configured preference, else the first entry
//   - models: keep the current model if the new list has it, else the first
//     entry, else nothing (with a warning)
//   - rules: merged per switch key; shared keys keep their value, new keys
//     take the framework default, stale keys are dropped
package resources
