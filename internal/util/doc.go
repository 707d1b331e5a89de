// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the console packages.
//
// String helpers are display-width aware (CJK and emoji count as two
// columns) so panel layouts stay aligned. AtomicWriteFile is used when
// writing configuration files.
//
//	label := util.TruncateWidth(modelName, 18)
//	err := util.AtomicWriteFile(path, data, 0o600)
package util
