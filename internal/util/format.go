// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import "strconv"

// FormatSeconds renders a latency in seconds as "1.23s", or "850ms" below
// one second.
func FormatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "0ms"
	}
	if seconds < 1 {
		return strconv.FormatFloat(seconds*1000, 'f', 0, 64) + "ms"
	}
	return strconv.FormatFloat(seconds, 'f', 2, 64) + "s"
}

// FormatPercent renders a percentage with one decimal place.
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64) + "%"
}

// FormatMegabytes renders a size in MB, switching to GB from 1024 MB.
func FormatMegabytes(mb float64) string {
	if mb >= 1024 {
		return strconv.FormatFloat(mb/1024, 'f', 1, 64) + "GB"
	}
	return strconv.FormatFloat(mb, 'f', 0, 64) + "MB"
}
