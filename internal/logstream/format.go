// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logstream

import (
	"strings"
	"time"

	"github.com/jeranaias/guardrails-console/internal/gateway"
	"github.com/jeranaias/guardrails-console/internal/model"
	"github.com/jeranaias/guardrails-console/internal/util"
)

// Backend timestamps are ISO 8601, usually without a zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Severity maps an event to an operator log severity. An explicit severity
// field wins; otherwise blocked events and error statuses are errors.
func Severity(ev gateway.LogEvent) model.Severity {
	switch model.Severity(strings.ToLower(ev.Severity)) {
	case model.SeverityInfo, model.SeveritySuccess, model.SeverityWarning, model.SeverityError:
		return model.Severity(strings.ToLower(ev.Severity))
	}
	if ev.Blocked {
		return model.SeverityError
	}
	switch strings.ToLower(ev.Status) {
	case "error", "blocked", "failed":
		return model.SeverityError
	case "success", "complete", "completed", "done":
		return model.SeveritySuccess
	case "warning", "warn":
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

// Format renders an event as a single log line: "[step] details", followed
// by latency and resource figures when present.
func Format(ev gateway.LogEvent) string {
	var b strings.Builder
	if ev.Step != "" {
		b.WriteString("[")
		b.WriteString(ev.Step)
		b.WriteString("] ")
	}
	details := strings.TrimSpace(ev.Details)
	b.WriteString(details)

	// Multi-line details (stack traces, dumps) are left unannotated.
	if strings.Contains(details, "\n") {
		return b.String()
	}
	if ev.Latency > 0 {
		b.WriteString(" · ")
		b.WriteString(util.FormatSeconds(ev.Latency))
	}
	if m := ev.Metrics; m != nil {
		if m.CPUPercent > 0 {
			b.WriteString(" · CPU ")
			b.WriteString(util.FormatPercent(m.CPUPercent))
		}
		if m.GPUMemMB > 0 {
			b.WriteString(" · GPU ")
			b.WriteString(util.FormatMegabytes(m.GPUMemMB))
		}
	}
	return strings.TrimSpace(b.String())
}

// Timestamp parses the event timestamp, returning the zero time when absent
// or malformed.
func Timestamp(ev gateway.LogEvent) time.Time {
	if ev.Timestamp == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, ev.Timestamp, time.Local); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// Append records ev in log as a pipeline entry.
func Append(log *model.ActivityLog, ev gateway.LogEvent) model.LogEntry {
	return log.Append(Severity(ev), model.SourcePipeline, Format(ev), Timestamp(ev))
}
