// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// SEVERITY
// =============================================================================

// Severity grades an operator log entry.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Icon returns the glyph shown next to an entry of this severity.
func (s Severity) Icon() string {
	switch s {
	case SeveritySuccess:
		return "✓"
	case SeverityWarning:
		return "⚠"
	case SeverityError:
		return "✗"
	default:
		return "•"
	}
}

// LogSource tells whether an entry was produced locally or by the backend
// pipeline feed.
type LogSource string

const (
	SourceLocal    LogSource = "local"
	SourcePipeline LogSource = "pipeline"
)

// =============================================================================
// LOG ENTRY
// =============================================================================

// LogEntry is one line of the operator activity log.
type LogEntry struct {
	ID        uint64    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Source    LogSource `json:"source"`
}

// Sink receives local operator notices. Components report through it instead
// of holding the log itself.
type Sink interface {
	Log(sev Severity, message string)
}

// =============================================================================
// ACTIVITY LOG
// =============================================================================

// ActivityLog is the append-only operator log. Entry ids increase
// monotonically for the whole session, across Clear.
type ActivityLog struct {
	entries    []LogEntry
	lastID     uint64
	maxEntries int
	now        func() time.Time
}

// NewActivityLog creates a log. maxEntries <= 0 keeps every entry; otherwise
// the oldest entries are dropped once the cap is reached.
func NewActivityLog(maxEntries int) *ActivityLog {
	return &ActivityLog{
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Log appends a local entry. It implements Sink.
func (l *ActivityLog) Log(sev Severity, message string) {
	l.Append(sev, SourceLocal, message, time.Time{})
}

// Append adds an entry and returns it. A zero timestamp means now.
func (l *ActivityLog) Append(sev Severity, source LogSource, message string, ts time.Time) LogEntry {
	if ts.IsZero() {
		ts = l.now()
	}
	l.lastID++
	entry := LogEntry{
		ID:        l.lastID,
		Timestamp: ts,
		Message:   message,
		Severity:  sev,
		Source:    source,
	}
	l.entries = append(l.entries, entry)

	if l.maxEntries > 0 && len(l.entries) > l.maxEntries {
		drop := len(l.entries) - l.maxEntries
		l.entries = append(l.entries[:0:0], l.entries[drop:]...)
	}
	return entry
}

// Entries returns a copy of the current entries, oldest first.
func (l *ActivityLog) Entries() []LogEntry {
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// After returns the entries with an id greater than id.
func (l *ActivityLog) After(id uint64) []LogEntry {
	for i, e := range l.entries {
		if e.ID > id {
			out := make([]LogEntry, len(l.entries)-i)
			copy(out, l.entries[i:])
			return out
		}
	}
	return nil
}

// Len returns the number of retained entries.
func (l *ActivityLog) Len() int {
	return len(l.entries)
}

// LastID returns the id of the most recent entry ever appended.
func (l *ActivityLog) LastID() uint64 {
	return l.lastID
}

// SetMaxEntries changes the retention cap. Existing entries beyond the new
// cap are trimmed from the front.
func (l *ActivityLog) SetMaxEntries(n int) {
	l.maxEntries = n
	if n > 0 && len(l.entries) > n {
		l.entries = append(l.entries[:0:0], l.entries[len(l.entries)-n:]...)
	}
}

// Clear removes all entries. Ids keep increasing afterwards.
func (l *ActivityLog) Clear() {
	l.entries = nil
}

// Count returns how many retained entries have the given severity.
func (l *ActivityLog) Count(sev Severity) int {
	n := 0
	for _, e := range l.entries {
		if e.Severity == sev {
			n++
		}
	}
	return n
}
