// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a snapshot of the current session (selections, rule
// values, transcript and activity log) to Markdown or JSON.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/guardrails-console/internal/model"
	"github.com/jeranaias/guardrails-console/internal/readiness"
	"github.com/jeranaias/guardrails-console/internal/resources"
	"github.com/jeranaias/guardrails-console/internal/util"
)

// ErrEmptySession is returned when there is nothing to export.
var ErrEmptySession = errors.New("nothing to export: transcript and log are empty")

// =============================================================================
// SESSION SNAPSHOT
// =============================================================================

// Source is the part of the session an export reads.
type Source interface {
	Status() readiness.Status
	Resources() resources.ResourceSet
	Rules() resources.RuleConfig
	Transcript() *model.Transcript
	Activity() *model.ActivityLog
}

// Session is a point-in-time copy of everything an export contains.
type Session struct {
	Status     string              `json:"status"`
	Framework  string              `json:"framework,omitempty"`
	Provider   string              `json:"provider,omitempty"`
	Model      string              `json:"model,omitempty"`
	Rules      map[string]bool     `json:"rules"`
	Messages   []model.ChatMessage `json:"messages"`
	Log        []model.LogEntry    `json:"log,omitempty"`
	ExportedAt time.Time           `json:"exported_at"`

	frameworkLabel string
	providerLabel  string
}

// Capture copies the exportable state out of src.
func Capture(src Source) Session {
	set := src.Resources()
	s := Session{
		Status:         src.Status().Label(),
		Framework:      set.SelectedFramework,
		Provider:       set.SelectedProvider,
		Model:          set.SelectedModel,
		Rules:          src.Rules().Map(),
		Messages:       src.Transcript().Messages(),
		Log:            src.Activity().Entries(),
		ExportedAt:     time.Now(),
		frameworkLabel: set.FrameworkLabel(),
		providerLabel:  set.ProviderLabel(),
	}
	if s.Rules == nil {
		s.Rules = map[string]bool{}
	}
	return s
}

// =============================================================================
// EXPORTERS
// =============================================================================

// Exporter renders a session in one format.
type Exporter interface {
	Export(s Session) ([]byte, error)

	// FileExtension returns the extension including the dot.
	FileExtension() string
}

// Options configures export behavior.
type Options struct {
	// OutputDir is where files are written. Default: current directory.
	OutputDir string

	// IncludeLog adds the activity log to the export.
	IncludeLog bool

	// IncludeTimestamps adds per-message times to Markdown.
	IncludeTimestamps bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeLog:        true,
		IncludeTimestamps: true,
	}
}

// Formats lists the accepted format names.
func Formats() []string {
	return []string{"markdown", "json"}
}

// ForFormat returns the exporter for a format name ("markdown", "md" or
// "json"). An empty name selects Markdown.
func ForFormat(name string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unknown export format %q (expected %s)", name, strings.Join(Formats(), " or "))
	}
}

// ToFile renders s with exporter and writes it under opts.OutputDir. It
// returns the path written.
func ToFile(s Session, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if len(s.Messages) == 0 && len(s.Log) == 0 {
		return "", ErrEmptySession
	}
	if !opts.IncludeLog {
		s.Log = nil
	}

	content, err := exporter.Export(s)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	filename := fmt.Sprintf("session_%s_%s%s",
		sanitizeFilename(s.Framework),
		s.ExportedAt.Format("20060102_150405"),
		exporter.FileExtension(),
	)
	path := filepath.Join(dir, filename)
	if err := util.AtomicWriteFileWithDir(path, content, 0o600, 0o755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// sanitizeFilename keeps letters, digits, dash and underscore.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('_')
		}
		if b.Len() >= 40 {
			break
		}
	}
	if b.Len() == 0 {
		return "none"
	}
	return b.String()
}
