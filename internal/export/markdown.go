// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/guardrails-console/internal/model"
	"github.com/jeranaias/guardrails-console/internal/session"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter writes a readable session report with YAML frontmatter.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// frontmatter is marshalled by yaml so values never need hand escaping.
type frontmatter struct {
	Framework string          `yaml:"framework,omitempty"`
	Provider  string          `yaml:"provider,omitempty"`
	Model     string          `yaml:"model,omitempty"`
	Status    string          `yaml:"status"`
	Messages  int             `yaml:"messages"`
	Blocked   int             `yaml:"blocked"`
	Rules     map[string]bool `yaml:"rules,omitempty"`
	Exported  string          `yaml:"exported"`
	Generator string          `yaml:"generator"`
}

// Export converts a session to Markdown.
func (e *MarkdownExporter) Export(s Session) ([]byte, error) {
	blocked := 0
	for _, m := range s.Messages {
		if m.IsBlocked() {
			blocked++
		}
	}

	fm, err := yaml.Marshal(frontmatter{
		Framework: s.Framework,
		Provider:  s.Provider,
		Model:     s.Model,
		Status:    s.Status,
		Messages:  len(s.Messages),
		Blocked:   blocked,
		Rules:     s.Rules,
		Exported:  s.ExportedAt.Format(time.RFC3339),
		Generator: "guardctl",
	})
	if err != nil {
		return nil, fmt.Errorf("frontmatter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(fm)
	sb.WriteString("---\n\n")

	sb.WriteString("# Guardrails Session\n\n")
	sb.WriteString("## Session Information\n\n")
	fmt.Fprintf(&sb, "- **Framework**: %s\n", orNone(escapeMarkdown(s.frameworkOrID())))
	fmt.Fprintf(&sb, "- **Provider**: %s\n", orNone(escapeMarkdown(s.providerOrID())))
	fmt.Fprintf(&sb, "- **Model**: %s\n", orNone(escapeMarkdown(s.Model)))
	fmt.Fprintf(&sb, "- **Status**: %s\n", s.Status)
	fmt.Fprintf(&sb, "- **Messages**: %d (%d blocked)\n\n", len(s.Messages), blocked)

	if len(s.Rules) > 0 {
		sb.WriteString("## Rules\n\n")
		keys := make([]string, 0, len(s.Rules))
		for k := range s.Rules {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			mark := " "
			if s.Rules[k] {
				mark = "x"
			}
			fmt.Fprintf(&sb, "- [%s] %s\n", mark, escapeMarkdown(k))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Conversation\n\n")
	if len(s.Messages) == 0 {
		sb.WriteString("*No messages.*\n\n")
	}
	for i, msg := range s.Messages {
		sb.WriteString(e.formatHeading(msg))
		text := msg.Text
		if msg.Sender == model.SenderAI {
			text = session.CleanResponse(text)
		}
		sb.WriteString(strings.TrimSpace(text))
		sb.WriteString("\n\n")
		if i < len(s.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	if len(s.Log) > 0 {
		sb.WriteString("## Activity Log\n\n```\n")
		for _, entry := range s.Log {
			fmt.Fprintf(&sb, "%s %s %s\n",
				entry.Timestamp.Format("15:04:05"),
				entry.Severity.Icon(),
				entry.Message)
		}
		sb.WriteString("```\n")
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func (e *MarkdownExporter) formatHeading(msg model.ChatMessage) string {
	label := "[" + msg.Sender.DisplayName() + "]"
	if msg.Sender == model.SenderAI && msg.Framework != "" {
		label += " via " + escapeMarkdown(msg.Framework)
	}
	switch {
	case msg.IsBlocked():
		v := session.PresentViolation(msg.ViolationKind)
		label += " **BLOCKED: " + v.Label + "**"
	case msg.IsError():
		label += " **ERROR**"
	}
	if e.options.IncludeTimestamps {
		return fmt.Sprintf("### %s <sub>%s</sub>\n\n", label, msg.Timestamp.Format("15:04:05"))
	}
	return fmt.Sprintf("### %s\n\n", label)
}

func (s Session) frameworkOrID() string {
	if s.frameworkLabel != "" {
		return s.frameworkLabel
	}
	return s.Framework
}

func (s Session) providerOrID() string {
	if s.providerLabel != "" {
		return s.providerLabel
	}
	return s.Provider
}

func orNone(s string) string {
	if s == "" {
		return "*none*"
	}
	return s
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", "&lt;",
	">", "&gt;",
)

// escapeMarkdown escapes inline Markdown syntax in names and keys.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
