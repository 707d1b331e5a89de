// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"regexp"
	"strings"
)

// Violation is the display form of a backend-reported violation kind.
// It is presentation only; the kind itself is stored unchanged.
type Violation struct {
	Kind  string
	Icon  string
	Label string
	// Class groups kinds that share a colour in the UI.
	Class string
}

var violations = map[string]Violation{
	"PII":             {Icon: "🔒", Label: "PII Detected", Class: "pii"},
	"Jailbreak":       {Icon: "🛡️", Label: "Jailbreak Blocked", Class: "jailbreak"},
	"Off-Topic":       {Icon: "🚫", Label: "Off-Topic", Class: "offtopic"},
	"Toxicity":        {Icon: "⚠️", Label: "Toxicity Detected", Class: "toxicity"},
	"Hallucination":   {Icon: "🔍", Label: "Hallucination", Class: "hallucination"},
	"Competitor":      {Icon: "🏢", Label: "Competitor Mention", Class: "competitor"},
	"Llama Guard":     {Icon: "🦙", Label: "Llama Guard", Class: "llama"},
	"NeMoUnavailable": {Icon: "⚙️", Label: "NeMo Unavailable", Class: "error"},
	"NeMoError":       {Icon: "⚙️", Label: "NeMo Error", Class: "error"},
	"Server Error":    {Icon: "💥", Label: "Server Error", Class: "error"},
}

// PresentViolation looks up the icon and label for kind. Unknown kinds get a
// generic block presentation labelled with the kind itself.
func PresentViolation(kind string) Violation {
	if v, ok := violations[kind]; ok {
		v.Kind = kind
		return v
	}
	label := kind
	if label == "" {
		label = "Blocked"
	}
	return Violation{Kind: kind, Icon: "⛔", Label: label, Class: "default"}
}

var (
	railTag = regexp.MustCompile(`\[RAIL:\w+\]\s*`)
	safeTag = regexp.MustCompile(`\[SAFE\]\s*`)
)

// CleanResponse strips pipeline routing tags from reply text before display.
func CleanResponse(text string) string {
	text = railTag.ReplaceAllString(text, "")
	text = safeTag.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
