// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the session records shown to the operator.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/guardrails-console/internal/util"
)

// =============================================================================
// SENDER TYPE
// =============================================================================

// Sender identifies who produced a transcript entry.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAI     Sender = "ai"
	SenderSystem Sender = "system"
)

// String returns the string representation of the sender.
func (s Sender) String() string {
	return string(s)
}

// DisplayName returns a human-readable name for the sender.
func (s Sender) DisplayName() string {
	switch s {
	case SenderUser:
		return "You"
	case SenderAI:
		return "AI"
	case SenderSystem:
		return "System"
	default:
		return string(s)
	}
}

// =============================================================================
// MESSAGE STATUS
// =============================================================================

// MessageStatus is the outcome attached to a transcript entry.
type MessageStatus string

const (
	StatusSuccess MessageStatus = "success"
	StatusBlocked MessageStatus = "blocked"
	StatusError   MessageStatus = "error"
)

// =============================================================================
// CHAT MESSAGE
// =============================================================================

// ChatMessage is a single transcript entry. It is a value: once appended it
// is never changed.
type ChatMessage struct {
	ID            string        `json:"id"`
	Sender        Sender        `json:"sender"`
	Text          string        `json:"text"`
	Status        MessageStatus `json:"status"`
	ViolationKind string        `json:"violation_kind,omitempty"`
	Framework     string        `json:"framework,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// NewUserMessage creates an outgoing operator message.
func NewUserMessage(text string) ChatMessage {
	return newMessage(SenderUser, text, StatusSuccess)
}

// NewAIMessage creates a reply carrying the backend-reported outcome.
func NewAIMessage(text string, status MessageStatus, violationKind, framework string) ChatMessage {
	msg := newMessage(SenderAI, text, status)
	msg.ViolationKind = violationKind
	msg.Framework = framework
	return msg
}

// NewSystemMessage creates a local notice in the transcript.
func NewSystemMessage(text string, status MessageStatus) ChatMessage {
	return newMessage(SenderSystem, text, status)
}

func newMessage(sender Sender, text string, status MessageStatus) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		Status:    status,
		Timestamp: time.Now(),
	}
}

// IsBlocked reports whether a moderation rule stopped the exchange.
func (m ChatMessage) IsBlocked() bool {
	return m.Status == StatusBlocked
}

// IsError reports whether the entry records a failure.
func (m ChatMessage) IsError() bool {
	return m.Status == StatusError
}

// Preview returns a single-line preview of the message text.
func (m ChatMessage) Preview(maxLen int) string {
	text := strings.Join(strings.Fields(m.Text), " ")
	return util.TruncateRunes(text, maxLen)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the append-only list of chat messages for a session.
type Transcript struct {
	messages []ChatMessage
}

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(msg ChatMessage) {
	t.messages = append(t.messages, msg)
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []ChatMessage {
	out := make([]ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Last returns the most recent message.
func (t *Transcript) Last() (ChatMessage, bool) {
	if len(t.messages) == 0 {
		return ChatMessage{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Since returns the messages appended after the first n.
func (t *Transcript) Since(n int) []ChatMessage {
	if n < 0 {
		n = 0
	}
	if n >= len(t.messages) {
		return nil
	}
	out := make([]ChatMessage, len(t.messages)-n)
	copy(out, t.messages[n:])
	return out
}
