// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestSender_DisplayName(t *testing.T) {
	assert.Equal(t, "You", SenderUser.DisplayName())
	assert.Equal(t, "AI", SenderAI.DisplayName())
	assert.Equal(t, "System", SenderSystem.DisplayName())
	assert.Equal(t, "bot", Sender("bot").DisplayName())
}

func TestNewAIMessage(t *testing.T) {
	msg := NewAIMessage("denied", StatusBlocked, "Jailbreak", "nemo")

	assert.Equal(t, SenderAI, msg.Sender)
	assert.True(t, msg.IsBlocked())
	assert.False(t, msg.IsError())
	assert.Equal(t, "Jailbreak", msg.ViolationKind)
	assert.Equal(t, "nemo", msg.Framework)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestChatMessage_Preview(t *testing.T) {
	msg := NewUserMessage("line one\n\tline   two and more")
	assert.Equal(t, "line one line...", msg.Preview(16))
}

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestTranscript_AppendOnly(t *testing.T) {
	var tr Transcript
	_, ok := tr.Last()
	assert.False(t, ok)

	tr.Append(NewUserMessage("hi"))
	tr.Append(NewSystemMessage("backend unreachable", StatusError))

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	msgs[0].Text = "mutated"
	assert.Equal(t, "hi", tr.Messages()[0].Text, "Messages returns a copy")

	last, ok := tr.Last()
	require.True(t, ok)
	assert.True(t, last.IsError())

	assert.Len(t, tr.Since(1), 1)
	assert.Nil(t, tr.Since(2))
}

// =============================================================================
// ACTIVITY LOG TESTS
// =============================================================================

func TestActivityLog_MonotonicIDsAcrossClear(t *testing.T) {
	log := NewActivityLog(0)
	log.Log(SeverityInfo, "one")
	log.Log(SeverityWarning, "two")
	assert.Equal(t, uint64(2), log.LastID())

	log.Clear()
	assert.Equal(t, 0, log.Len())

	e := log.Append(SeverityError, SourcePipeline, "three", time.Time{})
	assert.Equal(t, uint64(3), e.ID)
	assert.Equal(t, SourcePipeline, e.Source)
	assert.False(t, e.Timestamp.IsZero())
}

func TestActivityLog_Cap(t *testing.T) {
	log := NewActivityLog(2)
	log.Log(SeverityInfo, "a")
	log.Log(SeverityInfo, "b")
	log.Log(SeverityError, "c")

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Message)
	assert.Equal(t, "c", entries[1].Message)
	assert.Equal(t, 1, log.Count(SeverityError))

	log.SetMaxEntries(1)
	assert.Equal(t, "c", log.Entries()[0].Message)
}

func TestActivityLog_After(t *testing.T) {
	log := NewActivityLog(0)
	log.Log(SeverityInfo, "a")
	log.Log(SeverityInfo, "b")
	log.Log(SeverityInfo, "c")

	after := log.After(1)
	require.Len(t, after, 2)
	assert.Equal(t, "b", after[0].Message)
	assert.Nil(t, log.After(3))
}

func TestSeverity_Icon(t *testing.T) {
	assert.Equal(t, "✓", SeveritySuccess.Icon())
	assert.Equal(t, "⚠", SeverityWarning.Icon())
	assert.Equal(t, "✗", SeverityError.Icon())
	assert.Equal(t, "•", SeverityInfo.Icon())
}
