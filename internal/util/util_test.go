// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_CreatesAndOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	require.NoError(t, AtomicWriteFile(path, []byte("first"), 0o600))
	require.NoError(t, AtomicWriteFile(path, []byte("second"), 0o600))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"สวัสดีครับ", 5, "สว..."},
		{"abc", 2, "ab"},
		{"abc", 0, ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, TruncateRunes(tc.in, tc.max), "TruncateRunes(%q, %d)", tc.in, tc.max)
	}
}

func TestTruncateWidth(t *testing.T) {
	assert.Equal(t, "short", TruncateWidth("short", 10))
	assert.Equal(t, "llama...", TruncateWidth("llama3.1:70b", 8))
	assert.Equal(t, "日本...", TruncateWidth("日本語テキスト", 7))
	assert.LessOrEqual(t, StringWidth(TruncateWidth("日本語テキスト", 7)), 7)
	assert.Equal(t, "", TruncateWidth("x", 0))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab   ", PadRight("ab", 5))
	assert.Equal(t, 6, StringWidth(PadRight("日本", 6)))
}

func TestFirstLineAndIsBlank(t *testing.T) {
	assert.Equal(t, "second", FirstLine("\n  \n second \nthird"))
	assert.Equal(t, "", FirstLine(" \n\t"))
	assert.True(t, IsBlank(" \t\n"))
	assert.False(t, IsBlank(" x "))
}

// =============================================================================
// FORMAT TESTS
// =============================================================================

func TestFormatters(t *testing.T) {
	assert.Equal(t, "1.23s", FormatSeconds(1.234))
	assert.Equal(t, "850ms", FormatSeconds(0.85))
	assert.Equal(t, "0ms", FormatSeconds(0))
	assert.Equal(t, "12.5%", FormatPercent(12.46))
	assert.Equal(t, "512MB", FormatMegabytes(512))
	assert.Equal(t, "2.0GB", FormatMegabytes(2048))
}
