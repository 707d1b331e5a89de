// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	lru "github.com/hashicorp/golang-lru/v2"
)

// renderCacheSize bounds the number of rendered replies kept.
const renderCacheSize = 256

// markdownRenderer renders reply text with glamour. Output is cached per
// message, width and style since transcript messages never change.
type markdownRenderer struct {
	style string
	width int
	term  *glamour.TermRenderer
	cache *lru.Cache[string, string]
}

func newMarkdownRenderer(style string) *markdownRenderer {
	cache, err := lru.New[string, string](renderCacheSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &markdownRenderer{style: style, cache: cache}
}

// SetStyle switches the glamour style and drops every cached render.
func (r *markdownRenderer) SetStyle(style string) {
	if style == r.style {
		return
	}
	r.style = style
	r.term = nil
	r.cache.Purge()
}

// Render returns text rendered for width. Rendering errors fall back to the
// plain text.
func (r *markdownRenderer) Render(id, text string, width int) string {
	if width < 10 {
		width = 10
	}
	key := fmt.Sprintf("%s:%d:%s", id, width, r.style)
	if out, ok := r.cache.Get(key); ok {
		return out
	}

	if r.term == nil || r.width != width {
		term, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return text
		}
		r.term = term
		r.width = width
	}

	out, err := r.term.Render(text)
	if err != nil {
		return text
	}
	out = strings.Trim(out, "\n")
	r.cache.Add(key, out)
	return out
}

// Len returns the number of cached renders.
func (r *markdownRenderer) Len() int {
	return r.cache.Len()
}
