// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"sort"
	"strings"

	"github.com/jeranaias/guardrails-console/internal/gateway"
)

// Completion is one candidate.
type Completion struct {
	// Value replaces the token being completed
	Value string

	// Display is shown in the popup
	Display string

	Description string

	// Score ranks candidates, higher first
	Score int
}

// =============================================================================
// COMPLETER
// =============================================================================

// Completer handles tab completion for commands and arguments.
type Completer struct {
	registry *Registry

	// Callbacks for dynamic completion, set by the application
	FrameworksFn func() []gateway.Option
	ProvidersFn  func() []gateway.Option
	ModelsFn     func() []string
	RulesFn      func() []string
}

// NewCompleter creates a new completer with the given registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{registry: registry}
}

// NewTargetCompleter creates a completer that reads its candidates from
// target on every call.
func NewTargetCompleter(registry *Registry, target Target) *Completer {
	c := NewCompleter(registry)
	c.FrameworksFn = func() []gateway.Option { return target.Resources().Frameworks }
	c.ProvidersFn = func() []gateway.Option { return target.Resources().Providers }
	c.ModelsFn = func() []string { return target.Resources().Models }
	c.RulesFn = func() []string { return target.Rules().Keys() }
	return c
}

// Complete returns completions for the given input at the cursor position.
func (c *Completer) Complete(input string, cursorPos int) []Completion {
	if cursorPos >= 0 && cursorPos < len(input) {
		input = input[:cursorPos]
	}
	input = strings.TrimLeft(input, " \t")
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	parts := splitCommandLine(input)
	trailingSpace := strings.HasSuffix(input, " ")
	if len(parts) == 1 && !trailingSpace {
		return c.completeCommands(parts[0])
	}

	cmd := c.registry.Get(strings.ToLower(parts[0]))
	if cmd == nil {
		return nil
	}

	// -1 for the command, -1 for 0-based index
	argIndex := len(parts) - 2
	partial := ""
	if trailingSpace {
		argIndex++
	} else {
		partial = parts[len(parts)-1]
	}
	return c.completeArg(cmd, argIndex, partial)
}

// Lines returns whole-line candidates for line-editor completion: the input
// with its last token replaced by each completion.
func (c *Completer) Lines(line string) []string {
	completions := c.Complete(line, len(line))
	if len(completions) == 0 {
		return nil
	}
	head := lineHead(line)
	out := make([]string, len(completions))
	for i, comp := range completions {
		out[i] = head + quoteIfNeeded(comp.Value)
	}
	return out
}

// lineHead returns line up to and including its last blank.
func lineHead(line string) string {
	if i := strings.LastIndexAny(line, " \t"); i >= 0 {
		return line[:i+1]
	}
	return ""
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}

// =============================================================================
// COMMAND COMPLETION
// =============================================================================

func (c *Completer) completeCommands(partial string) []Completion {
	var completions []Completion
	partial = strings.ToLower(partial)

	for _, cmd := range c.registry.All() {
		if cmd.Hidden {
			continue
		}
		if strings.HasPrefix(cmd.Name, partial) {
			completions = append(completions, Completion{
				Value:       cmd.Name,
				Display:     cmd.Name,
				Description: cmd.Description,
				Score:       calculateScore(cmd.Name, partial),
			})
		}
		for _, alias := range cmd.Aliases {
			if strings.HasPrefix(alias, partial) {
				completions = append(completions, Completion{
					Value:       alias,
					Display:     alias + " -> " + cmd.Name,
					Description: cmd.Description,
					Score:       calculateScore(alias, partial) - 10,
				})
			}
		}
	}

	sortCompletions(completions)
	return completions
}

// =============================================================================
// ARGUMENT COMPLETION
// =============================================================================

func (c *Completer) completeArg(cmd *Command, argIndex int, partial string) []Completion {
	if argIndex < 0 || argIndex >= len(cmd.Args) {
		return nil
	}

	arg := cmd.Args[argIndex]
	switch arg.Type {
	case ArgTypeFramework:
		return completeOptions(call(c.FrameworksFn), partial)
	case ArgTypeProvider:
		return completeOptions(call(c.ProvidersFn), partial)
	case ArgTypeModel:
		return completeFromList(call(c.ModelsFn), partial)
	case ArgTypeRule:
		return completeFromList(call(c.RulesFn), partial)
	case ArgTypeEnum:
		return completeFromList(arg.Values, partial)
	default:
		return nil
	}
}

func call[T any](fn func() []T) []T {
	if fn == nil {
		return nil
	}
	return fn()
}

func completeOptions(options []gateway.Option, partial string) []Completion {
	var completions []Completion
	lower := strings.ToLower(partial)
	for _, o := range options {
		if !strings.HasPrefix(strings.ToLower(o.ID), lower) && !strings.HasPrefix(strings.ToLower(o.Label()), lower) {
			continue
		}
		completions = append(completions, Completion{
			Value:       o.ID,
			Display:     o.ID,
			Description: o.Label(),
			Score:       calculateScore(o.ID, partial),
		})
	}
	sortCompletions(completions)
	return completions
}

func completeFromList(values []string, partial string) []Completion {
	var completions []Completion
	lower := strings.ToLower(partial)
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(v), lower) {
			completions = append(completions, Completion{
				Value:   v,
				Display: v,
				Score:   calculateScore(v, partial),
			})
		}
	}
	sortCompletions(completions)
	return completions
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// calculateScore ranks a prefix match. Exact matches come first, then
// shorter values. An empty partial ranks everything equally.
func calculateScore(value, partial string) int {
	value = strings.ToLower(value)
	partial = strings.ToLower(partial)

	if value == partial {
		return 200
	}
	if partial == "" {
		return 100
	}
	score := 150 + 20 - len(value)
	return score - len(value)/2
}

// sortCompletions sorts completions by score (descending), then alphabetically.
func sortCompletions(completions []Completion) {
	sort.SliceStable(completions, func(i, j int) bool {
		if completions[i].Score != completions[j].Score {
			return completions[i].Score > completions[j].Score
		}
		return completions[i].Value < completions[j].Value
	})
}

// =============================================================================
// COMPLETION NAVIGATION
// =============================================================================

// CompletionState holds the state for cycling through completions.
type CompletionState struct {
	// Original input before completion
	OriginalInput string

	Completions []Completion

	// Selected index (-1 for none)
	Selected int

	Visible bool
}

// NewCompletionState creates a new completion state.
func NewCompletionState() *CompletionState {
	return &CompletionState{Selected: -1}
}

// Update replaces the candidates and selects the first.
func (cs *CompletionState) Update(input string, completions []Completion) {
	cs.OriginalInput = input
	cs.Completions = completions
	cs.Selected = 0
	cs.Visible = len(completions) > 0
}

// Next moves to the next completion.
func (cs *CompletionState) Next() {
	if len(cs.Completions) == 0 {
		return
	}
	cs.Selected = (cs.Selected + 1) % len(cs.Completions)
}

// Prev moves to the previous completion.
func (cs *CompletionState) Prev() {
	if len(cs.Completions) == 0 {
		return
	}
	cs.Selected--
	if cs.Selected < 0 {
		cs.Selected = len(cs.Completions) - 1
	}
}

// Selection returns the selected completion, or nil.
func (cs *CompletionState) Selection() *Completion {
	if cs.Selected < 0 || cs.Selected >= len(cs.Completions) {
		return nil
	}
	return &cs.Completions[cs.Selected]
}

// Apply returns the original input with its last token replaced by the
// selected completion, or the original input when nothing is selected.
func (cs *CompletionState) Apply() string {
	sel := cs.Selection()
	if sel == nil {
		return cs.OriginalInput
	}
	return lineHead(cs.OriginalInput) + quoteIfNeeded(sel.Value)
}

// Clear clears the completion state.
func (cs *CompletionState) Clear() {
	cs.OriginalInput = ""
	cs.Completions = nil
	cs.Selected = -1
	cs.Visible = false
}
