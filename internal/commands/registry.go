// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"sort"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/guardrails-console/internal/export"
	"github.com/jeranaias/guardrails-console/internal/model"
	"github.com/jeranaias/guardrails-console/internal/readiness"
	"github.com/jeranaias/guardrails-console/internal/resources"
)

// =============================================================================
// TARGET
// =============================================================================

// Target is the session state commands read and change. *console.Console
// implements it.
type Target interface {
	Status() readiness.Status
	StatusLine() string
	Connected() bool
	FeedConnected() bool
	LastError() error
	Resources() resources.ResourceSet
	Rules() resources.RuleConfig

	SelectFramework(id string) (tea.Cmd, error)
	SelectProvider(id string) (tea.Cmd, error)
	SelectModel(name string) error
	ToggleRule(key string) (bool, error)
	PullModel(name string) (tea.Cmd, error)
	Refresh() tea.Cmd
	ClearLogs()

	Transcript() *model.Transcript
	Activity() *model.ActivityLog
}

// Context is passed to every handler.
type Context struct {
	Target   Target
	Registry *Registry
}

// Result is what a handler produced. Cmd is run by the caller's event loop.
type Result struct {
	Cmd    tea.Cmd
	Output string
	Quit   bool
}

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	Description string

	// Usage shows argument syntax (e.g., "/model <name>")
	Usage string

	Args []ArgDef

	Handler func(ctx *Context, args []string) (Result, error)

	// Hidden commands don't appear in help
	Hidden bool

	// Category for grouping in help display
	Category string
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	Name        string
	Required    bool
	Type        ArgType
	Description string

	// Values for enum types
	Values []string
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString    ArgType = iota // Free-form string
	ArgTypeFramework                // Framework id from the backend
	ArgTypeProvider                 // Provider id from the backend
	ArgTypeModel                    // Model offered by the selected provider
	ArgTypeRule                     // Rule key of the selected framework
	ArgTypeEnum                     // One of predefined values
)

// Help categories.
const (
	CategorySession = "Session"
	CategoryBackend = "Backend"
	CategoryGeneral = "General"
)

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands  map[string]*Command
	aliases   map[string]*Command
	exportDir string
}

// NewRegistry creates a new command registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands:  make(map[string]*Command),
		aliases:   make(map[string]*Command),
		exportDir: ".",
	}
	r.registerBuiltins()
	return r
}

// SetExportDir sets where /export writes files.
func (r *Registry) SetExportDir(dir string) {
	if dir != "" {
		r.exportDir = dir
	}
}

// ExportDir returns where /export writes files.
func (r *Registry) ExportDir() string {
	return r.exportDir
}

// Register adds a command to the registry, replacing one of the same name.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	return r.aliases[name]
}

// All returns all registered commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// ByCategory returns visible commands grouped by category.
func (r *Registry) ByCategory() map[string][]*Command {
	result := make(map[string][]*Command)
	for _, cmd := range r.All() {
		if cmd.Hidden {
			continue
		}
		category := cmd.Category
		if category == "" {
			category = CategoryGeneral
		}
		result[category] = append(result[category], cmd)
	}
	return result
}

// Execute parses line and runs the matching handler against target.
func (r *Registry) Execute(target Target, line string) (Result, error) {
	parsed := NewParser(r).Parse(line)
	if !parsed.IsCommand {
		return Result{}, ErrUnknownCommand
	}
	if parsed.Error != nil {
		return Result{}, parsed.Error
	}
	if err := ValidateArgs(parsed.Command, parsed.Args); err != nil {
		return Result{}, err
	}
	return parsed.Command.Handler(&Context{Target: target, Registry: r}, parsed.Args)
}

func (r *Registry) registerBuiltins() {
	r.Register(&Command{
		Name:        "/framework",
		Aliases:     []string{"/fw"},
		Description: "Switch the moderation framework",
		Usage:       "/framework <id|name>",
		Args:        []ArgDef{{Name: "framework", Required: true, Type: ArgTypeFramework, Description: "framework id or name"}},
		Handler:     handleFramework,
		Category:    CategorySession,
	})
	r.Register(&Command{
		Name:        "/provider",
		Aliases:     []string{"/p"},
		Description: "Switch the LLM provider",
		Usage:       "/provider <id|name>",
		Args:        []ArgDef{{Name: "provider", Required: true, Type: ArgTypeProvider, Description: "provider id or name"}},
		Handler:     handleProvider,
		Category:    CategorySession,
	})
	r.Register(&Command{
		Name:        "/model",
		Aliases:     []string{"/m"},
		Description: "Select a model, or list models without an argument",
		Usage:       "/model [name]",
		Args:        []ArgDef{{Name: "model", Type: ArgTypeModel, Description: "model name"}},
		Handler:     handleModel,
		Category:    CategorySession,
	})
	r.Register(&Command{
		Name:        "/toggle",
		Aliases:     []string{"/t"},
		Description: "Toggle a rule of the selected framework",
		Usage:       "/toggle <rule>",
		Args:        []ArgDef{{Name: "rule", Required: true, Type: ArgTypeRule, Description: "rule key"}},
		Handler:     handleToggle,
		Category:    CategorySession,
	})
	r.Register(&Command{
		Name:        "/rules",
		Description: "List the rules of the selected framework",
		Handler:     handleRules,
		Category:    CategorySession,
	})
	r.Register(&Command{
		Name:        "/pull",
		Description: "Ask the backend to download a model",
		Usage:       "/pull [model]",
		Args:        []ArgDef{{Name: "model", Type: ArgTypeModel, Description: "model name, defaults to the selected model"}},
		Handler:     handlePull,
		Category:    CategoryBackend,
	})
	r.Register(&Command{
		Name:        "/refresh",
		Aliases:     []string{"/r"},
		Description: "Probe the backend and reload resources",
		Handler:     handleRefresh,
		Category:    CategoryBackend,
	})
	r.Register(&Command{
		Name:        "/status",
		Aliases:     []string{"/s"},
		Description: "Show connection and selection details",
		Handler:     handleStatus,
		Category:    CategoryBackend,
	})
	r.Register(&Command{
		Name:        "/export",
		Description: "Save the session to a Markdown or JSON file",
		Usage:       "/export [markdown|json]",
		Args:        []ArgDef{{Name: "format", Type: ArgTypeEnum, Values: export.Formats(), Description: "file format"}},
		Handler:     handleExport,
		Category:    CategoryGeneral,
	})
	r.Register(&Command{
		Name:        "/clear",
		Aliases:     []string{"/cls"},
		Description: "Clear the system log",
		Handler:     handleClear,
		Category:    CategoryGeneral,
	})
	r.Register(&Command{
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Description: "Show available commands",
		Handler:     handleHelp,
		Category:    CategoryGeneral,
	})
	r.Register(&Command{
		Name:        "/quit",
		Aliases:     []string{"/q", "/exit"},
		Description: "Exit",
		Handler:     handleQuit,
		Category:    CategoryGeneral,
	})
}
