// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"strings"

	"github.com/jeranaias/guardrails-console/internal/export"
	"github.com/jeranaias/guardrails-console/internal/gateway"
	"github.com/jeranaias/guardrails-console/internal/resources"
	"github.com/jeranaias/guardrails-console/internal/util"
)

// =============================================================================
// SESSION COMMANDS
// =============================================================================

func handleFramework(ctx *Context, args []string) (Result, error) {
	set := ctx.Target.Resources()
	id := matchOption(set.Frameworks, args[0])
	cmd, err := ctx.Target.SelectFramework(id)
	if err != nil {
		return Result{}, err
	}
	return Result{Cmd: cmd}, nil
}

func handleProvider(ctx *Context, args []string) (Result, error) {
	set := ctx.Target.Resources()
	id := matchOption(set.Providers, args[0])
	cmd, err := ctx.Target.SelectProvider(id)
	if err != nil {
		return Result{}, err
	}
	return Result{Cmd: cmd}, nil
}

func handleModel(ctx *Context, args []string) (Result, error) {
	set := ctx.Target.Resources()
	if len(args) == 0 {
		return Result{Output: listModels(set)}, nil
	}
	name := matchString(set.Models, args[0])
	if err := ctx.Target.SelectModel(name); err != nil {
		return Result{}, err
	}
	return Result{Output: "Model set to " + name}, nil
}

func listModels(set resources.ResourceSet) string {
	if len(set.Models) == 0 {
		return "No models available for " + orDash(set.ProviderLabel())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Models for %s:", set.ProviderLabel())
	for _, m := range set.Models {
		marker := "  "
		if m == set.SelectedModel {
			marker = "* "
		}
		b.WriteString("\n" + marker + m)
	}
	return b.String()
}

func handleToggle(ctx *Context, args []string) (Result, error) {
	key := matchString(ctx.Target.Rules().Keys(), args[0])
	enabled, err := ctx.Target.ToggleRule(key)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: fmt.Sprintf("%s %s", key, onOff(enabled))}, nil
}

func handleRules(ctx *Context, _ []string) (Result, error) {
	rules := ctx.Target.Rules()
	if rules.Len() == 0 {
		return Result{Output: "No rules for " + orDash(ctx.Target.Resources().FrameworkLabel())}, nil
	}
	width := 0
	for _, sw := range rules.Switches() {
		width = max(width, util.StringWidth(sw.Key))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Rules (%d/%d enabled):", rules.EnabledCount(), rules.Len())
	for _, sw := range rules.Switches() {
		fmt.Fprintf(&b, "\n  [%s] %s  %s", checkbox(rules.Enabled(sw.Key)), util.PadRight(sw.Key, width), ruleLabel(sw))
	}
	return Result{Output: b.String()}, nil
}

func ruleLabel(sw gateway.SwitchInfo) string {
	if sw.Description != "" {
		return sw.Label + " - " + sw.Description
	}
	return sw.Label
}

// =============================================================================
// BACKEND COMMANDS
// =============================================================================

func handlePull(ctx *Context, args []string) (Result, error) {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	cmd, err := ctx.Target.PullModel(name)
	if err != nil {
		return Result{}, err
	}
	return Result{Cmd: cmd}, nil
}

func handleRefresh(ctx *Context, _ []string) (Result, error) {
	cmd := ctx.Target.Refresh()
	if cmd == nil {
		return Result{Output: "A refresh is already in progress"}, nil
	}
	return Result{Cmd: cmd}, nil
}

func handleStatus(ctx *Context, _ []string) (Result, error) {
	t := ctx.Target
	set := t.Resources()
	rules := t.Rules()

	backend := "connected"
	if !t.Connected() {
		backend = "offline"
		if err := t.LastError(); err != nil {
			backend += " (" + err.Error() + ")"
		}
	}
	feed := "connected"
	if !t.FeedConnected() {
		feed = "disconnected"
	}

	rows := [][2]string{
		{"Status", t.StatusLine()},
		{"Backend", backend},
		{"Log stream", feed},
		{"Framework", describe(set.FrameworkLabel(), set.SelectedFramework)},
		{"Provider", describe(set.ProviderLabel(), set.SelectedProvider)},
		{"Model", orDash(set.SelectedModel)},
		{"Rules", fmt.Sprintf("%d/%d enabled", rules.EnabledCount(), rules.Len())},
	}
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = util.PadRight(row[0]+":", 12) + row[1]
	}
	return Result{Output: strings.Join(lines, "\n")}, nil
}

// =============================================================================
// GENERAL COMMANDS
// =============================================================================

func handleClear(ctx *Context, _ []string) (Result, error) {
	ctx.Target.ClearLogs()
	return Result{}, nil
}

func handleExport(ctx *Context, args []string) (Result, error) {
	format := ""
	if len(args) > 0 {
		format = args[0]
	}
	opts := export.DefaultOptions()
	opts.OutputDir = ctx.Registry.ExportDir()
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return Result{}, err
	}
	path, err := export.ToFile(export.Capture(ctx.Target), exporter, opts)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: "Session exported to " + path}, nil
}

func handleQuit(*Context, []string) (Result, error) {
	return Result{Quit: true}, nil
}

func handleHelp(ctx *Context, _ []string) (Result, error) {
	return Result{Output: HelpText(ctx.Registry)}, nil
}

// HelpText lists the visible commands by category.
func HelpText(r *Registry) string {
	groups := r.ByCategory()
	var b strings.Builder
	b.WriteString("Type a message to chat, or a command:")
	for _, category := range []string{CategorySession, CategoryBackend, CategoryGeneral} {
		cmds := groups[category]
		if len(cmds) == 0 {
			continue
		}
		b.WriteString("\n\n" + category + ":")
		for _, cmd := range cmds {
			usage := cmd.Usage
			if usage == "" {
				usage = cmd.Name
			}
			if len(cmd.Aliases) > 0 {
				usage += " (" + strings.Join(cmd.Aliases, ", ") + ")"
			}
			fmt.Fprintf(&b, "\n  %s  %s", util.PadRight(usage, 34), cmd.Description)
		}
	}
	return b.String()
}

// =============================================================================
// HELPERS
// =============================================================================

// matchOption resolves s to an option id. An exact id wins, then a
// case-insensitive id or label. Unmatched input is returned unchanged so the
// selector reports it as unknown.
func matchOption(options []gateway.Option, s string) string {
	for _, o := range options {
		if o.ID == s {
			return o.ID
		}
	}
	for _, o := range options {
		if strings.EqualFold(o.ID, s) || strings.EqualFold(o.Label(), s) {
			return o.ID
		}
	}
	return s
}

func matchString(values []string, s string) string {
	for _, v := range values {
		if v == s {
			return v
		}
	}
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return v
		}
	}
	return s
}

func describe(label, id string) string {
	if id == "" {
		return "-"
	}
	if label == id {
		return id
	}
	return label + " (" + id + ")"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func checkbox(enabled bool) string {
	if enabled {
		return "x"
	}
	return " "
}
