// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/guardrails-console/internal/model"
	"github.com/jeranaias/guardrails-console/internal/readiness"
	"github.com/jeranaias/guardrails-console/internal/session"
)

// ErrNoProvider is returned by PullModel when no provider is selected.
var ErrNoProvider = errors.New("no provider selected")

// ErrNoModel is returned by PullModel without a model name or selection.
var ErrNoModel = errors.New("no model given")

// =============================================================================
// CHANGE INTENTS
// =============================================================================

// Submit sends text with the current selection. See session.Controller.Submit.
func (c *Console) Submit(text string) (tea.Cmd, session.SubmitResult) {
	set := c.resolver.Snapshot()
	target := session.Target{
		FrameworkID: set.SelectedFramework,
		ProviderID:  set.SelectedProvider,
		ModelName:   set.SelectedModel,
		Rules:       c.resolver.Rules().Map(),
	}
	return c.chat.Submit(text, c.machine.Status(), target)
}

// SelectFramework switches the moderation framework.
func (c *Console) SelectFramework(id string) (tea.Cmd, error) {
	defer c.recompute()
	cmd, err := c.resolver.SelectFramework(id)
	if err == nil && cmd != nil {
		c.activity.Log(model.SeverityInfo, "Framework set to "+c.resolver.Snapshot().FrameworkLabel())
	}
	return cmd, err
}

// SelectProvider switches the provider and reloads its models.
func (c *Console) SelectProvider(id string) (tea.Cmd, error) {
	defer c.recompute()
	cmd, err := c.resolver.SelectProvider(id)
	if err == nil && cmd != nil {
		c.activity.Log(model.SeverityInfo, "Provider set to "+c.resolver.Snapshot().ProviderLabel())
	}
	return cmd, err
}

// SelectModel picks a model from the current list.
func (c *Console) SelectModel(name string) error {
	defer c.recompute()
	return c.resolver.SelectModel(name)
}

// CycleFramework moves the framework selection by step.
func (c *Console) CycleFramework(step int) tea.Cmd {
	defer c.recompute()
	return c.resolver.CycleFramework(step)
}

// CycleProvider moves the provider selection by step.
func (c *Console) CycleProvider(step int) tea.Cmd {
	defer c.recompute()
	return c.resolver.CycleProvider(step)
}

// CycleModel moves the model selection by step.
func (c *Console) CycleModel(step int) {
	c.resolver.CycleModel(step)
}

// ToggleRule flips a rule of the selected framework. Outside the ready
// status it logs one warning and returns a *readiness.NotReadyError.
func (c *Console) ToggleRule(key string) (bool, error) {
	if err := c.machine.Allow(readiness.ActionToggleRule); err != nil {
		c.activity.Log(model.SeverityWarning, "System not ready: "+err.Error())
		return false, err
	}
	return c.resolver.ToggleRule(key)
}

// PullModel asks the backend to download name (or the selected model) for
// the selected provider.
func (c *Console) PullModel(name string) (tea.Cmd, error) {
	set := c.resolver.Snapshot()
	if set.SelectedProvider == "" {
		return nil, ErrNoProvider
	}
	if name == "" {
		name = set.SelectedModel
	}
	if name == "" {
		return nil, ErrNoModel
	}
	if !c.supervisor.Connected() {
		c.activity.Log(model.SeverityWarning, "Cannot pull "+name+": backend offline")
		return nil, fmt.Errorf("pull %s: backend offline", name)
	}

	c.activity.Log(model.SeverityInfo, fmt.Sprintf("Requesting pull of %s from %s", name, set.ProviderLabel()))
	backend := c.backend
	providerID := set.SelectedProvider
	return func() tea.Msg {
		ack, err := backend.RequestModelPull(context.Background(), providerID, name)
		return PullResultMsg{ProviderID: providerID, Model: name, Ack: ack, Err: err}
	}, nil
}

// Refresh probes the backend now and re-resolves resources on success.
func (c *Console) Refresh() tea.Cmd {
	cmd := c.supervisor.Refresh()
	if cmd != nil {
		c.activity.Log(model.SeverityInfo, "Refreshing backend resources...")
	}
	return cmd
}

// ClearLogs empties the operator log.
func (c *Console) ClearLogs() {
	c.activity.Clear()
}
