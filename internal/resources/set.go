// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package resources

import (
	"slices"

	"github.com/jeranaias/guardrails-console/internal/gateway"
)

// ResourceSet is a snapshot of the available options and current selections.
// Each Selected field is empty or a member of its list.
type ResourceSet struct {
	Frameworks []gateway.Option
	Providers  []gateway.Option
	Models     []string

	SelectedFramework string
	SelectedProvider  string
	SelectedModel     string
}

// Clone returns a deep copy of the set.
func (s ResourceSet) Clone() ResourceSet {
	s.Frameworks = slices.Clone(s.Frameworks)
	s.Providers = slices.Clone(s.Providers)
	s.Models = slices.Clone(s.Models)
	return s
}

// HasFramework reports whether id is an offered framework.
func (s ResourceSet) HasFramework(id string) bool {
	return indexOption(s.Frameworks, id) >= 0
}

// HasProvider reports whether id is an offered provider.
func (s ResourceSet) HasProvider(id string) bool {
	return indexOption(s.Providers, id) >= 0
}

// HasModel reports whether name is in the current model list.
func (s ResourceSet) HasModel(name string) bool {
	return slices.Contains(s.Models, name)
}

// FrameworkLabel returns the display name of the selected framework.
func (s ResourceSet) FrameworkLabel() string {
	if i := indexOption(s.Frameworks, s.SelectedFramework); i >= 0 {
		return s.Frameworks[i].Label()
	}
	return s.SelectedFramework
}

// ProviderLabel returns the display name of the selected provider.
func (s ResourceSet) ProviderLabel() string {
	if i := indexOption(s.Providers, s.SelectedProvider); i >= 0 {
		return s.Providers[i].Label()
	}
	return s.SelectedProvider
}

func indexOption(options []gateway.Option, id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(options, func(o gateway.Option) bool { return o.ID == id })
}

// pickOption keeps current if offered, else preferred if offered, else the
// first option.
func pickOption(options []gateway.Option, current, preferred string) string {
	if indexOption(options, current) >= 0 {
		return current
	}
	if indexOption(options, preferred) >= 0 {
		return preferred
	}
	if len(options) > 0 {
		return options[0].ID
	}
	return ""
}

// pickModel keeps current if listed, else the first model. preferred is only
// consulted when there is no current selection.
func pickModel(models []string, current, preferred string) string {
	if current != "" && slices.Contains(models, current) {
		return current
	}
	if current == "" && preferred != "" && slices.Contains(models, preferred) {
		return preferred
	}
	if len(models) > 0 {
		return models[0]
	}
	return ""
}

// cycle returns the id after (or before, for step < 0) current, wrapping.
func cycle(ids []string, current string, step int) string {
	if len(ids) == 0 {
		return ""
	}
	i := slices.Index(ids, current)
	if i < 0 {
		return ids[0]
	}
	n := len(ids)
	return ids[((i+step)%n+n)%n]
}

func optionIDs(options []gateway.Option) []string {
	ids := make([]string, len(options))
	for i, o := range options {
		ids[i] = o.ID
	}
	return ids
}
