// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package resources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/guardrails-console/internal/gateway"
	"github.com/jeranaias/guardrails-console/internal/model"
)

// Catalog is the part of the backend the resolver reads from.
type Catalog interface {
	Models(ctx context.Context, providerID string) ([]string, error)
	Switches(ctx context.Context, frameworkID string) ([]gateway.SwitchInfo, error)
}

// Preferences are the configured initial selections.
type Preferences struct {
	Framework string
	Provider  string
	Model     string
}

// Errors returned by selection intents.
var (
	ErrUnknownFramework = errors.New("unknown framework")
	ErrUnknownProvider  = errors.New("unknown provider")
	ErrUnknownModel     = errors.New("model not offered by provider")
	ErrUnknownRule      = errors.New("unknown rule")
)

// =============================================================================
// MESSAGES
// =============================================================================

// ModelsLoadedMsg carries the result of a model list fetch.
type ModelsLoadedMsg struct {
	ProviderID string
	Seq        uint64
	Models     []string
	Err        error
}

// SwitchesLoadedMsg carries the result of a switch list fetch.
type SwitchesLoadedMsg struct {
	FrameworkID string
	Seq         uint64
	Switches    []gateway.SwitchInfo
	Err         error
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver owns the ResourceSet and the RuleConfig. It must only be used from
// the event loop goroutine.
type Resolver struct {
	catalog Catalog
	sink    model.Sink
	logger  *slog.Logger
	prefs   Preferences

	set ResourceSet

	// rules belong to rulesFramework; they are only exposed while that is
	// still the selected framework, but serve as the merge base on the next
	// successful switch fetch.
	rules          RuleConfig
	rulesFramework string

	// carryModel is the model selected before a provider change. The list is
	// cleared at once; the name is restored if the new provider offers it.
	carryModel string

	modelSeq        uint64
	switchSeq       uint64
	modelsLoading   bool
	switchesLoading bool
}

// NewResolver creates a resolver with an empty resource set.
func NewResolver(catalog Catalog, sink model.Sink, logger *slog.Logger, prefs Preferences) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		catalog: catalog,
		sink:    sink,
		logger:  logger.With("component", "resources"),
		prefs:   prefs,
	}
}

// Snapshot returns a copy of the current resource set.
func (r *Resolver) Snapshot() ResourceSet {
	return r.set.Clone()
}

// Rules returns the rule config of the selected framework. It is empty while
// the selected framework's switches have not been loaded.
func (r *Resolver) Rules() RuleConfig {
	if r.rulesFramework != r.set.SelectedFramework || r.set.SelectedFramework == "" {
		return RuleConfig{}
	}
	return r.rules
}

// ModelsLoading reports whether a model list fetch is in flight.
func (r *Resolver) ModelsLoading() bool {
	return r.modelsLoading
}

// SwitchesLoading reports whether a switch list fetch is in flight.
func (r *Resolver) SwitchesLoading() bool {
	return r.switchesLoading
}

// ApplyCatalog installs freshly probed framework and provider lists, keeps
// the current selections where still offered, and re-resolves models and
// switches for the resulting selection.
func (r *Resolver) ApplyCatalog(frameworks, providers []gateway.Option) tea.Cmd {
	next := r.set.Clone()
	next.Frameworks = append([]gateway.Option(nil), frameworks...)
	next.Providers = append([]gateway.Option(nil), providers...)
	next.SelectedFramework = pickOption(frameworks, r.set.SelectedFramework, r.prefs.Framework)
	next.SelectedProvider = pickOption(providers, r.set.SelectedProvider, r.prefs.Provider)
	if next.SelectedProvider != r.set.SelectedProvider {
		r.leaveProvider(&next)
	}
	r.set = next

	if len(frameworks) == 0 {
		r.sink.Log(model.SeverityWarning, "No moderation frameworks available")
	}
	if len(providers) == 0 {
		r.sink.Log(model.SeverityWarning, "No providers available")
	}

	return tea.Batch(r.refreshModels(), r.refreshSwitches())
}

// SelectFramework changes the framework and fetches its switches.
func (r *Resolver) SelectFramework(id string) (tea.Cmd, error) {
	if !r.set.HasFramework(id) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFramework, id)
	}
	if id == r.set.SelectedFramework {
		return nil, nil
	}
	next := r.set.Clone()
	next.SelectedFramework = id
	r.set = next
	return r.refreshSwitches(), nil
}

// SelectProvider changes the provider and fetches its model list.
func (r *Resolver) SelectProvider(id string) (tea.Cmd, error) {
	if !r.set.HasProvider(id) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	if id == r.set.SelectedProvider {
		return nil, nil
	}
	next := r.set.Clone()
	next.SelectedProvider = id
	r.leaveProvider(&next)
	r.set = next
	return r.refreshModels(), nil
}

// leaveProvider drops the current model list from next and remembers its
// selection for the next list that arrives.
func (r *Resolver) leaveProvider(next *ResourceSet) {
	if next.SelectedModel != "" {
		r.carryModel = next.SelectedModel
	}
	next.Models = nil
	next.SelectedModel = ""
}

// SelectModel changes the model within the current list.
func (r *Resolver) SelectModel(name string) error {
	if !r.set.HasModel(name) {
		return fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	next := r.set.Clone()
	next.SelectedModel = name
	r.set = next
	return nil
}

// CycleFramework selects the next (step > 0) or previous framework.
func (r *Resolver) CycleFramework(step int) tea.Cmd {
	id := cycle(optionIDs(r.set.Frameworks), r.set.SelectedFramework, step)
	cmd, _ := r.SelectFramework(id)
	return cmd
}

// CycleProvider selects the next (step > 0) or previous provider.
func (r *Resolver) CycleProvider(step int) tea.Cmd {
	id := cycle(optionIDs(r.set.Providers), r.set.SelectedProvider, step)
	cmd, _ := r.SelectProvider(id)
	return cmd
}

// CycleModel selects the next (step > 0) or previous model.
func (r *Resolver) CycleModel(step int) {
	if name := cycle(r.set.Models, r.set.SelectedModel, step); name != "" {
		_ = r.SelectModel(name)
	}
}

// ToggleRule flips one switch of the selected framework.
func (r *Resolver) ToggleRule(key string) (bool, error) {
	current := r.Rules()
	next, ok := current.Toggle(key)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownRule, key)
	}
	r.rules = next
	return next.Enabled(key), nil
}

// RefreshModels re-fetches the model list of the selected provider.
func (r *Resolver) RefreshModels() tea.Cmd {
	return r.refreshModels()
}

// =============================================================================
// FETCHES
// =============================================================================

func (r *Resolver) refreshModels() tea.Cmd {
	r.modelSeq++
	providerID := r.set.SelectedProvider
	if providerID == "" {
		next := r.set.Clone()
		next.Models = nil
		next.SelectedModel = ""
		r.set = next
		r.modelsLoading = false
		return nil
	}

	r.modelsLoading = true
	seq := r.modelSeq
	catalog := r.catalog
	return func() tea.Msg {
		models, err := catalog.Models(context.Background(), providerID)
		return ModelsLoadedMsg{ProviderID: providerID, Seq: seq, Models: models, Err: err}
	}
}

func (r *Resolver) refreshSwitches() tea.Cmd {
	r.switchSeq++
	frameworkID := r.set.SelectedFramework
	if frameworkID == "" {
		r.switchesLoading = false
		return nil
	}

	r.switchesLoading = true
	seq := r.switchSeq
	catalog := r.catalog
	return func() tea.Msg {
		switches, err := catalog.Switches(context.Background(), frameworkID)
		return SwitchesLoadedMsg{FrameworkID: frameworkID, Seq: seq, Switches: switches, Err: err}
	}
}

// HandleModels applies a model list result. Stale results are ignored and
// return applied == false. The fetch error, if any, is returned so the caller
// can react to connectivity loss.
func (r *Resolver) HandleModels(msg ModelsLoadedMsg) (applied bool, err error) {
	if msg.Seq != r.modelSeq || msg.ProviderID != r.set.SelectedProvider {
		r.logger.Debug("discarding stale model list",
			"provider", msg.ProviderID, "seq", msg.Seq, "latest", r.modelSeq)
		return false, nil
	}
	r.modelsLoading = false

	next := r.set.Clone()
	provider := r.set.ProviderLabel()
	if msg.Err != nil {
		r.leaveProvider(&next)
		r.set = next
		r.sink.Log(model.SeverityError, fmt.Sprintf("Failed to load models from %s: %v", provider, msg.Err))
		return true, msg.Err
	}

	previous := r.set.SelectedModel
	if previous == "" {
		previous = r.carryModel
	}
	next.Models = append([]string(nil), msg.Models...)
	next.SelectedModel = pickModel(next.Models, previous, r.prefs.Model)
	r.set = next
	r.carryModel = ""

	switch {
	case len(next.Models) == 0:
		r.sink.Log(model.SeverityWarning, "No models found in "+provider)
	case previous != "" && previous != next.SelectedModel:
		r.sink.Log(model.SeverityInfo, fmt.Sprintf("Model %s not offered by %s, using %s", previous, provider, next.SelectedModel))
	}
	return true, nil
}

// HandleSwitches applies a switch list result, merging it into the current
// rule values. Stale results are ignored.
func (r *Resolver) HandleSwitches(msg SwitchesLoadedMsg) (applied bool, err error) {
	if msg.Seq != r.switchSeq || msg.FrameworkID != r.set.SelectedFramework {
		r.logger.Debug("discarding stale switch list",
			"framework", msg.FrameworkID, "seq", msg.Seq, "latest", r.switchSeq)
		return false, nil
	}
	r.switchesLoading = false

	if msg.Err != nil {
		r.sink.Log(model.SeverityError, fmt.Sprintf("Failed to load rules for %s: %v", r.set.FrameworkLabel(), msg.Err))
		return true, msg.Err
	}

	r.rules = r.rules.Merge(msg.Switches)
	r.rulesFramework = msg.FrameworkID
	return true, nil
}
