// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package resources

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jeranaias/guardrails-console/internal/gateway"
	"github.com/jeranaias/guardrails-console/internal/model"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeCatalog struct {
	models   map[string][]string
	switches map[string][]gateway.SwitchInfo
	err      error
}

func (f *fakeCatalog) Models(_ context.Context, providerID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.models[providerID], nil
}

func (f *fakeCatalog) Switches(_ context.Context, frameworkID string) ([]gateway.SwitchInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.switches[frameworkID], nil
}

func opts(ids ...string) []gateway.Option {
	out := make([]gateway.Option, len(ids))
	for i, id := range ids {
		out[i] = gateway.Option{ID: id, Name: strings.ToUpper(id)}
	}
	return out
}

type fataler interface {
	Fatalf(format string, args ...any)
}

// drain runs cmd and every command it batches, feeding results to the resolver.
func drain(t fataler, r *Resolver, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			drain(t, r, c)
		}
	case ModelsLoadedMsg:
		_, _ = r.HandleModels(msg)
	case SwitchesLoadedMsg:
		_, _ = r.HandleSwitches(msg)
	case nil:
	default:
		t.Fatalf("unexpected message %T", msg)
	}
}

func newTestResolver(cat *fakeCatalog) (*Resolver, *model.ActivityLog) {
	log := model.NewActivityLog(0)
	return NewResolver(cat, log, nil, Preferences{}), log
}

// =============================================================================
// RULE CONFIG TESTS
// =============================================================================

func TestRuleConfig_MergeKeepsSharedKeys(t *testing.T) {
	guardrails := []gateway.SwitchInfo{{Key: "pii", Default: true}, {Key: "toxicity", Default: true}}
	nemo := []gateway.SwitchInfo{{Key: "pii", Default: true}, {Key: "jailbreak", Default: true}}

	cfg := NewRuleConfig(guardrails)
	cfg, ok := cfg.Toggle("pii")
	require.True(t, ok)

	merged := cfg.Merge(nemo)
	assert.Equal(t, map[string]bool{"pii": false, "jailbreak": true}, merged.Map())
	assert.False(t, merged.Has("toxicity"))
	assert.Equal(t, []string{"pii", "jailbreak"}, merged.Keys())
}

func TestRuleConfig_Immutable(t *testing.T) {
	cfg := NewRuleConfig([]gateway.SwitchInfo{{Key: "pii", Default: true}})
	next, ok := cfg.Set("pii", false)
	require.True(t, ok)

	assert.True(t, cfg.Enabled("pii"))
	assert.False(t, next.Enabled("pii"))

	m := next.Map()
	m["pii"] = true
	assert.False(t, next.Enabled("pii"), "Map returns a copy")

	_, ok = cfg.Toggle("missing")
	assert.False(t, ok)
}

func TestRuleConfig_SkipsBlankAndDuplicateKeys(t *testing.T) {
	cfg := NewRuleConfig([]gateway.SwitchInfo{
		{Key: "pii", Default: true},
		{Key: ""},
		{Key: "pii", Default: false},
	})
	assert.Equal(t, 1, cfg.Len())
	assert.Equal(t, 1, cfg.EnabledCount())
}

func TestRuleConfig_MergeProperty(t *testing.T) {
	keys := []string{"pii", "jailbreak", "toxicity", "off_topic", "hallucination", "competitor"}

	switchSet := func(t *rapid.T, label string) []gateway.SwitchInfo {
		picked := rapid.SliceOfNDistinct(rapid.SampledFrom(keys), 0, len(keys), rapid.ID[string]).Draw(t, label)
		out := make([]gateway.SwitchInfo, len(picked))
		for i, k := range picked {
			out[i] = gateway.SwitchInfo{Key: k, Default: rapid.Bool().Draw(t, label+"-default-"+k)}
		}
		return out
	}

	rapid.Check(t, func(t *rapid.T) {
		cfg := NewRuleConfig(switchSet(t, "initial"))
		for _, k := range cfg.Keys() {
			if rapid.Bool().Draw(t, "toggle-"+k) {
				cfg, _ = cfg.Toggle(k)
			}
		}

		next := switchSet(t, "next")
		merged := cfg.Merge(next)

		assert.Equal(t, len(next), merged.Len())
		for _, sw := range next {
			if cfg.Has(sw.Key) {
				assert.Equal(t, cfg.Enabled(sw.Key), merged.Enabled(sw.Key), "shared key %s", sw.Key)
			} else {
				assert.Equal(t, sw.Default, merged.Enabled(sw.Key), "new key %s", sw.Key)
			}
		}
	})
}

// =============================================================================
// RESOLVER TESTS
// =============================================================================

func TestResolver_ApplyCatalogSelectsFirstOrPreference(t *testing.T) {
	cat := &fakeCatalog{
		models:   map[string][]string{"ollama": {"m1"}, "vllm": {"v1", "v2"}},
		switches: map[string][]gateway.SwitchInfo{"nemo": {{Key: "pii", Default: true}}},
	}
	log := model.NewActivityLog(0)
	r := NewResolver(cat, log, nil, Preferences{Framework: "nemo", Provider: "vllm", Model: "v2"})

	drain(t, r, r.ApplyCatalog(opts("guardrails_ai", "nemo"), opts("ollama", "vllm")))

	set := r.Snapshot()
	assert.Equal(t, "nemo", set.SelectedFramework)
	assert.Equal(t, "vllm", set.SelectedProvider)
	assert.Equal(t, []string{"v1", "v2"}, set.Models)
	assert.Equal(t, "v2", set.SelectedModel)
	assert.True(t, r.Rules().Enabled("pii"))
	assert.False(t, r.ModelsLoading())
	assert.False(t, r.SwitchesLoading())
	assert.Equal(t, 0, log.Len())
}

func TestResolver_ApplyCatalogKeepsSelection(t *testing.T) {
	cat := &fakeCatalog{models: map[string][]string{"a": {"m1"}, "b": {"m1"}}}
	r, _ := newTestResolver(cat)

	drain(t, r, r.ApplyCatalog(opts("fw"), opts("a", "b")))
	cmd, err := r.SelectProvider("b")
	require.NoError(t, err)
	drain(t, r, cmd)

	drain(t, r, r.ApplyCatalog(opts("fw"), opts("c", "b")))
	assert.Equal(t, "b", r.Snapshot().SelectedProvider)

	drain(t, r, r.ApplyCatalog(opts("fw"), opts("c")))
	assert.Equal(t, "c", r.Snapshot().SelectedProvider)
}

func TestResolver_ModelCarryOverScenario(t *testing.T) {
	cat := &fakeCatalog{models: map[string][]string{
		"A": {"m1", "m2"},
		"B": {"m2", "m3"},
		"C": {"m4"},
	}}
	r, log := newTestResolver(cat)

	drain(t, r, r.ApplyCatalog(opts("fw"), opts("A", "B", "C")))
	require.NoError(t, r.SelectModel("m2"))

	cmd, err := r.SelectProvider("B")
	require.NoError(t, err)
	assert.True(t, r.ModelsLoading())
	drain(t, r, cmd)
	assert.Equal(t, "m2", r.Snapshot().SelectedModel)

	cmd, err = r.SelectProvider("C")
	require.NoError(t, err)
	drain(t, r, cmd)
	assert.Equal(t, "m4", r.Snapshot().SelectedModel)
	assert.Equal(t, 0, log.Count(model.SeverityError))
	assert.Equal(t, 0, log.Count(model.SeverityWarning))
}

func TestResolver_ProviderSwitchClearsModelsUntilLoaded(t *testing.T) {
	cat := &fakeCatalog{models: map[string][]string{
		"A": {"a1", "a2"},
		"B": {"b1", "a2"},
	}}
	r, _ := newTestResolver(cat)
	drain(t, r, r.ApplyCatalog(opts("fw"), opts("A", "B")))
	require.NoError(t, r.SelectModel("a2"))

	cmd, err := r.SelectProvider("B")
	require.NoError(t, err)

	set := r.Snapshot()
	assert.Equal(t, "B", set.SelectedProvider)
	assert.Empty(t, set.Models)
	assert.Empty(t, set.SelectedModel)
	assert.ErrorIs(t, r.SelectModel("a1"), ErrUnknownModel, "A's models cannot be picked for B")
	assert.ErrorIs(t, r.SelectModel("a2"), ErrUnknownModel)

	drain(t, r, cmd)
	set = r.Snapshot()
	assert.Equal(t, []string{"b1", "a2"}, set.Models)
	assert.Equal(t, "a2", set.SelectedModel, "the previous choice is restored when offered")
}

func TestResolver_CatalogProviderChangeClearsModels(t *testing.T) {
	cat := &fakeCatalog{models: map[string][]string{"A": {"m1"}, "B": {"m1", "m2"}}}
	r, _ := newTestResolver(cat)
	drain(t, r, r.ApplyCatalog(opts("fw"), opts("A")))
	require.Equal(t, "m1", r.Snapshot().SelectedModel)

	cmd := r.ApplyCatalog(opts("fw"), opts("B"))
	set := r.Snapshot()
	assert.Equal(t, "B", set.SelectedProvider)
	assert.Empty(t, set.Models)
	assert.Empty(t, set.SelectedModel)

	drain(t, r, cmd)
	assert.Equal(t, "m1", r.Snapshot().SelectedModel)
}

func TestResolver_EmptyModelListWarns(t *testing.T) {
	cat := &fakeCatalog{models: map[string][]string{"A": {"m1"}, "B": {}}}
	r, log := newTestResolver(cat)

	drain(t, r, r.ApplyCatalog(opts("fw"), opts("A", "B")))
	cmd, _ := r.SelectProvider("B")
	drain(t, r, cmd)

	set := r.Snapshot()
	assert.Empty(t, set.SelectedModel)
	assert.Empty(t, set.Models)
	require.Equal(t, 1, log.Count(model.SeverityWarning))
	assert.Equal(t, "No models found in B", log.Entries()[log.Len()-1].Message)
}

func TestResolver_DiscardsStaleModelList(t *testing.T) {
	cat := &fakeCatalog{models: map[string][]string{"A": {"a1"}, "B": {"b1"}}}
	r, _ := newTestResolver(cat)
	drain(t, r, r.ApplyCatalog(opts("fw"), opts("A", "B")))

	slow, _ := r.SelectProvider("B")
	fast, _ := r.SelectProvider("A")

	applied, err := r.HandleModels(fast().(ModelsLoadedMsg))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, _ = r.HandleModels(slow().(ModelsLoadedMsg))
	assert.False(t, applied, "result for a provider no longer selected must be dropped")
	assert.Equal(t, []string{"a1"}, r.Snapshot().Models)
	assert.Equal(t, "a1", r.Snapshot().SelectedModel)
}

func TestResolver_DiscardsSupersededRequestForSameProvider(t *testing.T) {
	cat := &fakeCatalog{models: map[string][]string{"A": {"old"}}}
	r, _ := newTestResolver(cat)
	drain(t, r, r.ApplyCatalog(opts("fw"), opts("A")))

	first := r.RefreshModels()
	oldMsg := first().(ModelsLoadedMsg)
	cat.models["A"] = []string{"new"}
	second := r.RefreshModels()

	applied, _ := r.HandleModels(oldMsg)
	assert.False(t, applied)
	applied, _ = r.HandleModels(second().(ModelsLoadedMsg))
	assert.True(t, applied)
	assert.Equal(t, "new", r.Snapshot().SelectedModel)
}

func TestResolver_ModelFetchErrorClearsSelection(t *testing.T) {
	cat := &fakeCatalog{models: map[string][]string{"A": {"m1"}}}
	r, log := newTestResolver(cat)
	drain(t, r, r.ApplyCatalog(opts("fw"), opts("A")))
	require.Equal(t, "m1", r.Snapshot().SelectedModel)

	boom := errors.New("boom")
	cat.err = boom
	applied, err := r.HandleModels(r.RefreshModels()().(ModelsLoadedMsg))
	assert.True(t, applied)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, r.Snapshot().SelectedModel)
	assert.Equal(t, 1, log.Count(model.SeverityError))

	cat.err = nil
	drain(t, r, r.RefreshModels())
	assert.Equal(t, "m1", r.Snapshot().SelectedModel)
}

func TestResolver_FrameworkSwitchMergesRules(t *testing.T) {
	cat := &fakeCatalog{switches: map[string][]gateway.SwitchInfo{
		"guardrails_ai": {{Key: "pii", Default: true}, {Key: "toxicity", Default: true}},
		"nemo":          {{Key: "pii", Default: true}, {Key: "jailbreak", Default: true}},
	}}
	r, _ := newTestResolver(cat)
	drain(t, r, r.ApplyCatalog(opts("guardrails_ai", "nemo"), nil))

	on, err := r.ToggleRule("pii")
	require.NoError(t, err)
	assert.False(t, on)

	cmd, err := r.SelectFramework("nemo")
	require.NoError(t, err)
	assert.Equal(t, 0, r.Rules().Len(), "rules of the previous framework are not exposed while loading")
	drain(t, r, cmd)

	assert.Equal(t, map[string]bool{"pii": false, "jailbreak": true}, r.Rules().Map())
}

func TestResolver_SwitchErrorKeepsMergeBase(t *testing.T) {
	cat := &fakeCatalog{switches: map[string][]gateway.SwitchInfo{
		"a": {{Key: "pii", Default: true}},
		"b": {{Key: "pii", Default: true}},
	}}
	r, log := newTestResolver(cat)
	drain(t, r, r.ApplyCatalog(opts("a", "b"), nil))
	_, _ = r.ToggleRule("pii")

	cat.err = errors.New("down")
	cmd, _ := r.SelectFramework("b")
	drain(t, r, cmd)
	assert.Equal(t, 0, r.Rules().Len())
	assert.Equal(t, 1, log.Count(model.SeverityError))

	cat.err = nil
	drain(t, r, r.ApplyCatalog(opts("a", "b"), nil))
	assert.False(t, r.Rules().Enabled("pii"), "toggle survives a failed fetch")
}

func TestResolver_SelectionErrors(t *testing.T) {
	r, _ := newTestResolver(&fakeCatalog{models: map[string][]string{"A": {"m1"}}})
	drain(t, r, r.ApplyCatalog(opts("fw"), opts("A")))

	_, err := r.SelectFramework("nope")
	assert.ErrorIs(t, err, ErrUnknownFramework)
	_, err = r.SelectProvider("nope")
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.ErrorIs(t, r.SelectModel("nope"), ErrUnknownModel)
	_, err = r.ToggleRule("nope")
	assert.ErrorIs(t, err, ErrUnknownRule)

	cmd, err := r.SelectProvider("A")
	assert.NoError(t, err)
	assert.Nil(t, cmd, "reselecting the current provider is a no-op")
}

func TestResolver_Cycle(t *testing.T) {
	cat := &fakeCatalog{models: map[string][]string{"A": {"m1", "m2"}, "B": {"m1"}}}
	r, _ := newTestResolver(cat)
	drain(t, r, r.ApplyCatalog(opts("x", "y"), opts("A", "B")))

	r.CycleModel(1)
	assert.Equal(t, "m2", r.Snapshot().SelectedModel)
	r.CycleModel(1)
	assert.Equal(t, "m1", r.Snapshot().SelectedModel)

	drain(t, r, r.CycleProvider(-1))
	assert.Equal(t, "B", r.Snapshot().SelectedProvider)

	drain(t, r, r.CycleFramework(1))
	assert.Equal(t, "y", r.Snapshot().SelectedFramework)
}

func TestResolver_SelectedModelAlwaysInLatestList(t *testing.T) {
	providers := []string{"A", "B", "C", "D"}
	models := []string{"m1", "m2", "m3", "m4"}

	rapid.Check(t, func(t *rapid.T) {
		cat := &fakeCatalog{models: map[string][]string{}}
		for _, p := range providers {
			cat.models[p] = rapid.SliceOfNDistinct(rapid.SampledFrom(models), 0, len(models), rapid.ID[string]).Draw(t, "models-"+p)
		}
		r, _ := newTestResolver(cat)
		drain(t, r, r.ApplyCatalog(opts("fw"), opts(providers...)))

		var pending []tea.Cmd
		steps := rapid.IntRange(1, 20).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 2).Draw(t, "action") {
			case 0:
				cmd, err := r.SelectProvider(rapid.SampledFrom(providers).Draw(t, "provider"))
				require.NoError(t, err)
				if cmd != nil {
					pending = append(pending, cmd)
				}
			case 1:
				if len(pending) > 0 {
					idx := rapid.IntRange(0, len(pending)-1).Draw(t, "deliver")
					cmd := pending[idx]
					pending = append(pending[:idx], pending[idx+1:]...)
					drain(t, r, cmd)
				}
			case 2:
				set := r.Snapshot()
				if len(set.Models) > 0 {
					require.NoError(t, r.SelectModel(rapid.SampledFrom(set.Models).Draw(t, "model")))
				}
			}

			set := r.Snapshot()
			if r.ModelsLoading() {
				assert.Empty(t, set.Models, "no list is shown for a provider still loading")
				assert.Empty(t, set.SelectedModel)
				continue
			}
			assert.ElementsMatch(t, cat.models[set.SelectedProvider], set.Models,
				"the list always belongs to the selected provider")
			if set.SelectedModel != "" {
				assert.Contains(t, set.Models, set.SelectedModel)
			}
		}

		for _, cmd := range pending {
			drain(t, r, cmd)
		}
		set := r.Snapshot()
		latest := cat.models[set.SelectedProvider]
		if set.SelectedModel != "" {
			assert.Contains(t, latest, set.SelectedModel)
		}
		assert.Equal(t, len(latest) > 0, set.SelectedModel != "")
	})
}
