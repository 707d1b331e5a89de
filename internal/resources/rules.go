// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package resources

import (
	"maps"
	"slices"

	"github.com/jeranaias/guardrails-console/internal/gateway"
)

// RuleConfig holds the on/off state of every switch of one framework.
// Methods return new values; a RuleConfig is never modified after creation.
type RuleConfig struct {
	switches []gateway.SwitchInfo
	values   map[string]bool
}

// NewRuleConfig creates a config with every switch at its declared default.
func NewRuleConfig(switches []gateway.SwitchInfo) RuleConfig {
	return RuleConfig{}.Merge(switches)
}

// Merge builds the config for a new switch set. Keys present in both keep
// their current value, new keys take their default, and keys missing from
// switches are dropped.
func (c RuleConfig) Merge(switches []gateway.SwitchInfo) RuleConfig {
	next := RuleConfig{
		switches: make([]gateway.SwitchInfo, 0, len(switches)),
		values:   make(map[string]bool, len(switches)),
	}
	for _, sw := range switches {
		if sw.Key == "" {
			continue
		}
		if _, dup := next.values[sw.Key]; dup {
			continue
		}
		v, ok := c.values[sw.Key]
		if !ok {
			v = sw.Default
		}
		next.switches = append(next.switches, sw)
		next.values[sw.Key] = v
	}
	return next
}

// Set returns a config with key set to enabled. ok is false for an unknown key.
func (c RuleConfig) Set(key string, enabled bool) (next RuleConfig, ok bool) {
	if _, known := c.values[key]; !known {
		return c, false
	}
	next = RuleConfig{switches: c.switches, values: maps.Clone(c.values)}
	next.values[key] = enabled
	return next, true
}

// Toggle returns a config with key flipped. ok is false for an unknown key.
func (c RuleConfig) Toggle(key string) (RuleConfig, bool) {
	return c.Set(key, !c.values[key])
}

// Enabled reports whether key is switched on.
func (c RuleConfig) Enabled(key string) bool {
	return c.values[key]
}

// Has reports whether key is a switch of this config.
func (c RuleConfig) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Map returns a copy of the key to state mapping, as sent to the backend.
func (c RuleConfig) Map() map[string]bool {
	out := make(map[string]bool, len(c.values))
	maps.Copy(out, c.values)
	return out
}

// Switches returns the switch declarations in backend order.
func (c RuleConfig) Switches() []gateway.SwitchInfo {
	return slices.Clone(c.switches)
}

// Keys returns the switch keys in backend order.
func (c RuleConfig) Keys() []string {
	keys := make([]string, len(c.switches))
	for i, sw := range c.switches {
		keys[i] = sw.Key
	}
	return keys
}

// Len returns the number of switches.
func (c RuleConfig) Len() int {
	return len(c.switches)
}

// EnabledCount returns how many switches are on.
func (c RuleConfig) EnabledCount() int {
	n := 0
	for _, v := range c.values {
		if v {
			n++
		}
	}
	return n
}
