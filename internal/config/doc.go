// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for guardctl.
//
// TOML, JSON and YAML files are supported, with sensible defaults,
// .env files, environment variable overrides, and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command line flags (applied by the cli package)
//   - Environment variables (GUARDCTL_*), including those from .env files
//   - ~/.guardctl/config.toml, config.json or config.yaml (first found)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	interval := cfg.RetryInterval()
//
// A Watcher re-reads the file on change; only the [ui] section is applied to
// a running console.
package config
