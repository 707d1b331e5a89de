// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the guardctl command line.
//
// Commands:
//
//	guardctl                   Start the TUI (line mode when not a terminal)
//	guardctl chat              Line-mode console with history and completion
//	guardctl status            Probe the backend once and print what it offers
//	guardctl config [cmd]      Show, inspect or edit the configuration file
//	guardctl version           Print version information
//
// Global flags override the configuration file and GUARDCTL_* variables:
//
//	--config PATH        Configuration file (TOML, JSON or YAML)
//	--backend URL        Backend REST base URL
//	--logs-url URL       Log feed WebSocket URL
//	--framework ID       Initial framework
//	--provider ID        Initial provider
//	--model NAME         Initial model
//	--log-level LEVEL    Diagnostic log level (debug, info, warn, error)
//	--metrics-addr ADDR  Serve Prometheus metrics on ADDR
//	--plain              Force line mode
package cli
