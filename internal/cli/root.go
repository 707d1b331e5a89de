// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/guardrails-console/internal/config"
	"github.com/jeranaias/guardrails-console/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Flags holds the global command line flags.
type Flags struct {
	ConfigPath  string
	Backend     string
	LogsURL     string
	Framework   string
	Provider    string
	Model       string
	LogLevel    string
	MetricsAddr string
	Plain       bool
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
		return 1
	}
	return 0
}

// NewRootCmd creates the guardctl root command and its subcommands.
func NewRootCmd() *cobra.Command {
	flags := &Flags{}

	root := &cobra.Command{
		Use:   "guardctl",
		Short: "Terminal console for a guardrails moderation backend",
		Long: `guardctl is an operator console for a guardrails backend.

It keeps a connection to the backend, lets you pick a moderation framework,
an inference provider and a model, toggle individual rules, chat through the
pipeline and watch the pipeline log stream live.

Without a terminal (or with --plain) it runs in line mode.

Example:
  guardctl --backend http://10.0.0.5:8000 --framework nemo`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if flags.Plain || !IsTTY() || !IsStdoutTTY() {
				return runLine(cmd.Context(), cfg, path, os.Stdout)
			}
			return runTUI(cmd.Context(), cfg, path)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.ConfigPath, "config", "c", "", "Path to configuration file (TOML, JSON or YAML)")
	pf.StringVarP(&flags.Backend, "backend", "b", "", "Backend REST base URL")
	pf.StringVar(&flags.LogsURL, "logs-url", "", "Log feed WebSocket URL (derived from --backend when empty)")
	pf.StringVar(&flags.Framework, "framework", "", "Initial moderation framework")
	pf.StringVar(&flags.Provider, "provider", "", "Initial inference provider")
	pf.StringVarP(&flags.Model, "model", "m", "", "Initial model")
	pf.StringVarP(&flags.LogLevel, "log-level", "l", "", "Diagnostic log level (debug, info, warn, error)")
	pf.StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	pf.BoolVar(&flags.Plain, "plain", false, "Use line mode even on a terminal")

	root.AddCommand(
		newChatCmd(flags),
		newStatusCmd(flags),
		newConfigCmd(flags),
		newVersionCmd(),
	)
	return root
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// loadConfig reads the configuration file, applies the flags and installs
// the result as the global config. It returns the file path used, if any.
func loadConfig(f *Flags) (*config.Config, string, error) {
	path := f.ConfigPath
	if path == "" {
		path = config.Find()
	}

	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, "", err
	}

	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid flags: %w", err)
	}
	config.SetGlobal(cfg)
	return cfg, path, nil
}

// apply overrides cfg with every flag that was given.
func (f *Flags) apply(cfg *config.Config) {
	overrides := []struct {
		value  string
		target *string
	}{
		{f.Backend, &cfg.Backend.URL},
		{f.LogsURL, &cfg.Backend.LogsURL},
		{f.Framework, &cfg.Session.DefaultFramework},
		{f.Provider, &cfg.Session.DefaultProvider},
		{f.Model, &cfg.Session.DefaultModel},
		{f.LogLevel, &cfg.Diagnostics.LogLevel},
		{f.MetricsAddr, &cfg.Diagnostics.MetricsAddr},
	}
	for _, o := range overrides {
		if o.value != "" {
			*o.target = o.value
		}
	}
	cfg.SetDefaults()
}

// =============================================================================
// TUI
// =============================================================================

func runTUI(ctx context.Context, cfg *config.Config, path string) error {
	a, err := newApp(cfg, path)
	if err != nil {
		return err
	}
	defer a.stop()

	m := chat.New(a.console, chat.Options{UI: cfg.UI, Backend: cfg.Backend.URL})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	a.start(ctx, func(next *config.Config) {
		config.SetGlobal(next)
		p.Send(chat.ConfigReloadedMsg{Config: next})
	})

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}

func versionString() string {
	return fmt.Sprintf("guardctl %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
