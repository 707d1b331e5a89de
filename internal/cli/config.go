// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeranaias/guardrails-console/internal/config"
)

// errNotTOML is returned when editing a JSON or YAML config file.
var errNotTOML = errors.New("only TOML config files can be edited; convert the file or edit it by hand")

func newConfigCmd(flags *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show, inspect or edit the configuration",
		Long: `Without a subcommand, prints the effective configuration (file, then
GUARDCTL_* variables, then flags).

Keys use section.name notation, e.g. backend.url or ui.theme.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd.OutOrStdout(), flags, false)
		},
	}

	var asJSON bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd.OutOrStdout(), flags, asJSON)
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := editablePath(flags)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one effective value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
		ValidArgsFunction: completeKeys,
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := editablePath(flags)
			if err != nil {
				return err
			}
			if err := setConfigValue(p, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", RenderStatus("ok"), args[0], args[1])
			return nil
		},
		ValidArgsFunction: completeKeys,
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := editablePath(flags)
			if err != nil {
				return err
			}
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%s already exists", p)
			}
			if err := config.SaveTOML(config.Default(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", RenderStatus("ok"), p)
			return nil
		},
	}

	keys := &cobra.Command{
		Use:   "keys",
		Short: "List every settable key",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, k := range config.Keys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}

	cmd.AddCommand(show, path, get, set, initCmd, keys)
	return cmd
}

func runConfigShow(w io.Writer, flags *Flags, asJSON bool) error {
	cfg, path, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if asJSON {
		return NewJSONResponse("config show", cfg).Write(w)
	}
	source := path
	if source == "" {
		source = "defaults (no config file)"
	}
	fmt.Fprintf(w, "%s %s\n\n", LabelStyle.Render("Source:"), DimStyle.Render(source))
	fmt.Fprint(w, cfg.String())
	return nil
}

// editablePath returns the --config path, the file in use, or the default
// TOML location.
func editablePath(flags *Flags) (string, error) {
	if flags.ConfigPath != "" {
		return flags.ConfigPath, nil
	}
	if p := config.Find(); p != "" {
		return p, nil
	}
	return config.ConfigPathTOML()
}

// setConfigValue edits one key of the TOML file at path. Environment
// overrides are not applied so they never end up in the file.
func setConfigValue(path, key, value string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return errNotTOML
	}

	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	return config.SaveTOML(cfg, path)
}

func completeKeys(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, k := range config.Keys() {
		if strings.HasPrefix(k, toComplete) {
			out = append(out, k)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
