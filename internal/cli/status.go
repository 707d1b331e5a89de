// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/guardrails-console/internal/config"
	"github.com/jeranaias/guardrails-console/internal/gateway"
	"github.com/jeranaias/guardrails-console/internal/util"
)

func newStatusCmd(flags *Flags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"s"},
		Short:   "Probe the backend once and print what it offers",
		Long: `Checks backend health, then lists frameworks, providers, the models of
the selected provider and the rules of the selected framework.

Exits non-zero when the backend is unreachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			client := gateway.NewClientWithConfig(&gateway.ClientConfig{
				BaseURL: cfg.Backend.URL,
				LogsURL: cfg.Backend.LogsURL,
				Timeout: cfg.RequestTimeout(),
			})
			report := CollectStatus(cmd.Context(), client, cfg)
			report.LogsURL = client.GetConfig().LogsURL

			out := cmd.OutOrStdout()
			if asJSON {
				resp := NewJSONResponse("status", report)
				if !report.Healthy {
					resp = NewJSONErrorResponse("status", fmt.Errorf("%s", report.Error))
					resp.Data = report
				}
				if err := resp.Write(out); err != nil {
					return err
				}
			} else {
				printStatus(out, report)
			}
			if !report.Healthy {
				return fmt.Errorf("backend unreachable: %s", report.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

// =============================================================================
// COLLECTION
// =============================================================================

// StatusClient is the part of the gateway client used by status.
type StatusClient interface {
	HealthCheck(ctx context.Context) (gateway.Health, error)
	Frameworks(ctx context.Context) ([]gateway.Option, error)
	Providers(ctx context.Context) ([]gateway.Option, error)
	Models(ctx context.Context, providerID string) ([]string, error)
	Switches(ctx context.Context, frameworkID string) ([]gateway.SwitchInfo, error)
}

// StatusReport is the result of one backend probe.
type StatusReport struct {
	Backend   string        `json:"backend"`
	LogsURL   string        `json:"logs_url,omitempty"`
	Healthy   bool          `json:"healthy"`
	Error     string        `json:"error,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Latency   time.Duration `json:"latency_ns"`

	GPU *gateway.GPUInfo `json:"gpu,omitempty"`

	Frameworks []gateway.Option     `json:"frameworks"`
	Providers  []gateway.Option     `json:"providers"`
	Framework  string               `json:"framework,omitempty"`
	Provider   string               `json:"provider,omitempty"`
	Models     []string             `json:"models"`
	Rules      []gateway.SwitchInfo `json:"rules"`

	// Partial lists lookups that failed after a healthy probe.
	Partial []string `json:"partial,omitempty"`
}

// CollectStatus probes client. Frameworks and providers are fetched
// concurrently, then the models and rules of the configured (or first)
// selections.
func CollectStatus(ctx context.Context, client StatusClient, cfg *config.Config) StatusReport {
	report := StatusReport{Backend: cfg.Backend.URL}

	start := time.Now()
	health, err := client.HealthCheck(ctx)
	report.Latency = time.Since(start)
	report.GPU = health.GPU
	if err != nil {
		report.Error = err.Error()
		report.ErrorKind = gateway.Kind(err)
		return report
	}
	report.Healthy = true

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		report.Frameworks, err = client.Frameworks(gctx)
		return wrapLookup("frameworks", err)
	})
	g.Go(func() error {
		var err error
		report.Providers, err = client.Providers(gctx)
		return wrapLookup("providers", err)
	})
	if err := g.Wait(); err != nil {
		report.Partial = append(report.Partial, err.Error())
		return report
	}

	report.Framework = pickOption(report.Frameworks, cfg.Session.DefaultFramework)
	report.Provider = pickOption(report.Providers, cfg.Session.DefaultProvider)

	// models and rules are independent; one failing keeps the other
	var modelsErr, rulesErr error
	var wg errgroup.Group
	if report.Provider != "" {
		wg.Go(func() error {
			report.Models, modelsErr = client.Models(ctx, report.Provider)
			return nil
		})
	}
	if report.Framework != "" {
		wg.Go(func() error {
			report.Rules, rulesErr = client.Switches(ctx, report.Framework)
			return nil
		})
	}
	_ = wg.Wait()
	if modelsErr != nil {
		report.Partial = append(report.Partial, wrapLookup("models", modelsErr).Error())
	}
	if rulesErr != nil {
		report.Partial = append(report.Partial, wrapLookup("rules", rulesErr).Error())
	}
	return report
}

func wrapLookup(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}

// pickOption returns preferred when offered, else the first option.
func pickOption(options []gateway.Option, preferred string) string {
	for _, o := range options {
		if o.ID == preferred {
			return o.ID
		}
	}
	if len(options) > 0 {
		return options[0].ID
	}
	return ""
}

// =============================================================================
// OUTPUT
// =============================================================================

func printStatus(w io.Writer, r StatusReport) {
	fmt.Fprintln(w, TitleStyle.Render("guardctl status"))
	fmt.Fprintln(w, RenderSeparator(40))

	row := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", LabelStyle.Render(label+":"), value)
	}

	row("Backend", ValueStyle.Render(r.Backend))
	if r.LogsURL != "" {
		row("Log feed", ValueStyle.Render(r.LogsURL))
	}
	if !r.Healthy {
		row("Health", RenderStatus("fail")+" "+ErrorStyle.Render(r.Error))
		if r.GPU != nil {
			row("GPU", ValueStyle.Render(r.GPU.Label()))
		}
		return
	}
	row("Health", fmt.Sprintf("%s %s", RenderStatus("ok"), DimStyle.Render(util.FormatSeconds(r.Latency.Seconds()))))
	if r.GPU != nil {
		row("GPU", ValueStyle.Render(r.GPU.Label()))
	}

	row("Frameworks", formatOptions(r.Frameworks, r.Framework))
	row("Providers", formatOptions(r.Providers, r.Provider))
	if r.Provider != "" {
		row("Models", formatList(r.Models))
	}
	if r.Framework != "" {
		names := make([]string, len(r.Rules))
		for i, sw := range r.Rules {
			mark := "-"
			if sw.Default {
				mark = "+"
			}
			names[i] = mark + sw.Key
		}
		row("Rules", formatList(names))
	}
	for _, p := range r.Partial {
		row("Warning", WarningStyle.Render(p))
	}
}

// formatOptions lists option labels, marking the selected one with *.
func formatOptions(options []gateway.Option, selected string) string {
	names := make([]string, len(options))
	for i, o := range options {
		names[i] = o.Label()
		if o.ID == selected {
			names[i] = "*" + names[i]
		}
	}
	return formatList(names)
}

func formatList(items []string) string {
	if len(items) == 0 {
		return DimStyle.Render("none")
	}
	return ValueStyle.Render(strings.Join(items, ", "))
}
