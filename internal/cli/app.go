// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/jeranaias/guardrails-console/internal/config"
	"github.com/jeranaias/guardrails-console/internal/console"
	"github.com/jeranaias/guardrails-console/internal/gateway"
	"github.com/jeranaias/guardrails-console/internal/logging"
	"github.com/jeranaias/guardrails-console/internal/logstream"
	"github.com/jeranaias/guardrails-console/internal/resources"
	"github.com/jeranaias/guardrails-console/internal/telemetry"
)

// app holds the long-lived services shared by the TUI and line mode.
type app struct {
	cfg  *config.Config
	path string

	logger  *slog.Logger
	logFile io.Closer
	client  *gateway.Client
	metrics *telemetry.Metrics
	feed    *logstream.Ingestor
	console *console.Console
	watcher *config.Watcher
}

// newApp builds the gateway client, the diagnostic log and the console.
// Nothing runs until start.
func newApp(cfg *config.Config, path string) (*app, error) {
	logPath := cfg.Diagnostics.LogFile
	if logPath == "" {
		logPath = config.DefaultLogFile()
	}
	logger, logFile, err := logging.OpenFile(logPath, cfg.Diagnostics.LogLevel)
	if err != nil {
		return nil, err
	}

	client := gateway.NewClientWithConfig(&gateway.ClientConfig{
		BaseURL:     cfg.Backend.URL,
		LogsURL:     cfg.Backend.LogsURL,
		Timeout:     cfg.RequestTimeout(),
		ChatTimeout: cfg.ChatTimeout(),
	})
	metrics := telemetry.NewMetrics()
	feed := logstream.New(logstream.FromClient(client), cfg.LogReconnectDelay(), logger)

	c := console.New(client, console.Options{
		RetryInterval: cfg.RetryInterval(),
		Preferences: resources.Preferences{
			Framework: cfg.Session.DefaultFramework,
			Provider:  cfg.Session.DefaultProvider,
			Model:     cfg.Session.DefaultModel,
		},
		MaxLogEntries: cfg.UI.MaxLogEntries,
		Logger:        logger,
		Metrics:       metrics,
		Feed:          feed,
	})

	logger.Info("guardctl starting",
		"version", Version,
		"backend", client.GetConfig().BaseURL,
		"logs_url", client.GetConfig().LogsURL,
		"config", path)

	return &app{
		cfg:     cfg,
		path:    path,
		logger:  logger,
		logFile: logFile,
		client:  client,
		metrics: metrics,
		feed:    feed,
		console: c,
	}, nil
}

// start launches the metrics server, the log feed and, when a config file
// is in use, the config watcher. onReload receives each re-read config.
func (a *app) start(ctx context.Context, onReload func(*config.Config)) {
	if addr := a.cfg.Diagnostics.MetricsAddr; addr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, addr); err != nil {
				a.logger.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
	}

	a.feed.Start(ctx)

	if a.path == "" || onReload == nil {
		return
	}
	w, err := config.NewWatcher(a.path, onReload, a.logger)
	if err == nil {
		err = w.Start(ctx)
	}
	if err != nil {
		a.logger.Warn("config reload disabled", "path", a.path, "error", err)
		return
	}
	a.watcher = w
}

// stop shuts every service down and closes the diagnostic log.
func (a *app) stop() {
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("config watcher stop", "error", err)
		}
	}
	a.feed.Stop()
	a.logger.Info("guardctl stopped")
	_ = a.logFile.Close()
}
