// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/guardrails-console/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete guardctl configuration.
type Config struct {
	Backend      BackendConfig      `toml:"backend" json:"backend" yaml:"backend"`
	Connectivity ConnectivityConfig `toml:"connectivity" json:"connectivity" yaml:"connectivity"`
	Session      SessionConfig      `toml:"session" json:"session" yaml:"session"`
	UI           UIConfig           `toml:"ui" json:"ui" yaml:"ui"`
	Diagnostics  DiagnosticsConfig  `toml:"diagnostics" json:"diagnostics" yaml:"diagnostics"`
}

// BackendConfig locates the moderation backend.
type BackendConfig struct {
	// URL is the REST base URL
	URL string `toml:"url" json:"url" yaml:"url"`
	// LogsURL is the log feed WebSocket URL; derived from URL when empty
	LogsURL string `toml:"logs_url" json:"logs_url" yaml:"logs_url"`
	// RequestTimeoutSecs bounds health, catalog and pull requests
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs" yaml:"request_timeout_secs"`
	// ChatTimeoutSecs bounds one chat round trip
	ChatTimeoutSecs int `toml:"chat_timeout_secs" json:"chat_timeout_secs" yaml:"chat_timeout_secs"`
}

// ConnectivityConfig controls the retry loops.
type ConnectivityConfig struct {
	RetryIntervalMs int `toml:"retry_interval_ms" json:"retry_interval_ms" yaml:"retry_interval_ms"`
	LogReconnectMs  int `toml:"log_reconnect_ms" json:"log_reconnect_ms" yaml:"log_reconnect_ms"`
}

// SessionConfig holds the initial selections. Empty means first available.
type SessionConfig struct {
	DefaultFramework string `toml:"default_framework" json:"default_framework" yaml:"default_framework"`
	DefaultProvider  string `toml:"default_provider" json:"default_provider" yaml:"default_provider"`
	DefaultModel     string `toml:"default_model" json:"default_model" yaml:"default_model"`
}

// UIConfig contains UI configuration. It is the only section applied live.
type UIConfig struct {
	// Theme is "dark", "light" or "auto"
	Theme string `toml:"theme" json:"theme" yaml:"theme"`
	// MaxLogEntries caps the activity log; 0 keeps everything
	MaxLogEntries int `toml:"max_log_entries" json:"max_log_entries" yaml:"max_log_entries"`
	// RenderMarkdown renders AI replies with glamour
	RenderMarkdown bool `toml:"render_markdown" json:"render_markdown" yaml:"render_markdown"`
}

// DiagnosticsConfig controls the diagnostic log and metrics endpoint.
type DiagnosticsConfig struct {
	// LogFile defaults to ~/.guardctl/guardctl.log
	LogFile  string `toml:"log_file" json:"log_file" yaml:"log_file"`
	LogLevel string `toml:"log_level" json:"log_level" yaml:"log_level"`
	// MetricsAddr enables the Prometheus endpoint when set (host:port)
	MetricsAddr string `toml:"metrics_addr" json:"metrics_addr" yaml:"metrics_addr"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:                "http://127.0.0.1:8000",
			RequestTimeoutSecs: 10,
			ChatTimeoutSecs:    120,
		},
		Connectivity: ConnectivityConfig{
			RetryIntervalMs: 3000,
			LogReconnectMs:  2000,
		},
		UI: UIConfig{
			Theme:          "dark",
			RenderMarkdown: true,
		},
		Diagnostics: DiagnosticsConfig{
			LogLevel: "info",
		},
	}
}

// RetryInterval returns the connectivity retry interval.
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.Connectivity.RetryIntervalMs) * time.Millisecond
}

// LogReconnectDelay returns the pause before re-subscribing to the log feed.
func (c *Config) LogReconnectDelay() time.Duration {
	return time.Duration(c.Connectivity.LogReconnectMs) * time.Millisecond
}

// RequestTimeout returns the timeout for short backend requests.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.RequestTimeoutSecs) * time.Second
}

// ChatTimeout returns the timeout for one chat round trip.
func (c *Config) ChatTimeout() time.Duration {
	return time.Duration(c.Backend.ChatTimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the guardctl configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".guardctl"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	return configPath("config.toml")
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	return configPath("config.json")
}

// ConfigPathYAML returns the path to the YAML config file.
func ConfigPathYAML() (string, error) {
	return configPath("config.yaml")
}

func configPath(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// DefaultLogFile returns ~/.guardctl/guardctl.log.
func DefaultLogFile() string {
	path, err := configPath("guardctl.log")
	if err != nil {
		return filepath.Join(os.TempDir(), "guardctl.log")
	}
	return path
}

// Find returns the first existing config file, in TOML, JSON, YAML order, or
// "" when there is none.
func Find() string {
	for _, fn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON, ConfigPathYAML} {
		path, err := fn()
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads the first config file found by Find, or the defaults when there
// is none. .env files and environment overrides are applied last.
func Load() (*Config, error) {
	if path := Find(); path != "" {
		return LoadFromPath(path)
	}
	cfg := Default()
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file. The format is chosen
// by extension; anything other than .json, .yaml or .yml is read as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(cfg, path); err != nil {
		return nil, err
	}
	if err := finish(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func decodeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode JSON config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode YAML config %s: %w", path, err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to decode TOML config %s: %w", path, err)
		}
	}
	return nil
}

func finish(cfg *Config) error {
	LoadDotEnv()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadDotEnv loads .env from the working directory and the config directory.
// Variables already set in the environment win.
func LoadDotEnv() {
	files := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		files = append(files, filepath.Join(dir, ".env"))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Backend.URL == "" {
		c.Backend.URL = defaults.Backend.URL
	}
	c.Backend.URL = strings.TrimRight(c.Backend.URL, "/")
	if c.Backend.RequestTimeoutSecs == 0 {
		c.Backend.RequestTimeoutSecs = defaults.Backend.RequestTimeoutSecs
	}
	if c.Backend.ChatTimeoutSecs == 0 {
		c.Backend.ChatTimeoutSecs = defaults.Backend.ChatTimeoutSecs
	}
	if c.Connectivity.RetryIntervalMs == 0 {
		c.Connectivity.RetryIntervalMs = defaults.Connectivity.RetryIntervalMs
	}
	if c.Connectivity.LogReconnectMs == 0 {
		c.Connectivity.LogReconnectMs = defaults.Connectivity.LogReconnectMs
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.Diagnostics.LogLevel == "" {
		c.Diagnostics.LogLevel = defaults.Diagnostics.LogLevel
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# guardctl configuration file")
	fmt.Fprintln(&buf, "# Environment variables GUARDCTL_* override these values.")
	fmt.Fprintln(&buf)

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0o600, 0o700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validThemes    = map[string]bool{"dark": true, "light": true, "auto": true}
	validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
)

// Validate validates the configuration and returns ValidateErrors if any
// field is out of range.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if err := validateURL(c.Backend.URL, "http", "https"); err != nil {
		add("backend.url", "%v", err)
	}
	if c.Backend.LogsURL != "" {
		if err := validateURL(c.Backend.LogsURL, "ws", "wss"); err != nil {
			add("backend.logs_url", "%v", err)
		}
	}
	if c.Backend.RequestTimeoutSecs < 1 || c.Backend.RequestTimeoutSecs > 300 {
		add("backend.request_timeout_secs", "must be between 1 and 300, got %d", c.Backend.RequestTimeoutSecs)
	}
	if c.Backend.ChatTimeoutSecs < 1 || c.Backend.ChatTimeoutSecs > 3600 {
		add("backend.chat_timeout_secs", "must be between 1 and 3600, got %d", c.Backend.ChatTimeoutSecs)
	}

	if c.Connectivity.RetryIntervalMs < 100 || c.Connectivity.RetryIntervalMs > 600000 {
		add("connectivity.retry_interval_ms", "must be between 100 and 600000, got %d", c.Connectivity.RetryIntervalMs)
	}
	if c.Connectivity.LogReconnectMs < 100 || c.Connectivity.LogReconnectMs > 600000 {
		add("connectivity.log_reconnect_ms", "must be between 100 and 600000, got %d", c.Connectivity.LogReconnectMs)
	}

	if !validThemes[strings.ToLower(c.UI.Theme)] {
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
	}
	if c.UI.MaxLogEntries < 0 {
		add("ui.max_log_entries", "must not be negative, got %d", c.UI.MaxLogEntries)
	}

	if !validLogLevels[strings.ToLower(c.Diagnostics.LogLevel)] {
		add("diagnostics.log_level", "invalid level '%s', must be one of: debug, info, warn, error", c.Diagnostics.LogLevel)
	}
	if c.Diagnostics.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.Diagnostics.MetricsAddr); err != nil {
			add("diagnostics.metrics_addr", "must be host:port: %v", err)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return errors.New("missing host")
			}
			return nil
		}
	}
	return fmt.Errorf("scheme must be one of %s, got %q", strings.Join(schemes, ", "), u.Scheme)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - GUARDCTL_BACKEND_URL: backend.url
//   - GUARDCTL_LOGS_URL: backend.logs_url
//   - GUARDCTL_FRAMEWORK, GUARDCTL_PROVIDER, GUARDCTL_MODEL: session defaults
//   - GUARDCTL_LOG_LEVEL: diagnostics.log_level
//   - GUARDCTL_METRICS_ADDR: diagnostics.metrics_addr
func (c *Config) ApplyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"GUARDCTL_BACKEND_URL", &c.Backend.URL},
		{"GUARDCTL_LOGS_URL", &c.Backend.LogsURL},
		{"GUARDCTL_FRAMEWORK", &c.Session.DefaultFramework},
		{"GUARDCTL_PROVIDER", &c.Session.DefaultProvider},
		{"GUARDCTL_MODEL", &c.Session.DefaultModel},
		{"GUARDCTL_LOG_LEVEL", &c.Diagnostics.LogLevel},
		{"GUARDCTL_METRICS_ADDR", &c.Diagnostics.MetricsAddr},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by its file key, e.g. "backend.url".
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by its file key, converting strings as needed.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return reflect.Value{}, fmt.Errorf("invalid key %q, expected section.name", key)
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	if v.Kind() == reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%s is a section", key)
	}
	return v, nil
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from a value with string conversion.
func setFieldValue(field reflect.Value, value any) error {
	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(s)
			return nil
		case reflect.Int:
			n, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(int64(n))
			return nil
		case reflect.Bool:
			b, err := strconv.ParseBool(s)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(b)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.IsValid() && val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every settable key in dot notation.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, section.Tag.Get("toml")+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders the config as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	_ = toml.NewEncoder(&buf).Encode(c)
	return buf.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process configuration, loading it on first access.
// A load error falls back to the defaults.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process configuration. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
