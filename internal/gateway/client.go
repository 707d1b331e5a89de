// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway provides the HTTP and WebSocket client for the guardrails backend.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the gateway client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNetwork
	ErrTypeTimeout
	ErrTypeUnavailable
	ErrTypeBusy
	ErrTypeInvalidResponse
)

// String returns the error category name used in logs.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeNetwork:
		return "network"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeUnavailable:
		return "unavailable"
	case ErrTypeBusy:
		return "busy"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking.
var (
	ErrUnreachable = &ClientError{Type: ErrTypeNetwork, Message: "backend is not reachable"}
	ErrTimeout     = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrBusy        = &ClientError{Type: ErrTypeBusy, Message: "backend is loading a model"}
	ErrUnhealthy   = &ClientError{Type: ErrTypeUnavailable, Message: "backend reported unhealthy"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the gateway client.
type ClientConfig struct {
	// BaseURL is the backend REST base URL (default: http://127.0.0.1:8000)
	BaseURL string

	// LogsURL is the log feed endpoint. Derived from BaseURL when empty.
	LogsURL string

	// Timeout bounds catalog, health and pull requests (default: 10s)
	Timeout time.Duration

	// ChatTimeout bounds a single chat round trip (default: 120s)
	ChatTimeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:     "http://127.0.0.1:8000",
		Timeout:     10 * time.Second,
		ChatTimeout: 120 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the guardrails backend.
//
// The Client is safe for concurrent use. It performs no retries.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a new gateway client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new gateway client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8000"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.ChatTimeout == 0 {
		config.ChatTimeout = 120 * time.Second
	}
	if config.LogsURL == "" {
		config.LogsURL = DeriveLogsURL(config.BaseURL)
	}

	return &Client{
		config: config,
		// Deadlines come from per-call contexts
		httpClient: &http.Client{},
	}
}

// DeriveLogsURL maps an http(s) base URL to its ws(s)://host/ws/logs feed.
func DeriveLogsURL(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return "ws://127.0.0.1:8000/ws/logs"
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/logs"
	u.RawQuery = ""
	return u.String()
}

// GetConfig returns the client configuration.
func (c *Client) GetConfig() *ClientConfig {
	return c.config
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// HealthCheck verifies the backend is reachable and reports itself live.
// The endpoint may answer with a bare boolean or with
// {"status": "ok", "gpu": {...}}. The decoded body is returned even when the
// status maps to an error.
func (c *Client) HealthCheck(ctx context.Context) (Health, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/health", &raw); err != nil {
		return Health{}, err
	}

	var alive bool
	if err := json.Unmarshal(raw, &alive); err == nil {
		if !alive {
			return Health{Status: "down"}, ErrUnhealthy
		}
		return Health{Status: "ok"}, nil
	}

	var health Health
	if err := json.Unmarshal(raw, &health); err != nil {
		return Health{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode health response", Cause: err}
	}
	switch strings.ToLower(health.Status) {
	case "ok", "healthy", "ready", "":
		return health, nil
	case "loading", "starting", "warming":
		return health, ErrBusy
	default:
		return health, &ClientError{Type: ErrTypeUnavailable, Message: "backend status " + health.Status}
	}
}

// =============================================================================
// CATALOG OPERATIONS
// =============================================================================

// Frameworks lists the moderation frameworks the backend offers.
func (c *Client) Frameworks(ctx context.Context) ([]Option, error) {
	return c.listOptions(ctx, "/frameworks", "frameworks")
}

// Providers lists the inference providers the backend offers.
func (c *Client) Providers(ctx context.Context) ([]Option, error) {
	return c.listOptions(ctx, "/providers", "providers")
}

// Models lists the models available from one provider.
func (c *Client) Models(ctx context.Context, providerID string) ([]string, error) {
	var result modelsResponse
	if err := c.getJSON(ctx, "/models/"+url.PathEscape(providerID), &result); err != nil {
		return nil, err
	}
	if result.Models == nil {
		return []string{}, nil
	}
	return result.Models, nil
}

// Switches lists the rule switches declared by one framework.
func (c *Client) Switches(ctx context.Context, frameworkID string) ([]SwitchInfo, error) {
	var result []SwitchInfo
	path := "/config/switches?framework_id=" + url.QueryEscape(frameworkID)
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return []SwitchInfo{}, nil
	}
	return result, nil
}

// listOptions decodes either a bare list or a {"<key>": [...]} envelope.
func (c *Client) listOptions(ctx context.Context, path, envelope string) ([]Option, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}

	var list []Option
	if err := json.Unmarshal(raw, &list); err == nil {
		return nonNil(list), nil
	}

	var wrapped map[string][]Option
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode " + envelope, Cause: err}
	}
	return nonNil(wrapped[envelope]), nil
}

func nonNil(options []Option) []Option {
	if options == nil {
		return []Option{}
	}
	return options
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// SendChat sends one message through the moderation pipeline.
// A 503 answer yields ErrBusy; a body with status "loading" is returned as-is.
func (c *Client) SendChat(ctx context.Context, requestID string, chat ChatRequest) (ChatResult, error) {
	if chat.Config == nil {
		chat.Config = map[string]bool{}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.ChatTimeout)
	defer cancel()

	var result chatResponse
	header := http.Header{}
	if requestID != "" {
		header.Set("X-Request-ID", requestID)
	}
	if err := c.doJSON(ctx, http.MethodPost, "/chat", header, chat, &result); err != nil {
		return ChatResult{}, err
	}
	return result.normalize(), nil
}

// RequestModelPull asks the backend to download a model for a provider.
func (c *Client) RequestModelPull(ctx context.Context, providerID, modelName string) (PullAck, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var ack PullAck
	body := PullRequest{ProviderID: providerID, ModelName: modelName}
	if err := c.doJSON(ctx, http.MethodPost, "/model/pull", nil, body, &ack); err != nil {
		return PullAck{}, err
	}
	return ack, nil
}

// =============================================================================
// TRANSPORT HELPERS
// =============================================================================

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	return c.doJSON(ctx, http.MethodGet, path, nil, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, header http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return &ClientError{Type: ErrTypeNetwork, Message: "failed to create request", Cause: err}
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return statusError(method+" "+path, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: ErrTimeout.Message, Cause: err}
	}
	return &ClientError{Type: ErrTypeNetwork, Message: ErrUnreachable.Message, Cause: err}
}

func statusError(op string, resp *http.Response) error {
	var backendErr errorResponse
	msg := op + " failed: " + resp.Status
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&backendErr); err == nil && backendErr.message() != "" {
		msg = op + " failed: " + backendErr.message()
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		return &ClientError{Type: ErrTypeBusy, Message: msg}
	}
	return &ClientError{Type: ErrTypeUnavailable, Message: msg}
}

// Helper to drain response body
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, r)
	r.Close()
}

// =============================================================================
// ERROR PREDICATES
// =============================================================================

func errorType(err error) ErrorType {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type
	}
	return ErrTypeUnknown
}

// IsNetwork reports whether err means the backend could not be reached,
// including timeouts.
func IsNetwork(err error) bool {
	t := errorType(err)
	return t == ErrTypeNetwork || t == ErrTypeTimeout
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return errorType(err) == ErrTypeTimeout
}

// IsBusy checks if the backend is still warming a model.
func IsBusy(err error) bool {
	return errorType(err) == ErrTypeBusy
}

// IsUnavailable checks if the backend answered with a failure status.
func IsUnavailable(err error) bool {
	return errorType(err) == ErrTypeUnavailable
}

// Kind returns the category name of err for logging.
func Kind(err error) string {
	return errorType(err).String()
}
