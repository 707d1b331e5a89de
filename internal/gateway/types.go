// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import "strings"

// =============================================================================
// CATALOG TYPES
// =============================================================================

// Option is a selectable framework or provider.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Label returns the display name, falling back to the id.
func (o Option) Label() string {
	if o.Name != "" {
		return o.Name
	}
	return o.ID
}

// SwitchInfo describes one toggleable moderation rule of a framework.
type SwitchInfo struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Default     bool   `json:"default"`
	Description string `json:"description,omitempty"`
}

// modelsResponse is the body of GET /models/{provider}.
type modelsResponse struct {
	Models []string `json:"models"`
}

// =============================================================================
// CHAT TYPES
// =============================================================================

// ChatStatus is the outcome reported by the backend for a chat request.
type ChatStatus string

const (
	ChatSuccess ChatStatus = "success"
	ChatBlocked ChatStatus = "blocked"
	ChatLoading ChatStatus = "loading"
)

// ChatRequest is the request body for POST /chat.
type ChatRequest struct {
	Message     string          `json:"message"`
	Config      map[string]bool `json:"config"`
	FrameworkID string          `json:"framework_id"`
	ProviderID  string          `json:"provider_id"`
	ModelName   string          `json:"model_name"`
}

// ChatResult is a normalized chat response.
type ChatResult struct {
	Response      string
	Status        ChatStatus
	Violation     string
	Reason        string
	FrameworkUsed string
}

// IsBlocked reports whether the message was stopped by a moderation rule.
func (r ChatResult) IsBlocked() bool {
	return r.Status == ChatBlocked
}

// chatResponse accepts both the current and the legacy response shapes.
type chatResponse struct {
	Response  string `json:"response"`
	Status    string `json:"status"`
	Violation string `json:"violation"`
	Reason    string `json:"reason"`

	// Legacy fields
	Blocked       bool   `json:"blocked"`
	ViolationType string `json:"violation_type"`
	FrameworkUsed string `json:"framework_used"`
}

func (r chatResponse) normalize() ChatResult {
	result := ChatResult{
		Response:      r.Response,
		Status:        ChatStatus(strings.ToLower(strings.TrimSpace(r.Status))),
		Violation:     r.Violation,
		Reason:        r.Reason,
		FrameworkUsed: r.FrameworkUsed,
	}
	if result.Violation == "" {
		result.Violation = r.ViolationType
	}
	switch result.Status {
	case ChatSuccess, ChatBlocked, ChatLoading:
	default:
		if r.Blocked {
			result.Status = ChatBlocked
		} else {
			result.Status = ChatSuccess
		}
	}
	return result
}

// =============================================================================
// MODEL PULL
// =============================================================================

// PullRequest is the request body for POST /model/pull.
type PullRequest struct {
	ProviderID string `json:"provider_id"`
	ModelName  string `json:"model_name"`
}

// PullAck acknowledges a model download request.
type PullAck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Started reports whether the backend accepted the pull.
func (a PullAck) Started() bool {
	switch strings.ToLower(a.Status) {
	case "started", "ok", "accepted", "pulling":
		return true
	}
	return false
}

// =============================================================================
// LOG FEED
// =============================================================================

// LogMetrics carries optional resource figures attached to a pipeline event.
type LogMetrics struct {
	CPUPercent float64 `json:"cpu_percent"`
	GPUMemMB   float64 `json:"gpu_mem_mb"`
}

// LogEvent is one frame of the /ws/logs feed.
type LogEvent struct {
	Step      string      `json:"step"`
	Status    string      `json:"status,omitempty"`
	Severity  string      `json:"severity,omitempty"`
	Timestamp string      `json:"timestamp"`
	Details   string      `json:"details"`
	Latency   float64     `json:"latency,omitempty"`
	Metrics   *LogMetrics `json:"metrics,omitempty"`
	Blocked   bool        `json:"blocked,omitempty"`
}

// GPUInfo is the accelerator the backend reports with its health.
type GPUInfo struct {
	CUDAAvailable bool   `json:"cuda_available"`
	Name          string `json:"gpu_name"`
	Backend       string `json:"backend,omitempty"`
}

// Label returns the GPU name, or "CPU Only" without CUDA.
func (g GPUInfo) Label() string {
	if !g.CUDAAvailable {
		return "CPU Only"
	}
	if g.Name == "" {
		return "GPU"
	}
	return g.Name
}

// Health is the decoded answer of GET /health. GPU is nil when the backend
// does not report one (including the bare boolean form).
type Health struct {
	Status  string   `json:"status"`
	Backend string   `json:"backend,omitempty"`
	GPU     *GPUInfo `json:"gpu,omitempty"`
}

// errorResponse is the error body the backend returns on failures.
type errorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

func (e errorResponse) message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Error
}
