// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway provides the HTTP and WebSocket client for the guardrails
// backend.
//
// The client is deliberately thin: every call maps to one endpoint, returns a
// typed result or a *ClientError, and never retries. Retry policy, stale
// result handling and user-visible reporting belong to the callers.
//
// # Key Types
//
//   - Client: REST client for catalog, switches, chat and model pull calls
//   - ChatRequest / ChatResult: one moderated chat round trip
//   - Subscription: a live connection to the pipeline log feed
//   - ClientError: categorized failure (network, timeout, busy, unavailable)
//
// # Usage
//
//	client := gateway.NewClientWithConfig(&gateway.ClientConfig{
//	    BaseURL: "http://127.0.0.1:8000",
//	})
//	if _, err := client.HealthCheck(ctx); err != nil {
//	    return err
//	}
//	frameworks, err := client.Frameworks(ctx)
//
// Subscribing to the log feed:
//
//	sub, err := client.SubscribeLogs(ctx, func(ev gateway.LogEvent) {
//	    fmt.Println(ev.Step, ev.Details)
//	})
//	defer sub.Close()
//	<-sub.Done()
package gateway
