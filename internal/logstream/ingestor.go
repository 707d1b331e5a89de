// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logstream ingests the backend's pipeline log feed.
//
// The Ingestor runs its own goroutine: subscribe, wait for the feed to end,
// pause for the reconnect delay, subscribe again, until stopped. Events are
// handed to the event loop in arrival order through Listen, which must be
// re-armed after every message. Nothing here waits on chat or resource
// traffic, and nothing there waits on the feed.
package logstream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jeranaias/guardrails-console/internal/gateway"
)

// DefaultReconnectDelay is the pause between a feed ending and the next
// subscription attempt.
const DefaultReconnectDelay = 2 * time.Second

// Feed is one live subscription.
type Feed interface {
	Done() <-chan struct{}
	Err() error
	Close() error
}

// SubscribeFunc opens a feed that calls onEvent for every event, in order.
type SubscribeFunc func(ctx context.Context, onEvent gateway.LogHandler) (Feed, error)

// FromClient adapts a gateway client to a SubscribeFunc.
func FromClient(c *gateway.Client) SubscribeFunc {
	return func(ctx context.Context, onEvent gateway.LogHandler) (Feed, error) {
		sub, err := c.SubscribeLogs(ctx, onEvent)
		if err != nil {
			return nil, err
		}
		return sub, nil
	}
}

// =============================================================================
// MESSAGES
// =============================================================================

// EventMsg delivers one feed event to the event loop.
type EventMsg struct {
	Event gateway.LogEvent
}

// StateMsg reports that the feed came up or went down.
type StateMsg struct {
	Connected bool
	Err       error
}

// =============================================================================
// INGESTOR
// =============================================================================

// Ingestor maintains the log feed subscription.
type Ingestor struct {
	subscribe SubscribeFunc
	delay     time.Duration
	logger    *slog.Logger

	out     chan tea.Msg
	stopped chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	dialNotice rate.Sometimes
}

// New creates an ingestor. delay <= 0 selects DefaultReconnectDelay.
func New(subscribe SubscribeFunc, delay time.Duration, logger *slog.Logger) *Ingestor {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ingestor{
		subscribe:  subscribe,
		delay:      delay,
		logger:     logger.With("component", "logstream"),
		out:        make(chan tea.Msg, 256),
		stopped:    make(chan struct{}),
		dialNotice: rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
}

// Start launches the subscription loop. Calling Start twice has no effect.
func (i *Ingestor) Start(ctx context.Context) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cancel != nil {
		return
	}
	ctx, i.cancel = context.WithCancel(ctx)
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.run(ctx)
	}()
}

// Stop ends the loop, closes any open feed and waits for shutdown.
func (i *Ingestor) Stop() {
	i.mu.Lock()
	cancel := i.cancel
	i.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	i.wg.Wait()

	i.mu.Lock()
	defer i.mu.Unlock()
	select {
	case <-i.stopped:
	default:
		close(i.stopped)
	}
}

// Listen returns a command that waits for the next feed message. Re-issue it
// after handling each EventMsg or StateMsg.
func (i *Ingestor) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-i.out:
			return msg
		case <-i.stopped:
			return nil
		}
	}
}

func (i *Ingestor) run(ctx context.Context) {
	for {
		feed, err := i.subscribe(ctx, func(ev gateway.LogEvent) {
			i.emit(ctx, EventMsg{Event: ev})
		})

		if err == nil {
			i.logger.Info("log feed connected")
			i.emit(ctx, StateMsg{Connected: true})

			select {
			case <-feed.Done():
			case <-ctx.Done():
				_ = feed.Close()
				return
			}

			err = feed.Err()
			i.logger.Info("log feed ended", "error", err)
			i.emit(ctx, StateMsg{Connected: false, Err: err})
		} else {
			i.dialNotice.Do(func() {
				i.logger.Warn("log feed unavailable", "kind", gateway.Kind(err), "error", err)
			})
		}

		select {
		case <-time.After(i.delay):
		case <-ctx.Done():
			return
		}
	}
}

// emit blocks until the event loop takes msg, keeping arrival order. It gives
// up only on shutdown.
func (i *Ingestor) emit(ctx context.Context, msg tea.Msg) {
	select {
	case i.out <- msg:
	case <-ctx.Done():
	}
}
