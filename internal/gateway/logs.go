// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// LogHandler receives each decoded log feed event, in arrival order, on the
// subscription's read goroutine.
type LogHandler func(LogEvent)

// Subscription is one live connection to the log feed.
// It does not reconnect; callers watch Done and subscribe again.
type Subscription struct {
	conn      *websocket.Conn
	done      chan struct{}
	err       error
	closing   atomic.Bool
	closeOnce sync.Once
	skipped   atomic.Int64
}

// SubscribeLogs dials the log feed and starts delivering events to onEvent.
func (c *Client) SubscribeLogs(ctx context.Context, onEvent LogHandler) (*Subscription, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.Timeout,
	}

	conn, resp, err := dialer.DialContext(ctx, c.config.LogsURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, &ClientError{Type: ErrTypeUnavailable, Message: "log feed handshake failed: " + resp.Status, Cause: err}
		}
		return nil, transportError(err)
	}

	sub := &Subscription{
		conn: conn,
		done: make(chan struct{}),
	}
	go sub.readLoop(onEvent)
	return sub, nil
}

func (s *Subscription) readLoop(onEvent LogHandler) {
	defer close(s.done)
	defer s.conn.Close()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closing.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.err = transportError(err)
			}
			return
		}

		var event LogEvent
		if err := json.Unmarshal(data, &event); err != nil {
			// Malformed frames are dropped; the feed stays up.
			s.skipped.Add(1)
			continue
		}
		onEvent(event)
	}
}

// Done is closed once the feed has ended for any reason.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns why the feed ended. It is nil after Close or a clean shutdown
// by the server, and only meaningful once Done is closed.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Skipped returns the number of frames that could not be decoded.
func (s *Subscription) Skipped() int64 {
	return s.skipped.Load()
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = s.conn.SetReadDeadline(deadline)
	})
	<-s.done
	return nil
}
