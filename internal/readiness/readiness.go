// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package readiness derives the system status that gates operator actions.
//
// Status is never set directly. It is recomputed from the current inputs
// after every event, so it cannot drift from connectivity or loading state.
package readiness

import "fmt"

// Status is the derived system readiness.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusReady        Status = "ready"
	StatusLoadingModel Status = "loading_model"
	StatusError        Status = "error"
)

// Label returns the status line text for the status.
func (s Status) Label() string {
	switch s {
	case StatusInitializing:
		return "Initializing"
	case StatusReady:
		return "Online"
	case StatusLoadingModel:
		return "Loading model"
	case StatusError:
		return "Offline"
	default:
		return string(s)
	}
}

// Inputs are the facts the status is derived from.
type Inputs struct {
	// Probed is true once the first connectivity probe has finished.
	Probed bool
	// Connected is the supervisor's reachability flag.
	Connected bool
	// ModelsLoading is true while a model list fetch is in flight.
	ModelsLoading bool
	// RulesLoading is true while the selected framework's switches are being
	// fetched. Chat would otherwise go out with an empty rule config.
	RulesLoading bool
	// Warming is true after the backend reported it is still loading a model.
	Warming bool
}

// Derive maps inputs to a status.
func Derive(in Inputs) Status {
	switch {
	case !in.Probed && !in.Connected:
		return StatusInitializing
	case !in.Connected:
		return StatusError
	case in.ModelsLoading || in.RulesLoading || in.Warming:
		return StatusLoadingModel
	default:
		return StatusReady
	}
}

// Action is an operator action that requires readiness.
type Action string

const (
	ActionSubmit     Action = "send messages"
	ActionToggleRule Action = "change rules"
)

// NotReadyError is returned when an action is attempted outside StatusReady.
type NotReadyError struct {
	Action Action
	Status Status
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Action, e.Status.Label())
}

// Machine holds the last derived status and reports transitions.
type Machine struct {
	status Status
}

// NewMachine starts in StatusInitializing.
func NewMachine() *Machine {
	return &Machine{status: StatusInitializing}
}

// Status returns the current status.
func (m *Machine) Status() Status {
	return m.status
}

// Update recomputes the status. changed reports a transition and prev is the
// status before it.
func (m *Machine) Update(in Inputs) (prev Status, changed bool) {
	prev = m.status
	m.status = Derive(in)
	return prev, prev != m.status
}

// Allow returns nil if action is permitted in the current status.
func (m *Machine) Allow(action Action) error {
	if m.status != StatusReady {
		return &NotReadyError{Action: action, Status: m.status}
	}
	return nil
}
