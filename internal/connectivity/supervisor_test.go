// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/guardrails-console/internal/gateway"
	"github.com/jeranaias/guardrails-console/internal/model"
)

type fakeProber struct {
	health       gateway.Health
	healthErr    error
	frameworkErr error
	providerErr  error
	healthCalls  atomic.Int32
}

func (f *fakeProber) HealthCheck(context.Context) (gateway.Health, error) {
	f.healthCalls.Add(1)
	return f.health, f.healthErr
}

func (f *fakeProber) Frameworks(context.Context) ([]gateway.Option, error) {
	if f.frameworkErr != nil {
		return nil, f.frameworkErr
	}
	return []gateway.Option{{ID: "nemo"}}, nil
}

func (f *fakeProber) Providers(context.Context) ([]gateway.Option, error) {
	if f.providerErr != nil {
		return nil, f.providerErr
	}
	return []gateway.Option{{ID: "ollama"}, {ID: "vllm"}}, nil
}

func newTestSupervisor(p Prober) (*Supervisor, *model.ActivityLog) {
	log := model.NewActivityLog(0)
	return NewSupervisor(p, log, nil, 0), log
}

func TestSupervisor_FirstProbeSucceeds(t *testing.T) {
	s, log := newTestSupervisor(&fakeProber{})
	assert.Equal(t, DefaultRetryInterval, s.Interval())

	cmd := s.Start()
	require.NotNil(t, cmd)
	assert.True(t, s.Probing())
	assert.Nil(t, s.Start(), "a second probe must not start while one is in flight")

	msg := cmd().(ProbeResultMsg)
	require.NoError(t, msg.Err)
	assert.Equal(t, []gateway.Option{{ID: "nemo"}}, msg.Frameworks)
	assert.Len(t, msg.Providers, 2)

	retry, ok := s.HandleProbe(msg)
	assert.True(t, ok)
	assert.Nil(t, retry)
	assert.True(t, s.Connected())
	assert.True(t, s.Probed())
	assert.False(t, s.Probing())
	require.Equal(t, 1, log.Len())
	assert.Equal(t, model.SeveritySuccess, log.Entries()[0].Severity)
}

func TestSupervisor_FailureSchedulesSingleRetry(t *testing.T) {
	p := &fakeProber{healthErr: gateway.ErrUnreachable}
	s, log := newTestSupervisor(p)

	retry, ok := s.HandleProbe(s.Start()().(ProbeResultMsg))
	assert.False(t, ok)
	require.NotNil(t, retry)
	assert.False(t, s.Connected())
	assert.True(t, s.Probed())
	assert.Equal(t, 1, s.Attempts())
	assert.True(t, gateway.IsNetwork(s.LastError()))
	assert.Equal(t, 1, log.Count(model.SeverityError))

	// Drop while a retry is pending must not schedule another timer.
	assert.Nil(t, s.Drop(errors.New("chat failed")))

	cmd := s.HandleTick(RetryTickMsg{})
	require.NotNil(t, cmd)
	p.healthErr = nil
	_, ok = s.HandleProbe(cmd().(ProbeResultMsg))
	assert.True(t, ok)
	assert.True(t, s.Connected())
	assert.Equal(t, 0, s.Attempts())
	assert.Equal(t, 1, log.Count(model.SeveritySuccess))
}

func TestSupervisor_ResourceFailureCountsAsFailure(t *testing.T) {
	s, _ := newTestSupervisor(&fakeProber{providerErr: errors.New("providers down")})

	msg := s.Start()().(ProbeResultMsg)
	require.Error(t, msg.Err)
	assert.Contains(t, msg.Err.Error(), "providers")

	_, ok := s.HandleProbe(msg)
	assert.False(t, ok)
	assert.False(t, s.Connected())
}

func TestSupervisor_RepeatedFailuresAreSummarized(t *testing.T) {
	s, log := newTestSupervisor(&fakeProber{healthErr: gateway.ErrUnreachable})

	cmd := s.Start()
	for i := 0; i < 25; i++ {
		retry, _ := s.HandleProbe(cmd().(ProbeResultMsg))
		require.NotNil(t, retry)
		cmd = s.HandleTick(RetryTickMsg{})
		require.NotNil(t, cmd)
	}

	assert.Equal(t, 1, log.Count(model.SeverityError))
	assert.Equal(t, 2, log.Count(model.SeverityWarning), "reminders at attempts 10 and 20")
}

func TestSupervisor_StaleProbeIgnored(t *testing.T) {
	s, _ := newTestSupervisor(&fakeProber{})
	_, ok := s.HandleProbe(ProbeResultMsg{Seq: 42})
	assert.False(t, ok)
	assert.False(t, s.Probed())
}

func TestSupervisor_DropWhileConnected(t *testing.T) {
	p := &fakeProber{}
	s, log := newTestSupervisor(p)
	s.HandleProbe(s.Start()().(ProbeResultMsg))
	require.True(t, s.Connected())

	retry := s.Drop(gateway.ErrUnreachable)
	require.NotNil(t, retry)
	assert.False(t, s.Connected())
	assert.Equal(t, 1, log.Count(model.SeverityWarning))

	assert.Nil(t, s.Drop(gateway.ErrUnreachable), "retry already scheduled")

	cmd := s.HandleTick(RetryTickMsg{})
	require.NotNil(t, cmd)
	_, ok := s.HandleProbe(cmd().(ProbeResultMsg))
	assert.True(t, ok)
	assert.True(t, s.Connected())
}

func TestSupervisor_TickWhileConnectedIsNoop(t *testing.T) {
	s, _ := newTestSupervisor(&fakeProber{})
	s.HandleProbe(s.Start()().(ProbeResultMsg))
	assert.Nil(t, s.HandleTick(RetryTickMsg{}))
}

func TestSupervisor_Warmup(t *testing.T) {
	p := &fakeProber{}
	s, log := newTestSupervisor(p)
	s.HandleProbe(s.Start()().(ProbeResultMsg))

	require.NotNil(t, s.MarkBusy())
	assert.True(t, s.Warming())
	assert.Nil(t, s.MarkBusy(), "warm-up poll already scheduled")

	p.healthErr = gateway.ErrBusy
	check := s.HandleWarmupTick(WarmupTickMsg{})
	require.NotNil(t, check)
	next := s.HandleWarmup(check().(WarmupResultMsg))
	require.NotNil(t, next, "still busy reschedules the poll")
	assert.True(t, s.Warming())

	p.healthErr = nil
	check = s.HandleWarmupTick(WarmupTickMsg{})
	require.NotNil(t, check)
	assert.Nil(t, s.HandleWarmup(check().(WarmupResultMsg)))
	assert.False(t, s.Warming())
	assert.Equal(t, 2, log.Count(model.SeveritySuccess))
}

func TestSupervisor_WarmupNetworkFailureDrops(t *testing.T) {
	p := &fakeProber{}
	s, _ := newTestSupervisor(p)
	s.HandleProbe(s.Start()().(ProbeResultMsg))
	s.MarkBusy()

	p.healthErr = gateway.ErrUnreachable
	check := s.HandleWarmupTick(WarmupTickMsg{})
	retry := s.HandleWarmup(check().(WarmupResultMsg))
	assert.NotNil(t, retry)
	assert.False(t, s.Connected())
	assert.False(t, s.Warming())
}

func TestSupervisor_BusyBackendIsWarmingNotDown(t *testing.T) {
	gpu := &gateway.GPUInfo{CUDAAvailable: true, Name: "A100"}
	p := &fakeProber{
		health:    gateway.Health{Status: "loading", GPU: gpu},
		healthErr: gateway.ErrBusy,
	}
	s, log := newTestSupervisor(p)

	retry, ok := s.HandleProbe(s.Start()().(ProbeResultMsg))
	assert.False(t, ok, "no catalog to resolve yet")
	require.NotNil(t, retry)
	assert.True(t, s.Probed())
	assert.True(t, s.Connected())
	assert.True(t, s.Warming())
	assert.True(t, s.CatalogPending())
	assert.NoError(t, s.LastError())
	assert.Equal(t, 0, s.Attempts())
	assert.Equal(t, gpu, s.Health().GPU)
	assert.Equal(t, 0, log.Count(model.SeverityError))
	assert.Equal(t, 1, log.Count(model.SeverityInfo))

	// The warm-up poll defers to the retry loop while the catalog is pending.
	s.MarkBusy()
	assert.Nil(t, s.HandleWarmupTick(WarmupTickMsg{}))

	// Still busy on the next attempt: no new entries.
	cmd := s.HandleTick(RetryTickMsg{})
	require.NotNil(t, cmd)
	retry, ok = s.HandleProbe(cmd().(ProbeResultMsg))
	assert.False(t, ok)
	require.NotNil(t, retry)
	assert.Equal(t, 2, log.Len())

	p.health = gateway.Health{Status: "ok", GPU: gpu}
	p.healthErr = nil
	cmd = s.HandleTick(RetryTickMsg{})
	require.NotNil(t, cmd)
	retry, ok = s.HandleProbe(cmd().(ProbeResultMsg))
	assert.True(t, ok)
	assert.Nil(t, retry)
	assert.True(t, s.Connected())
	assert.False(t, s.Warming())
	assert.False(t, s.CatalogPending())
	assert.Equal(t, 0, log.Count(model.SeverityError))
	assert.Equal(t, 2, log.Count(model.SeveritySuccess), "connected, then model ready")

	assert.Nil(t, s.HandleTick(RetryTickMsg{}))
}

func TestSupervisor_CustomInterval(t *testing.T) {
	s := NewSupervisor(&fakeProber{}, model.NewActivityLog(0), nil, 500*time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, s.Interval())
	assert.Equal(t, 60, s.reminderEvery())
}
