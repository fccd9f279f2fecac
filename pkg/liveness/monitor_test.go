package liveness_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemontus/cancel-this/pkg/liveness"
	"github.com/daemontus/cancel-this/pkg/trigger"
)

func TestMonitor_RegisterRelease(t *testing.T) {
	t.Parallel()

	monitor := liveness.NewMonitor()
	assert.False(t, monitor.Active())

	guard, err := monitor.Register()
	require.NoError(t, err)
	assert.True(t, monitor.Active())
	assert.False(t, monitor.StopRequested(), "fresh session should not be stopped")

	guard.Release()
	assert.False(t, monitor.Active())
}

func TestMonitor_RejectsNestedSessions(t *testing.T) {
	t.Parallel()

	monitor := liveness.NewMonitor()

	guard, err := monitor.Register()
	require.NoError(t, err)

	defer guard.Release()

	_, err = monitor.Register()
	require.ErrorIs(t, err, liveness.ErrAlreadyActive)
}

func TestMonitor_RequestStop(t *testing.T) {
	t.Parallel()

	monitor := liveness.NewMonitor()

	// Without a session, RequestStop is a no-op.
	monitor.RequestStop()

	guard, err := monitor.Register()
	require.NoError(t, err)

	defer guard.Release()

	assert.False(t, monitor.StopRequested())

	monitor.RequestStop()
	assert.True(t, monitor.StopRequested())
	assert.Equal(t, "flag", monitor.StopCause())

	// Idempotent.
	monitor.RequestStop()
	assert.True(t, monitor.StopRequested())
}

func TestMonitor_StopNotInheritedAcrossSessions(t *testing.T) {
	t.Parallel()

	monitor := liveness.NewMonitor()

	guard, err := monitor.Register()
	require.NoError(t, err)

	monitor.RequestStop()
	assert.True(t, monitor.StopRequested())
	guard.Release()

	// The unacknowledged stop request from the previous session must not
	// carry over into the next one.
	next, err := monitor.Register()
	require.NoError(t, err)

	defer next.Release()

	assert.False(t, monitor.StopRequested())
	assert.Equal(t, "unknown", monitor.StopCause())
}

func TestMonitor_AttachedTriggerStopsSession(t *testing.T) {
	t.Parallel()

	monitor := liveness.NewMonitor()
	flag := trigger.NewFlag()

	guard, err := monitor.Register(liveness.WithTrigger(flag))
	require.NoError(t, err)

	defer guard.Release()

	assert.False(t, monitor.StopRequested())

	flag.Stop()
	assert.True(t, monitor.StopRequested())
	assert.Equal(t, "flag", monitor.StopCause())
}

func TestGuard_ReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	monitor := liveness.NewMonitor()

	guard, err := monitor.Register()
	require.NoError(t, err)

	guard.Release()
	guard.Release()
	assert.False(t, monitor.Active())

	// A stale guard must not release a newer session.
	next, err := monitor.Register()
	require.NoError(t, err)

	guard.Release()
	assert.True(t, monitor.Active(), "stale guard must not end the new session")

	next.Release()
	assert.False(t, monitor.Active())
}

func TestMonitor_ConcurrentStopAndPoll(t *testing.T) {
	t.Parallel()

	monitor := liveness.NewMonitor()

	guard, err := monitor.Register()
	require.NoError(t, err)

	defer guard.Release()

	done := make(chan struct{})

	go func() {
		defer close(done)
		monitor.RequestStop()
	}()

	// Poll until the concurrent stop request becomes visible.
	assert.Eventually(t, monitor.StopRequested, time.Second, time.Microsecond)
	<-done
}

func TestMonitor_WatchReportsTransitions(t *testing.T) {
	t.Parallel()

	monitor := liveness.NewMonitor()

	guard, err := monitor.Register()
	require.NoError(t, err)

	defer guard.Release()

	var transitions atomic.Int64

	var lastStatus atomic.Bool

	lastStatus.Store(true)

	stop := monitor.Watch(20*time.Millisecond, func(alive bool) {
		transitions.Add(1)
		lastStatus.Store(alive)
	})
	defer stop()

	// No checkpoints: the watcher should flip to unresponsive.
	assert.Eventually(t, func() bool {
		return transitions.Load() >= 1 && !lastStatus.Load()
	}, time.Second, time.Millisecond, "watcher should report unresponsive")

	// Resume frequent checkpoints: the watcher should flip back.
	pollDone := make(chan struct{})

	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-pollDone:
				return
			case <-ticker.C:
				monitor.StopRequested()
			}
		}
	}()

	defer close(pollDone)

	assert.Eventually(t, func() bool {
		return transitions.Load() >= 2 && lastStatus.Load()
	}, time.Second, time.Millisecond, "watcher should report responsive again")

	// Stopping twice is safe.
	stop()
	stop()
}
