// Package liveness tracks cancellation-monitoring sessions.
//
// A Monitor owns the stop-request state for one computation at a time.
// Callers bracket the computation with Register and Guard.Release, poll
// StopRequested at checkpoints, and deliver external stop requests with
// RequestStop or by attaching triggers at registration. The Monitor is an
// explicit handle, not process-global state: independent computations use
// independent Monitors and never interfere.
package liveness

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/daemontus/cancel-this/pkg/trigger"
)

// ErrAlreadyActive is returned by Register while another session is still
// registered on the same Monitor. Sessions do not nest.
var ErrAlreadyActive = errors.New("monitoring session already active")

// unknownCause is reported when the stop cause cannot be determined.
const unknownCause = "unknown"

// session is the per-registration state. A fresh session is installed on
// every Register, so stop requests never leak between sessions.
type session struct {
	// flag receives RequestStop calls.
	flag *trigger.Flag

	// probe is the flattened trigger chain polled by StopRequested:
	// the session flag plus any triggers attached at registration.
	probe trigger.Trigger
}

// Monitor holds the stop-request state for at most one active session.
// All methods are safe for concurrent use; StopRequested is a lock-free
// atomic read suitable for very high-frequency polling.
type Monitor struct {
	current atomic.Pointer[session]

	// lastCheck is the wall clock (unix nanoseconds) of the most recent
	// StopRequested call, read by the responsiveness watcher.
	lastCheck atomic.Int64

	logger *slog.Logger
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithLogger sets the logger used for session lifecycle events.
func WithLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// NewMonitor creates a Monitor with no active session.
func NewMonitor(opts ...MonitorOption) *Monitor {
	monitor := &Monitor{}
	for _, opt := range opts {
		opt(monitor)
	}

	if monitor.logger == nil {
		monitor.logger = slog.Default()
	}

	monitor.lastCheck.Store(time.Now().UnixNano())

	return monitor
}

// RegisterOption configures a session at registration time.
type RegisterOption func(*trigger.Chain)

// WithTrigger attaches an external stop source to the session. The session
// stops when the trigger stops, exactly as if RequestStop had been called.
// The caller keeps ownership of the trigger and closes it if needed.
func WithTrigger(t trigger.Trigger) RegisterOption {
	return func(chain *trigger.Chain) {
		chain.Add(t)
	}
}

// Register starts a new session and returns its Guard. It fails with
// ErrAlreadyActive while another session is registered. Any stop request
// left over from a previous session is discarded: a new session always
// starts unstopped.
func (m *Monitor) Register(opts ...RegisterOption) (*Guard, error) {
	flag := trigger.NewFlag()
	chain := trigger.NewChain(flag)

	for _, opt := range opts {
		opt(chain)
	}

	sess := &session{
		flag:  flag,
		probe: chain.Flatten(),
	}

	if !m.current.CompareAndSwap(nil, sess) {
		return nil, ErrAlreadyActive
	}

	m.lastCheck.Store(time.Now().UnixNano())
	m.logger.Debug("liveness session registered")

	return &Guard{monitor: m, sess: sess}, nil
}

// RequestStop asks the active session to stop at its next checkpoint.
// Idempotent and callable from any goroutine, including signal-originated
// paths. Without an active session it is a no-op.
func (m *Monitor) RequestStop() {
	sess := m.current.Load()
	if sess == nil {
		return
	}

	sess.flag.Stop()
	m.logger.Debug("stop requested")
}

// StopRequested reports whether a stop request is pending for the active
// session. It never blocks and performs no I/O beyond the triggers the
// session itself attached. Each call also timestamps the check for
// responsiveness watchers.
func (m *Monitor) StopRequested() bool {
	m.lastCheck.Store(time.Now().UnixNano())

	sess := m.current.Load()
	if sess == nil {
		return false
	}

	return sess.probe.Stopped()
}

// StopCause returns the name of the trigger that stopped the active
// session, or "unknown" when no session is active or nothing has fired.
func (m *Monitor) StopCause() string {
	sess := m.current.Load()
	if sess == nil || !sess.probe.Stopped() {
		return unknownCause
	}

	return sess.probe.Name()
}

// Active reports whether a session is currently registered.
func (m *Monitor) Active() bool {
	return m.current.Load() != nil
}
