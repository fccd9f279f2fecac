package trigger

import "sync/atomic"

// flagName is the cause reported by a Flag trigger.
const flagName = "flag"

// Flag is a manually stopped trigger backed by a single atomic bool.
// It is the cheapest trigger and the building block for the others:
// Stop may be called from any goroutine, concurrently with Stopped
// reads on the hot path.
type Flag struct {
	stopped atomic.Bool
}

// NewFlag creates a new, unstopped Flag.
func NewFlag() *Flag {
	return &Flag{}
}

// Stop requests a stop. It is idempotent; once stopped the flag
// cannot be reset.
func (f *Flag) Stop() {
	f.stopped.Store(true)
}

// Stopped returns true once Stop has been called.
func (f *Flag) Stopped() bool {
	return f.stopped.Load()
}

// Name returns the trigger kind.
func (f *Flag) Name() string {
	return flagName
}
