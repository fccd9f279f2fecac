// Package trigger provides stop-request sources for cooperative cancellation.
//
// A Trigger answers a single question: has a stop been requested? Checkpoints
// in a chunked computation poll Stopped at high frequency, so implementations
// must be non-blocking and cheap. Triggers latch: once Stopped reports true,
// it reports true forever.
package trigger

// Trigger reports whether a stop request is pending.
type Trigger interface {
	// Stopped returns true once a stop has been requested. It must be
	// non-blocking and safe to call concurrently with the source of the
	// stop request. Once true, it stays true.
	Stopped() bool

	// Name identifies the trigger kind for cancellation cause reporting.
	// Composite triggers return the name of the member that actually fired.
	Name() string
}
