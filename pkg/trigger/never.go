package trigger

// neverName is the cause reported by the Never trigger.
const neverName = "never"

// Never is a trigger that never stops. It is the zero-cost baseline used
// when a session has no external stop sources attached.
type Never struct{}

// Stopped always returns false.
func (Never) Stopped() bool {
	return false
}

// Name returns the trigger kind.
func (Never) Name() string {
	return neverName
}
