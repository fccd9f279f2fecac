package trigger

// chainName is the cause reported by a Chain with no stopped member.
const chainName = "chain"

// Chain combines several triggers into one: it is stopped as soon as any
// member is stopped. Members are checked innermost (most recently added)
// first, and Name resolves to the member that actually fired.
//
// A Chain is built before the computation starts and must not be mutated
// while Stopped is being polled.
type Chain struct {
	triggers []Trigger
}

// NewChain creates a Chain over the given triggers.
func NewChain(triggers ...Trigger) *Chain {
	return &Chain{triggers: triggers}
}

// Add appends a trigger to the chain. The new trigger becomes the
// innermost member.
func (c *Chain) Add(t Trigger) {
	c.triggers = append(c.triggers, t)
}

// Stopped returns true if any member trigger is stopped.
func (c *Chain) Stopped() bool {
	for i := len(c.triggers) - 1; i >= 0; i-- {
		if c.triggers[i].Stopped() {
			return true
		}
	}

	return false
}

// Name returns the name of the innermost stopped member, or "chain" when
// no member has fired yet.
func (c *Chain) Name() string {
	for i := len(c.triggers) - 1; i >= 0; i-- {
		if c.triggers[i].Stopped() {
			return c.triggers[i].Name()
		}
	}

	return chainName
}

// Flatten returns the cheapest trigger equivalent to this chain: Never for
// an empty chain, the sole member for a single-element chain, and a copy
// of the chain otherwise. Flattening avoids slice traversal on the hot
// path for the common zero- and one-trigger sessions.
func (c *Chain) Flatten() Trigger {
	switch len(c.triggers) {
	case 0:
		return Never{}
	case 1:
		return c.triggers[0]
	default:
		copied := make([]Trigger, len(c.triggers))
		copy(copied, c.triggers)

		return &Chain{triggers: copied}
	}
}
