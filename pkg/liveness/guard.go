package liveness

import "sync"

// Guard is a scoped token for an active monitoring session. It is created
// by Monitor.Register and must be released exactly once on every exit path
// of the guarded scope, typically via defer. Release is idempotent, so an
// explicit early release followed by the deferred one is harmless.
type Guard struct {
	monitor *Monitor
	sess    *session
	once    sync.Once
}

// Release ends the session and clears its pending stop state. Calling
// Release again is a no-op.
func (g *Guard) Release() {
	g.once.Do(func() {
		g.monitor.current.CompareAndSwap(g.sess, nil)
		g.monitor.logger.Debug("liveness session released")
	})
}
