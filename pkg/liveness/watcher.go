package liveness

import (
	"sync"
	"time"
)

// Watch starts a responsiveness watcher on the Monitor. The watcher wakes
// up every threshold and compares the current time against the most recent
// StopRequested call: when no checkpoint has been observed for longer than
// the threshold, the computation is considered unresponsive. The onChange
// callback is invoked only when the status flips, with the new status as
// argument.
//
// The watcher measures checkpoint frequency, not progress: a computation
// blocked on I/O outside a checkpoint also counts as unresponsive, so
// thresholds should be generous (hundreds of milliseconds or more) to
// avoid spurious reports.
//
// The returned stop function terminates the watcher goroutine; it is safe
// to call more than once.
func (m *Monitor) Watch(threshold time.Duration, onChange func(alive bool)) (stop func()) {
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(threshold)
		defer ticker.Stop()

		alive := true

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				last := time.Unix(0, m.lastCheck.Load())
				nowAlive := time.Since(last) <= threshold

				if nowAlive != alive {
					alive = nowAlive
					m.logger.Debug("responsiveness changed", "alive", alive)
					onChange(alive)
				}
			}
		}
	}()

	var once sync.Once

	return func() {
		once.Do(func() {
			close(done)
		})
	}
}
