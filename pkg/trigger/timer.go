package trigger

import (
	"sync"
	"time"
)

// timerName is the cause reported by a Timer trigger.
const timerName = "timer"

// Timer is a trigger that stops once a duration has elapsed. The countdown
// starts immediately when the timer is created. Close releases the timer
// goroutine early; it is safe to call Close multiple times and after the
// timer has fired.
type Timer struct {
	flag *Flag
	done chan struct{}
	once sync.Once
}

// StartTimer creates a Timer that stops after d has elapsed.
func StartTimer(d time.Duration) *Timer {
	t := &Timer{
		flag: NewFlag(),
		done: make(chan struct{}),
	}

	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
			t.flag.Stop()
		case <-t.done:
		}
	}()

	return t
}

// Stopped returns true once the duration has elapsed.
func (t *Timer) Stopped() bool {
	return t.flag.Stopped()
}

// Name returns the trigger kind.
func (t *Timer) Name() string {
	return timerName
}

// Close releases the timer goroutine. A closed timer keeps its current
// stopped state but will never fire afterwards.
func (t *Timer) Close() {
	t.once.Do(func() {
		close(t.done)
	})
}
