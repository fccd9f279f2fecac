package trigger

import (
	"os"
	"os/signal"
	"sync"
)

// signalName is the cause reported by a Signal trigger.
const signalName = "signal"

// signalBuffer sizes the notification channel; one pending delivery is
// enough because the trigger latches on the first signal.
const signalBuffer = 1

// Signal is a trigger that stops when the process receives one of the
// subscribed OS signals. It is the inbound path for host-level stop
// requests such as an interactive interrupt.
type Signal struct {
	flag *Flag
	ch   chan os.Signal
	done chan struct{}
	once sync.Once
}

// NotifySignal creates a Signal trigger subscribed to the given signals.
// When no signals are given, it subscribes to os.Interrupt.
func NotifySignal(signals ...os.Signal) *Signal {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt}
	}

	s := &Signal{
		flag: NewFlag(),
		ch:   make(chan os.Signal, signalBuffer),
		done: make(chan struct{}),
	}

	signal.Notify(s.ch, signals...)

	go func() {
		select {
		case <-s.ch:
			s.flag.Stop()
		case <-s.done:
		}
	}()

	return s
}

// Stopped returns true once a subscribed signal has been delivered.
func (s *Signal) Stopped() bool {
	return s.flag.Stopped()
}

// Name returns the trigger kind.
func (s *Signal) Name() string {
	return signalName
}

// Close unsubscribes from signal delivery and releases the watcher
// goroutine. Safe to call multiple times.
func (s *Signal) Close() {
	s.once.Do(func() {
		signal.Stop(s.ch)
		close(s.done)
	})
}
