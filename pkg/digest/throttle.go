package digest

import (
	"fmt"
	"time"
)

// Throttle wraps an engine so that every element costs at least delay of
// wall time. It exists for demonstrations: small buffers become slow enough
// that responsiveness differences between checked and unchecked execution
// are visible to a human. The digest itself is unchanged.
func Throttle(engine Engine, delay time.Duration) Engine {
	if delay <= 0 {
		return engine
	}

	return throttledEngine{inner: engine, delay: delay}
}

type throttledEngine struct {
	inner Engine
	delay time.Duration
}

func (e throttledEngine) Name() string {
	return fmt.Sprintf("%s (throttled)", e.inner.Name())
}

func (e throttledEngine) New() Accumulator {
	return &throttledAccumulator{inner: e.inner.New(), delay: e.delay}
}

type throttledAccumulator struct {
	inner Accumulator
	delay time.Duration
}

func (a *throttledAccumulator) Update(chunk []uint64) {
	for _, element := range chunk {
		a.inner.Update([]uint64{element})
		time.Sleep(a.delay)
	}
}

func (a *throttledAccumulator) Sum() uint64 {
	return a.inner.Sum()
}
