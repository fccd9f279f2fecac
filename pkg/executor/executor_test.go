package executor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemontus/cancel-this/pkg/digest"
	"github.com/daemontus/cancel-this/pkg/executor"
	"github.com/daemontus/cancel-this/pkg/liveness"
	"github.com/daemontus/cancel-this/pkg/trigger"
)

const (
	testTimeout = 5 * time.Second
	testTick    = time.Millisecond
)

// errFaultyEngine is the mid-stream failure injected by faultyEngine.
var errFaultyEngine = errors.New("engine exploded")

// faultyEngine fails on the first update, exercising the engine-error exit
// path of the checked executor.
type faultyEngine struct{}

func (faultyEngine) Name() string {
	return "faulty"
}

func (faultyEngine) New() digest.Accumulator {
	return &faultyAccumulator{}
}

type faultyAccumulator struct {
	err error
}

func (a *faultyAccumulator) Update([]uint64) {
	a.err = errFaultyEngine
}

func (a *faultyAccumulator) Sum() uint64 {
	return 0
}

func (a *faultyAccumulator) Err() error {
	return a.err
}

func sequence(n int) []uint64 {
	buf := make([]uint64, n)
	for i := range buf {
		buf[i] = uint64(i)
	}

	return buf
}

// observingEngine wraps a real engine and reports every whole-chunk update,
// so tests can count processed chunks and inject stop requests at exact
// chunk boundaries.
type observingEngine struct {
	inner      digest.Engine
	chunks     *int
	afterChunk func(completed int)
}

func (e *observingEngine) Name() string {
	return e.inner.Name()
}

func (e *observingEngine) New() digest.Accumulator {
	return &observingAccumulator{engine: e, inner: e.inner.New()}
}

type observingAccumulator struct {
	engine *observingEngine
	inner  digest.Accumulator
}

func (a *observingAccumulator) Update(chunk []uint64) {
	a.inner.Update(chunk)
	*a.engine.chunks++

	if a.engine.afterChunk != nil {
		a.engine.afterChunk(*a.engine.chunks)
	}
}

func (a *observingAccumulator) Sum() uint64 {
	return a.inner.Sum()
}

func TestHashChecked_MatchesUncheckedForAllChunkSizes(t *testing.T) {
	t.Parallel()

	buffers := [][]uint64{nil, sequence(1), sequence(100), sequence(4096)}
	chunkSizes := []int{1, 3, 7, 255, 256, 257, 4096, 10000}

	for _, buf := range buffers {
		for _, chunkSize := range chunkSizes {
			monitor := liveness.NewMonitor()

			exec, err := executor.New(monitor, executor.WithChunkSize(chunkSize))
			require.NoError(t, err)

			want := exec.HashUnchecked(context.Background(), buf)

			got, err := exec.HashChecked(context.Background(), buf)
			require.NoError(t, err, "len=%d chunk=%d", len(buf), chunkSize)
			assert.Equal(t, want, got, "len=%d chunk=%d", len(buf), chunkSize)
		}
	}
}

func TestHashChecked_StopBeforeFirstChunk(t *testing.T) {
	t.Parallel()

	flag := trigger.NewFlag()
	flag.Stop()

	chunks := 0
	monitor := liveness.NewMonitor()

	exec, err := executor.New(monitor,
		executor.WithEngine(&observingEngine{inner: digest.Default(), chunks: &chunks}),
		executor.WithTriggers(flag),
	)
	require.NoError(t, err)

	_, err = exec.HashChecked(context.Background(), sequence(4096))
	require.ErrorIs(t, err, executor.ErrCancelled)

	var cancelled *executor.CancelledError

	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, 0, cancelled.ChunksProcessed)
	assert.Equal(t, "flag", cancelled.Cause)
	assert.Zero(t, chunks, "no chunk may be processed with a pre-set stop")
}

func TestHashChecked_StopAfterChunkFive(t *testing.T) {
	t.Parallel()

	// The reference scenario: 4096 elements, chunk size 256 (16 chunks),
	// stop injected immediately after chunk 5 finishes.
	monitor := liveness.NewMonitor()
	chunks := 0
	engine := &observingEngine{
		inner:  digest.Default(),
		chunks: &chunks,
		afterChunk: func(completed int) {
			if completed == 5 {
				monitor.RequestStop()
			}
		},
	}

	exec, err := executor.New(monitor,
		executor.WithEngine(engine),
		executor.WithChunkSize(256),
	)
	require.NoError(t, err)

	_, err = exec.HashChecked(context.Background(), sequence(4096))
	require.ErrorIs(t, err, executor.ErrCancelled)

	var cancelled *executor.CancelledError

	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, 5, cancelled.ChunksProcessed)
	assert.Equal(t, 5, chunks, "chunk 6 must never be processed")
}

func TestHashChecked_EmptyBuffer(t *testing.T) {
	t.Parallel()

	chunks := 0
	monitor := liveness.NewMonitor()

	exec, err := executor.New(monitor,
		executor.WithEngine(&observingEngine{inner: digest.Default(), chunks: &chunks}),
	)
	require.NoError(t, err)

	unchecked := exec.HashUnchecked(context.Background(), nil)

	chunks = 0

	checked, err := exec.HashChecked(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, unchecked, checked)
	assert.Zero(t, chunks, "empty buffer digests in zero chunks")
}

func TestHashChecked_SingleChunkWithPresetStop(t *testing.T) {
	t.Parallel()

	// Chunk size equal to buffer length: the whole buffer is one chunk, so
	// cancellation latency spans the entire computation. A pre-set stop
	// must cancel before any work happens.
	buf := sequence(1024)
	flag := trigger.NewFlag()
	flag.Stop()

	chunks := 0
	monitor := liveness.NewMonitor()

	exec, err := executor.New(monitor,
		executor.WithEngine(&observingEngine{inner: digest.Default(), chunks: &chunks}),
		executor.WithChunkSize(len(buf)),
		executor.WithTriggers(flag),
	)
	require.NoError(t, err)

	_, err = exec.HashChecked(context.Background(), buf)
	require.ErrorIs(t, err, executor.ErrCancelled)
	assert.Zero(t, chunks)
}

func TestHashChecked_InvalidChunkSize(t *testing.T) {
	t.Parallel()

	for _, chunkSize := range []int{0, -1} {
		monitor := liveness.NewMonitor()

		exec, err := executor.New(monitor, executor.WithChunkSize(chunkSize))
		require.NoError(t, err)

		_, err = exec.HashChecked(context.Background(), sequence(10))
		require.ErrorIs(t, err, executor.ErrInvalidChunkSize, "chunk size %d", chunkSize)
		assert.False(t, monitor.Active(), "no session may be registered on invalid input")
	}
}

func TestHashChecked_AlreadyActiveSession(t *testing.T) {
	t.Parallel()

	monitor := liveness.NewMonitor()

	exec, err := executor.New(monitor)
	require.NoError(t, err)

	guard, err := monitor.Register()
	require.NoError(t, err)

	_, err = exec.HashChecked(context.Background(), sequence(10))
	require.ErrorIs(t, err, liveness.ErrAlreadyActive)

	// After the blocking session ends, the executor works again.
	guard.Release()

	_, err = exec.HashChecked(context.Background(), sequence(10))
	require.NoError(t, err)
}

func TestHashChecked_GuardReleasedOnEveryPath(t *testing.T) {
	t.Parallel()

	monitor := liveness.NewMonitor()

	exec, err := executor.New(monitor)
	require.NoError(t, err)

	// Completed path.
	_, err = exec.HashChecked(context.Background(), sequence(100))
	require.NoError(t, err)
	assert.False(t, monitor.Active())

	// Cancelled path.
	flag := trigger.NewFlag()
	flag.Stop()

	cancelledExec, err := executor.New(monitor, executor.WithTriggers(flag))
	require.NoError(t, err)

	_, err = cancelledExec.HashChecked(context.Background(), sequence(100))
	require.ErrorIs(t, err, executor.ErrCancelled)
	assert.False(t, monitor.Active())

	// Engine error path.
	faultyExec, err := executor.New(monitor, executor.WithEngine(faultyEngine{}))
	require.NoError(t, err)

	_, err = faultyExec.HashChecked(context.Background(), sequence(100))
	require.ErrorIs(t, err, errFaultyEngine)
	assert.False(t, monitor.Active())
}

func TestHashChecked_CancelCauseFromAttachedTrigger(t *testing.T) {
	t.Parallel()

	timer := trigger.StartTimer(0)
	defer timer.Close()

	// Wait for the zero-duration timer to latch.
	require.Eventually(t, timer.Stopped, testTimeout, testTick)

	monitor := liveness.NewMonitor()

	exec, err := executor.New(monitor, executor.WithTriggers(timer))
	require.NoError(t, err)

	_, err = exec.HashChecked(context.Background(), sequence(100))

	var cancelled *executor.CancelledError

	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, "timer", cancelled.Cause)
}

func TestHashUnchecked_IgnoresStopRequests(t *testing.T) {
	t.Parallel()

	flag := trigger.NewFlag()
	flag.Stop()

	monitor := liveness.NewMonitor()

	exec, err := executor.New(monitor, executor.WithTriggers(flag))
	require.NoError(t, err)

	// The unchecked runner never consults the monitor: a pending stop
	// request changes nothing.
	want := exec.HashUnchecked(context.Background(), sequence(512))

	plain, err := executor.New(liveness.NewMonitor())
	require.NoError(t, err)
	assert.Equal(t, plain.HashUnchecked(context.Background(), sequence(512)), want)
}

func TestHashChecked_Reinvocable(t *testing.T) {
	t.Parallel()

	// Cancellation is recoverable: after a cancelled session, a fresh
	// invocation without a stop request completes normally and does not
	// inherit the consumed stop request.
	monitor := liveness.NewMonitor()
	chunks := 0
	engine := &observingEngine{
		inner:  digest.Default(),
		chunks: &chunks,
		afterChunk: func(completed int) {
			if completed == 2 {
				monitor.RequestStop()
			}
		},
	}

	exec, err := executor.New(monitor,
		executor.WithEngine(engine),
		executor.WithChunkSize(256),
	)
	require.NoError(t, err)

	buf := sequence(4096)

	_, err = exec.HashChecked(context.Background(), buf)
	require.ErrorIs(t, err, executor.ErrCancelled)

	second, err := exec.HashChecked(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, exec.HashUnchecked(context.Background(), buf), second)
}
