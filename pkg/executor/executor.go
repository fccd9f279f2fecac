// Package executor runs digest computations over uint64 buffers, either as
// one unbroken pass or as a checkpointed chunk loop that polls a liveness
// monitor and cancels cooperatively.
//
// Cancellation is honored only at chunk boundaries: nothing preempts a
// chunk already in progress, so the worst-case cancellation latency is the
// processing time of one chunk. The chunk size trades that latency against
// per-chunk overhead.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/daemontus/cancel-this/internal/observability"
	"github.com/daemontus/cancel-this/pkg/digest"
	"github.com/daemontus/cancel-this/pkg/liveness"
	"github.com/daemontus/cancel-this/pkg/trigger"
)

// DefaultChunkSize is the number of elements per chunk when none is
// configured. At 256 elements a chunk digests in well under a millisecond
// on current hardware, keeping cancellation latency far below human
// perception while the checkpoint overhead stays negligible.
const DefaultChunkSize = 256

// tracerName is the fallback OTel tracer name for this package.
const tracerName = "cancel-this"

// Session mode attribute values.
const (
	modeChecked   = "checked"
	modeUnchecked = "unchecked"
)

// Executor drives a digest engine over caller-supplied buffers. The zero
// value is not usable; create instances with New.
type Executor struct {
	monitor      *liveness.Monitor
	engine       digest.Engine
	chunkSize    int
	registerOpts []liveness.RegisterOption

	tracer  trace.Tracer
	metrics *observability.SessionMetrics
	logger  *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor) error

// WithEngine selects the digest engine. Default is digest.Default().
func WithEngine(engine digest.Engine) Option {
	return func(e *Executor) error {
		e.engine = engine

		return nil
	}
}

// WithChunkSize sets the chunk size in elements. The value is validated by
// HashChecked, not here, so misconfiguration surfaces as ErrInvalidChunkSize
// at the call site.
func WithChunkSize(size int) Option {
	return func(e *Executor) error {
		e.chunkSize = size

		return nil
	}
}

// WithTriggers attaches external stop sources to every checked session the
// executor runs. The caller keeps ownership of the triggers.
func WithTriggers(triggers ...trigger.Trigger) Option {
	return func(e *Executor) error {
		for _, t := range triggers {
			e.registerOpts = append(e.registerOpts, liveness.WithTrigger(t))
		}

		return nil
	}
}

// WithTracer sets the OTel tracer for session spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) error {
		e.tracer = tracer

		return nil
	}
}

// WithMeter creates session metric instruments from the given meter.
func WithMeter(mt metric.Meter) Option {
	return func(e *Executor) error {
		sm, err := observability.NewSessionMetrics(mt)
		if err != nil {
			return fmt.Errorf("create session metrics: %w", err)
		}

		e.metrics = sm

		return nil
	}
}

// WithExecutorLogger sets the logger for session lifecycle events.
func WithExecutorLogger(logger *slog.Logger) Option {
	return func(e *Executor) error {
		e.logger = logger

		return nil
	}
}

// New creates an Executor bound to the given liveness monitor.
func New(monitor *liveness.Monitor, opts ...Option) (*Executor, error) {
	e := &Executor{
		monitor:   monitor,
		engine:    digest.Default(),
		chunkSize: DefaultChunkSize,
	}

	for _, opt := range opts {
		err := opt(e)
		if err != nil {
			return nil, err
		}
	}

	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}

	if e.metrics == nil {
		e.metrics = observability.NoopSessionMetrics()
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e, nil
}

// HashChecked digests the buffer in chunks, polling the liveness monitor
// before each chunk (including the first). An observed stop request aborts
// the session with a *CancelledError and discards the partial accumulator.
// On the completed path the result equals HashUnchecked for every chunk
// size, by engine associativity.
//
// The liveness guard is registered here and released on every exit path.
func (e *Executor) HashChecked(ctx context.Context, buf []uint64) (uint64, error) {
	if e.chunkSize <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidChunkSize, e.chunkSize)
	}

	guard, err := e.monitor.Register(e.registerOpts...)
	if err != nil {
		return 0, fmt.Errorf("register liveness session: %w", err)
	}

	defer guard.Release()

	ctx, span := e.tracer.Start(ctx, "digest.hash_checked", trace.WithAttributes(
		attribute.String("engine", e.engine.Name()),
		attribute.Int("chunk_size", e.chunkSize),
		attribute.Int("elements", len(buf)),
	))
	defer span.End()

	untrack := e.metrics.TrackInflight(ctx, modeChecked)
	defer untrack()

	start := time.Now()
	acc := e.engine.New()
	chunks := 0

	for offset := 0; offset < len(buf); offset += e.chunkSize {
		if e.monitor.StopRequested() {
			cancelled := &CancelledError{
				Cause:           e.monitor.StopCause(),
				ChunksProcessed: chunks,
			}

			span.SetStatus(codes.Error, cancelled.Error())
			e.metrics.AddChunks(ctx, modeChecked, int64(chunks))
			e.metrics.RecordSession(ctx, modeChecked, e.engine.Name(), observability.StatusCancelled, time.Since(start))
			e.logger.InfoContext(ctx, "digest session cancelled",
				"cause", cancelled.Cause, "chunks", chunks)

			return 0, cancelled
		}

		end := min(offset+e.chunkSize, len(buf))
		acc.Update(buf[offset:end])
		chunks++

		if fallible, ok := acc.(digest.Fallible); ok {
			updateErr := fallible.Err()
			if updateErr != nil {
				span.SetStatus(codes.Error, updateErr.Error())
				e.metrics.RecordSession(ctx, modeChecked, e.engine.Name(), observability.StatusError, time.Since(start))

				return 0, fmt.Errorf("digest update: %w", updateErr)
			}
		}
	}

	sum := acc.Sum()

	span.SetAttributes(attribute.Int("chunks", chunks))
	e.metrics.AddChunks(ctx, modeChecked, int64(chunks))
	e.metrics.RecordSession(ctx, modeChecked, e.engine.Name(), observability.StatusCompleted, time.Since(start))
	e.logger.DebugContext(ctx, "digest session completed", "chunks", chunks)

	return sum, nil
}

// HashUnchecked digests the buffer in one unbroken pass with no liveness
// monitor interaction. It always completes; the calling goroutine is fully
// occupied until it returns.
func (e *Executor) HashUnchecked(ctx context.Context, buf []uint64) uint64 {
	ctx, span := e.tracer.Start(ctx, "digest.hash_unchecked", trace.WithAttributes(
		attribute.String("engine", e.engine.Name()),
		attribute.Int("elements", len(buf)),
	))
	defer span.End()

	untrack := e.metrics.TrackInflight(ctx, modeUnchecked)
	defer untrack()

	start := time.Now()
	acc := e.engine.New()
	acc.Update(buf)
	sum := acc.Sum()

	e.metrics.RecordSession(ctx, modeUnchecked, e.engine.Name(), observability.StatusCompleted, time.Since(start))

	return sum
}
