package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
)

const (
	metricSessionsTotal   = "cancelthis.sessions.total"
	metricChunksTotal     = "cancelthis.chunks.total"
	metricSessionDuration = "cancelthis.session.duration.seconds"
	metricInflight        = "cancelthis.inflight.sessions"

	attrMode   = "mode"
	attrEngine = "engine"
	attrStatus = "status"
)

// Session status attribute values.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusError     = "error"
)

// durationBucketBoundaries covers 1ms to 600s: chunk loops range from
// near-instant digests to deliberately throttled demo runs.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// SessionMetrics holds the OTel instruments for digest session telemetry.
type SessionMetrics struct {
	sessionsTotal   metric.Int64Counter
	chunksTotal     metric.Int64Counter
	sessionDuration metric.Float64Histogram
	inflight        metric.Int64UpDownCounter
}

// NewSessionMetrics creates session instruments from the given meter.
func NewSessionMetrics(mt metric.Meter) (*SessionMetrics, error) {
	sessions, err := mt.Int64Counter(metricSessionsTotal,
		metric.WithDescription("Total number of digest sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSessionsTotal, err)
	}

	chunks, err := mt.Int64Counter(metricChunksTotal,
		metric.WithDescription("Total number of chunks processed"),
		metric.WithUnit("{chunk}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricChunksTotal, err)
	}

	duration, err := mt.Float64Histogram(metricSessionDuration,
		metric.WithDescription("Digest session duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSessionDuration, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflight,
		metric.WithDescription("Number of in-flight digest sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflight, err)
	}

	return &SessionMetrics{
		sessionsTotal:   sessions,
		chunksTotal:     chunks,
		sessionDuration: duration,
		inflight:        inflight,
	}, nil
}

// NoopSessionMetrics creates instruments backed by the no-op meter, for
// callers that did not configure telemetry.
func NoopSessionMetrics() *SessionMetrics {
	// The no-op meter never fails to create instruments.
	sm, _ := NewSessionMetrics(noopmetric.NewMeterProvider().Meter(meterName))

	return sm
}

// RecordSession records a finished session with its mode, engine, terminal
// status, and duration.
func (sm *SessionMetrics) RecordSession(ctx context.Context, mode, engine, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrMode, mode),
		attribute.String(attrEngine, engine),
		attribute.String(attrStatus, status),
	)

	sm.sessionsTotal.Add(ctx, 1, attrs)
	sm.sessionDuration.Record(ctx, duration.Seconds(), attrs)
}

// AddChunks counts processed chunks for the given mode.
func (sm *SessionMetrics) AddChunks(ctx context.Context, mode string, count int64) {
	sm.chunksTotal.Add(ctx, count, metric.WithAttributes(attribute.String(attrMode, mode)))
}

// TrackInflight increments the in-flight gauge and returns a function to
// decrement it.
func (sm *SessionMetrics) TrackInflight(ctx context.Context, mode string) func() {
	attrs := metric.WithAttributes(attribute.String(attrMode, mode))
	sm.inflight.Add(ctx, 1, attrs)

	return func() {
		sm.inflight.Add(ctx, -1, attrs)
	}
}
