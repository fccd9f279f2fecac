package executor

import (
	"errors"
	"fmt"
)

// ErrInvalidChunkSize is returned when the configured chunk size is not
// positive. This is a programming error and is never retried.
var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// ErrCancelled marks a deliberate early exit due to an observed stop
// request. It is expected and recoverable; callers may re-invoke the
// operation. Match with errors.Is and inspect details via errors.As on
// *CancelledError.
var ErrCancelled = errors.New("operation cancelled")

// CancelledError reports a cancelled digest session. It carries the cause
// (the name of the trigger that fired) and how many whole chunks were
// processed before the checkpoint observed the stop request. It never
// carries a partial digest.
type CancelledError struct {
	// Cause is the name of the trigger that requested the stop.
	Cause string

	// ChunksProcessed is the number of whole chunks folded into the
	// discarded accumulator before cancellation.
	ChunksProcessed int
}

// Error describes the cancellation including its cause.
func (e *CancelledError) Error() string {
	return fmt.Sprintf("operation cancelled (caused by %q) after %d chunks", e.Cause, e.ChunksProcessed)
}

// Unwrap makes errors.Is(err, ErrCancelled) hold for every CancelledError.
func (e *CancelledError) Unwrap() error {
	return ErrCancelled
}
