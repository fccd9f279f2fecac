// Package digest computes incremental digests over ordered uint64 sequences.
//
// Engines are pure and deterministic, and their accumulators are associative
// across chunk boundaries: folding Update over any contiguous partition of a
// buffer, in order, finalizes to the same digest as a single Update over the
// whole buffer. That property is what lets a checkpointed executor split the
// buffer into chunks without changing the completed-path result.
//
// Elements are serialized little-endian, 8 bytes each, into the underlying
// hash stream. None of the engines are cryptographic.
package digest

import (
	"errors"
	"fmt"
)

// Engine is a digest algorithm. Engines are stateless; all mutable state
// lives in the accumulators they create.
type Engine interface {
	// Name identifies the algorithm, e.g. "xxh64".
	Name() string

	// New creates a fresh accumulator positioned at the digest of the
	// empty sequence.
	New() Accumulator
}

// Accumulator is the intermediate state of one digest computation. It must
// not be shared between goroutines.
type Accumulator interface {
	// Update folds a chunk of elements into the state, in order.
	Update(chunk []uint64)

	// Sum returns the digest of everything folded in so far. It is a
	// read-only operation: calling it repeatedly yields the same value,
	// and a later Update continues the stream as if Sum was never called.
	Sum() uint64
}

// Fallible is implemented by accumulators that can fail mid-stream. The
// engines built into this package never fail, but executors check the
// interface after every update so custom engines can abort a session.
type Fallible interface {
	Accumulator

	// Err returns the first error encountered by Update, or nil.
	Err() error
}

// ErrUnknownEngine is returned by ByName for an unrecognized algorithm name.
var ErrUnknownEngine = errors.New("unknown digest engine")

// ByName resolves an engine from its configured name.
func ByName(name string) (Engine, error) {
	switch name {
	case xxh64Name:
		return XXH64{}, nil
	case fnv64aName:
		return FNV64a{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

// Default returns the engine used when none is configured.
func Default() Engine {
	return XXH64{}
}
