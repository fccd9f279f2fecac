package digest

import (
	"encoding/binary"
	"hash"
	"hash/fnv"

	"github.com/cespare/xxhash/v2"
)

const (
	xxh64Name  = "xxh64"
	fnv64aName = "fnv64a"
)

// elementSize is the serialized width of one buffer element in bytes.
const elementSize = 8

// XXH64 digests elements with the streaming xxHash64 algorithm.
type XXH64 struct{}

// Name returns "xxh64".
func (XXH64) Name() string {
	return xxh64Name
}

// New creates an empty xxHash64 accumulator.
func (XXH64) New() Accumulator {
	return &streamAccumulator{state: xxhash.New()}
}

// FNV64a digests elements with the FNV-1a 64-bit algorithm.
type FNV64a struct{}

// Name returns "fnv64a".
func (FNV64a) Name() string {
	return fnv64aName
}

// New creates an empty FNV-1a accumulator.
func (FNV64a) New() Accumulator {
	return &streamAccumulator{state: fnv.New64a()}
}

// streamAccumulator adapts any hash.Hash64 into an Accumulator by
// serializing elements little-endian into the hash stream. Both backing
// hashes compute Sum64 without consuming state, which gives the repeatable
// read-only Sum the Accumulator contract requires.
type streamAccumulator struct {
	state hash.Hash64
	buf   [elementSize]byte
}

func (a *streamAccumulator) Update(chunk []uint64) {
	for _, element := range chunk {
		binary.LittleEndian.PutUint64(a.buf[:], element)
		// hash.Hash documents that Write never returns an error.
		_, _ = a.state.Write(a.buf[:])
	}
}

func (a *streamAccumulator) Sum() uint64 {
	return a.state.Sum64()
}
