package trigger

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// memoryName is the cause reported by a MemoryLimit trigger.
const memoryName = "memory"

// MemoryLimit is a trigger that stops once the resident memory of the
// current process exceeds a byte limit.
//
// Keeping the limit accurate requires polling: every Stopped call reads
// /proc self stats until the limit is exceeded, after which the trigger
// latches and further calls are a plain atomic load. This makes it
// noticeably more expensive than the other triggers, so it is best
// combined with a chunk size large enough to amortize the poll.
type MemoryLimit struct {
	limit uint64
	proc  procfs.Proc
	flag  *Flag
}

// NewMemoryLimit creates a MemoryLimit trigger for the current process
// with the given limit in bytes.
func NewMemoryLimit(limit uint64) (*MemoryLimit, error) {
	proc, err := procfs.Self()
	if err != nil {
		return nil, fmt.Errorf("open proc stats: %w", err)
	}

	return &MemoryLimit{
		limit: limit,
		proc:  proc,
		flag:  NewFlag(),
	}, nil
}

// Stopped returns true once resident memory has been observed above the
// limit. Stat read failures are treated as "not stopped"; a transient
// procfs error must not cancel the computation.
func (m *MemoryLimit) Stopped() bool {
	if m.flag.Stopped() {
		return true
	}

	stat, err := m.proc.Stat()
	if err != nil {
		return false
	}

	if uint64(stat.ResidentMemory()) > m.limit {
		m.flag.Stop()

		return true
	}

	return false
}

// Name returns the trigger kind.
func (m *MemoryLimit) Name() string {
	return memoryName
}
