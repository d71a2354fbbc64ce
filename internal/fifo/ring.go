// Package fifo implements the per-channel output FIFO that sits between the
// conversion instances and the audio interface.
//
// A Ring is a fixed-capacity circular buffer with exactly one producer and
// one consumer. The read and write positions are monotonically increasing
// counters published with sync/atomic, and the sample slots between them are
// owned by whichever side the counters say. Append takes no lock unless it
// overflows; a reset moves the read position, so it shares a per-ring mutex
// with the consumer's copy-and-commit.
package fifo

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrOverflow is returned by Append when the samples do not fit. The ring
	// has been reset to Empty by the time the caller sees it.
	ErrOverflow = errors.New("fifo overflow")

	// ErrUnderrun is returned by Pull when fewer samples were buffered than
	// requested. It is not a fault.
	ErrUnderrun = errors.New("fifo underrun")
)

// State describes how full a ring is.
type State int

const (
	// Empty means no samples are buffered.
	Empty State = iota

	// Partial means some, but not all, slots are in use.
	Partial

	// Full means every slot is in use; the next non-empty Append overflows.
	Full

	// Overflow is the fault state entered when an Append did not fit. It is
	// only ever observed transiently: the ring resets itself before Append
	// returns.
	Overflow
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Partial:
		return "partial"
	case Full:
		return "full"
	case Overflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Stats holds cumulative counters for a ring.
type Stats struct {
	Appended  uint64 // Samples accepted by Append
	Pulled    uint64 // Samples handed out by Pull
	Discarded uint64 // Samples thrown away by overflow resets and Reset
	Overflows uint64 // Append calls that overflowed
	Underruns uint64 // Pull calls that came up short
}

// Ring is a single-producer, single-consumer sample FIFO.
//
// Append must only be called from the producer goroutine and Pull only from
// the consumer goroutine. Reset, Available, Space, State and Stats are safe
// from either side.
type Ring struct {
	data     []float64
	capacity uint64

	// read and write count samples since construction; slot = pos % capacity.
	read  atomic.Uint64
	write atomic.Uint64

	// readMu is held by Pull while it copies and commits, and by resets.
	readMu sync.Mutex

	overflowing atomic.Bool

	appended  atomic.Uint64
	pulled    atomic.Uint64
	discarded atomic.Uint64
	overflows atomic.Uint64
	underruns atomic.Uint64
}

// NewRing creates a ring holding at most capacity samples.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}

	return &Ring{
		data:     make([]float64, capacity),
		capacity: uint64(capacity),
	}
}

// Append copies samples into the ring.
//
// If the samples do not fit in the free space, everything buffered is
// discarded, the ring returns to Empty and ErrOverflow is returned. The
// rejected samples are discarded as well: keeping only part of a block
// would shift this channel against its siblings.
func (r *Ring) Append(samples []float64) error {
	n := uint64(len(samples))
	if n == 0 {
		return nil
	}

	w := r.write.Load()
	rd := r.read.Load()

	if w-rd+n > r.capacity {
		r.overflowing.Store(true)
		r.overflows.Add(1)
		r.discarded.Add(n)
		r.Reset()
		r.overflowing.Store(false)
		return ErrOverflow
	}

	// Copy in at most two runs (before and after the wrap point).
	start := w % r.capacity
	copied := copy(r.data[start:], samples)
	if copied < len(samples) {
		copy(r.data, samples[copied:])
	}

	r.write.Store(w + n)
	r.appended.Add(n)
	return nil
}

// Pull moves up to len(dst) of the oldest samples into dst and returns how
// many were written. A short read returns ErrUnderrun; the caller decides
// how to fill the gap.
func (r *Ring) Pull(dst []float64) (int, error) {
	want := uint64(len(dst))
	if want == 0 {
		return 0, nil
	}

	r.readMu.Lock()
	defer r.readMu.Unlock()

	rd := r.read.Load()
	w := r.write.Load()

	n := min(w-rd, want)
	if n > 0 {
		start := rd % r.capacity
		copied := copy(dst[:n], r.data[start:])
		if uint64(copied) < n {
			copy(dst[copied:n], r.data)
		}
	}
	r.read.Store(rd + n)

	r.pulled.Add(n)
	if n < want {
		r.underruns.Add(1)
		return int(n), ErrUnderrun
	}
	return int(n), nil
}

// Reset discards everything buffered and returns the ring to Empty. It
// waits for a Pull in progress to commit first.
func (r *Ring) Reset() {
	r.readMu.Lock()
	defer r.readMu.Unlock()

	w := r.write.Load()
	if rd := r.read.Load(); rd < w {
		r.read.Store(w)
		r.discarded.Add(w - rd)
	}
}

// Available returns the number of buffered samples.
func (r *Ring) Available() int {
	rd := r.read.Load()
	w := r.write.Load()
	if w < rd {
		return 0
	}
	return int(w - rd)
}

// Space returns the number of samples that can be appended without overflow.
func (r *Ring) Space() int {
	return int(r.capacity) - r.Available()
}

// Capacity returns the fixed ring capacity in samples.
func (r *Ring) Capacity() int {
	return int(r.capacity)
}

// State reports the current fill state.
func (r *Ring) State() State {
	if r.overflowing.Load() {
		return Overflow
	}

	switch n := r.Available(); {
	case n == 0:
		return Empty
	case uint64(n) >= r.capacity:
		return Full
	default:
		return Partial
	}
}

// Stats returns a snapshot of the ring counters.
func (r *Ring) Stats() Stats {
	return Stats{
		Appended:  r.appended.Load(),
		Pulled:    r.pulled.Load(),
		Discarded: r.discarded.Load(),
		Overflows: r.overflows.Load(),
		Underruns: r.underruns.Load(),
	}
}
