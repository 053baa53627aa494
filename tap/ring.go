// SPDX-License-Identifier: EPL-2.0

package tap

import "sync/atomic"

type slot struct {
	data []float32
	n    int
}

// ring is a single producer, single consumer queue of preallocated sample
// blocks. The render thread pushes, the writer goroutine peeks and pops.
type ring struct {
	slots []slot
	mask  uint64

	head atomic.Uint64 // next slot to read
	tail atomic.Uint64 // next slot to write
}

// newRing allocates depth slots of samples samples each. depth is rounded up
// to a power of two.
func newRing(depth, samples int) *ring {
	size := 1
	for size < depth {
		size <<= 1
	}

	r := &ring{slots: make([]slot, size), mask: uint64(size - 1)}
	for i := range r.slots {
		r.slots[i].data = make([]float32, samples)
	}

	return r
}

// push copies src into the next free slot. It reports false when the queue is
// full; samples beyond the slot size are cut.
func (r *ring) push(src []float32) bool {
	t := r.tail.Load()
	if t-r.head.Load() == uint64(len(r.slots)) {
		return false
	}

	s := &r.slots[t&r.mask]
	s.n = copy(s.data, src)
	r.tail.Store(t + 1)

	return true
}

// peek returns the oldest block without removing it, nil when empty.
func (r *ring) peek() []float32 {
	h := r.head.Load()
	if h == r.tail.Load() {
		return nil
	}

	s := &r.slots[h&r.mask]

	return s.data[:s.n]
}

func (r *ring) pop() { r.head.Add(1) }

func (r *ring) len() int { return int(r.tail.Load() - r.head.Load()) }

func (r *ring) cap() int { return len(r.slots) }
