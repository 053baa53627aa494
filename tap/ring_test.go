// SPDX-License-Identifier: EPL-2.0

package tap

import (
	"slices"
	"sync"
	"testing"
)

func TestRing_RoundsDepth(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct{ depth, want int }{{1, 1}, {3, 4}, {64, 64}, {100, 128}} {
		if got := newRing(tt.depth, 4).cap(); got != tt.want {
			t.Errorf("newRing(%d).cap() = %d, want %d", tt.depth, got, tt.want)
		}
	}
}

func TestRing_FIFO(t *testing.T) {
	t.Parallel()

	r := newRing(2, 3)

	if r.peek() != nil {
		t.Fatal("peek() on empty ring returned a block")
	}
	if !r.push([]float32{1, 2}) || !r.push([]float32{3, 4, 5, 6}) {
		t.Fatal("push() into free slots failed")
	}
	if r.push([]float32{7}) {
		t.Error("push() into a full ring succeeded")
	}
	if r.len() != 2 {
		t.Errorf("len() = %d, want 2", r.len())
	}

	if got := r.peek(); !slices.Equal(got, []float32{1, 2}) {
		t.Errorf("first block = %v", got)
	}
	r.pop()

	// cut to the slot size
	if got := r.peek(); !slices.Equal(got, []float32{3, 4, 5}) {
		t.Errorf("second block = %v", got)
	}
	r.pop()

	if r.peek() != nil || r.len() != 0 {
		t.Error("ring not empty after draining")
	}
}

func TestRing_Concurrent(t *testing.T) {
	t.Parallel()

	const blocks = 10000

	r := newRing(8, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < blocks; {
			if r.push([]float32{float32(i)}) {
				i++
			}
		}
	}()

	for want := 0; want < blocks; {
		b := r.peek()
		if b == nil {
			continue
		}
		if int(b[0]) != want {
			t.Fatalf("block = %v, want %d", b[0], want)
		}
		r.pop()
		want++
	}

	wg.Wait()
}

func TestRing_PushDoesNotAllocate(t *testing.T) {
	r := newRing(4, 512)
	block := make([]float32, 512)

	allocs := testing.AllocsPerRun(100, func() {
		r.push(block)
		r.pop()
	})
	if allocs != 0 {
		t.Errorf("push allocated %v times", allocs)
	}
}
