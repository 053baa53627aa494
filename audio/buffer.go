// SPDX-License-Identifier: EPL-2.0

package audio

// Buffer is a block of interleaved float32 frames tagged with its format.
//
// An owned buffer is created by NewBuffer and its storage belongs to the
// holder. A borrowed buffer wraps a region supplied by someone else, such as a
// render callback, and is only valid for the duration of that call.
type Buffer struct {
	Format  Format
	Frames  int
	Samples []float32

	borrowed bool
}

// NewBuffer allocates an owned buffer with room for capacity frames.
func NewBuffer(f Format, capacity int) *Buffer {
	return &Buffer{
		Format:  f,
		Samples: make([]float32, capacity*f.Channels),
	}
}

// BorrowBuffer wraps samples without copying.
func BorrowBuffer(f Format, samples []float32, frames int) Buffer {
	return Buffer{
		Format:   f,
		Frames:   frames,
		Samples:  samples,
		borrowed: true,
	}
}

// Borrowed reports whether the storage belongs to the caller.
func (b *Buffer) Borrowed() bool { return b.borrowed }

// Capacity is the number of frames the storage can hold.
func (b *Buffer) Capacity() int {
	if b.Format.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// Data returns the valid interleaved region.
func (b *Buffer) Data() []float32 {
	return b.Samples[:b.Frames*b.Format.Channels]
}

// Clear zeroes the valid region.
func (b *Buffer) Clear() {
	clear(b.Data())
}

// Clip is a fully decoded source held in memory at a fixed format.
type Clip struct {
	Format  Format
	Samples []float32
}

// Frames is the clip length in frames.
func (c *Clip) Frames() int {
	if c.Format.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Format.Channels
}
