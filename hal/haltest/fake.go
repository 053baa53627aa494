// SPDX-License-Identifier: EPL-2.0

// Package haltest provides a fake hal.Interface whose clock is driven by the
// test. Each Tick plays one render cycle: the fake invokes the registered
// callback, serves capture pulls from a generator and records what was
// captured so tests can compare it with the output.
package haltest

import (
	"sync"

	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/hal"
)

// Sentinel fills output regions before each cycle so untouched bytes are
// recognizable.
const Sentinel byte = 0xA5

var _ hal.Interface = (*FakeHardware)(nil)

// FakeHardware is an in-memory duplex device.
type FakeHardware struct {
	mu sync.Mutex

	occupied bool
	claimed  bool
	running  bool
	enabled  [2]bool
	formats  [2]audio.Format
	callback hal.RenderFunc

	capture  func(frame, channel int) float32
	captured int
	failures map[int]hal.Status

	cycle    int
	inCycle  bool
	lastCap  []byte
	scratch  []float32
	out      hal.BufferList
	outBytes []byte

	StartErr error
}

// New returns a fake with silent capture.
func New() *FakeHardware {
	return &FakeHardware{
		capture:  func(int, int) float32 { return 0 },
		failures: map[int]hal.Status{},
	}
}

// Occupy simulates another owner holding the device.
func (f *FakeHardware) Occupy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.occupied = true
}

// SetCapture replaces the capture generator. It receives the running capture
// frame index.
func (f *FakeHardware) SetCapture(gen func(frame, channel int) float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capture = gen
}

// FailCapture makes the capture pull of the given cycle (1-based) return st.
func (f *FakeHardware) FailCapture(cycle int, st hal.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[cycle] = st
}

func (f *FakeHardware) Claim() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.occupied || f.claimed {
		return hal.ErrInUse
	}
	f.claimed = true

	return nil
}

func (f *FakeHardware) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.claimed {
		return hal.ErrNotClaimed
	}
	f.claimed, f.running = false, false
	f.enabled = [2]bool{}
	f.callback = nil

	return nil
}

// Claimed reports whether someone owns the device.
func (f *FakeHardware) Claimed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claimed
}

func (f *FakeHardware) EnableIO(bus hal.Bus, enable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.claimed {
		return hal.ErrNotClaimed
	}
	if !bus.Valid() {
		return hal.ErrInvalidBus
	}
	f.enabled[bus] = enable

	return nil
}

// Enabled reports the state of bus.
func (f *FakeHardware) Enabled(bus hal.Bus) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled[bus]
}

func (f *FakeHardware) SetFormat(bus hal.Bus, fm audio.Format) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.claimed {
		return hal.ErrNotClaimed
	}
	if !bus.Valid() {
		return hal.ErrInvalidBus
	}
	if err := fm.Validate(); err != nil {
		return err
	}
	f.formats[bus] = fm

	return nil
}

// Format is the format negotiated for bus.
func (f *FakeHardware) Format(bus hal.Bus) audio.Format {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.formats[bus]
}

func (f *FakeHardware) SetRenderCallback(fn hal.RenderFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.claimed {
		return hal.ErrNotClaimed
	}
	f.callback = fn

	return nil
}

func (f *FakeHardware) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case !f.claimed:
		return hal.ErrNotClaimed
	case f.callback == nil:
		return hal.ErrNoCallback
	case !f.enabled[hal.OutputBus]:
		return hal.ErrBusDisabled
	case f.StartErr != nil:
		return f.StartErr
	}
	f.running = true

	return nil
}

func (f *FakeHardware) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.claimed {
		return hal.ErrNotClaimed
	}
	f.running = false

	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (f *FakeHardware) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Render serves capture pulls. It must be called from inside the callback,
// which the fake guarantees by holding the cycle open during Tick.
func (f *FakeHardware) Render(bus hal.Bus, frames int, dst *hal.BufferList) hal.Status {
	if !f.inCycle {
		return hal.StatusNotRunning
	}
	if bus != hal.InputBus || !f.enabled[hal.InputBus] {
		return hal.StatusInvalidBus
	}
	if st, ok := f.failures[f.cycle]; ok {
		return st
	}
	if len(dst.Buffers) == 0 {
		return hal.StatusAllocationFailure
	}

	fm := f.formats[hal.InputBus]
	size := frames * fm.FrameBytes()
	region := dst.Buffers[0].Data
	if len(region) < size {
		return hal.StatusAllocationFailure
	}

	samples := frames * fm.Channels
	if cap(f.scratch) < samples {
		f.scratch = make([]float32, samples)
	}
	f.scratch = f.scratch[:samples]

	for i := range frames {
		for c := range fm.Channels {
			f.scratch[i*fm.Channels+c] = f.capture(f.captured+i, c)
		}
	}
	f.captured += frames

	hal.EncodeSamples(region[:size], fm, f.scratch)
	f.lastCap = append(f.lastCap[:0], region[:size]...)

	return hal.StatusOK
}

// Tick runs one render cycle of frames frames into a single interleaved
// region sized for the output format. It returns a copy of that region.
func (f *FakeHardware) Tick(frames int) ([]byte, hal.Status) {
	f.mu.Lock()
	size := frames * f.formats[hal.OutputBus].FrameBytes()
	if cap(f.outBytes) < size {
		f.outBytes = make([]byte, size)
	}
	f.outBytes = f.outBytes[:size]
	if len(f.out.Buffers) != 1 {
		f.out.Buffers = make([]hal.Buffer, 1)
	}
	f.out.Buffers[0] = hal.Buffer{Channels: f.formats[hal.OutputBus].Channels, Data: f.outBytes}
	f.mu.Unlock()

	st := f.TickList(frames, &f.out)

	return append([]byte(nil), f.outBytes...), st
}

// TickList runs one render cycle into a caller provided list. Every region
// is filled with Sentinel first.
func (f *FakeHardware) TickList(frames int, out *hal.BufferList) hal.Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return hal.StatusNotRunning
	}

	for _, b := range out.Buffers {
		for i := range b.Data {
			b.Data[i] = Sentinel
		}
	}

	f.cycle++
	f.inCycle = true
	st := f.callback(frames, out)
	f.inCycle = false

	return st
}

// Cycles is the number of render cycles run so far.
func (f *FakeHardware) Cycles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cycle
}

// LastCapture is a copy of the bytes served by the most recent successful
// capture pull.
func (f *FakeHardware) LastCapture() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.lastCap...)
}
