// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"sync/atomic"

	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/dsp"
	"github.com/ik5/audrig/hal"
	"github.com/oov/audio/resampler"
)

// Player commands, packed with a generation into one word.
const (
	opNone uint64 = iota
	opPlay
	opStop

	opBits = 2
	opMask = 1<<opBits - 1
)

type player struct {
	clip atomic.Pointer[audio.Clip]
	cmd  atomic.Uint64
	gen  atomic.Uint64

	playing  atomic.Bool
	position atomic.Int64
	done     chan uint64

	// render thread only
	active *audio.Clip
	pos    int
	curGen uint64
	volume float32
}

func newPlayer() *player {
	return &player{done: make(chan uint64, 4), volume: 1}
}

func (p *player) schedule(c *audio.Clip) uint64 {
	gen := p.gen.Add(1)
	p.clip.Store(c)
	p.cmd.Store(gen<<opBits | opPlay)

	return gen
}

func (p *player) stop() uint64 {
	gen := p.gen.Add(1)
	p.cmd.Store(gen<<opBits | opStop)

	return gen
}

func (p *player) render(c *cycle, _ []*audio.Buffer, out *audio.Buffer) hal.Status {
	if cmd := p.cmd.Swap(0); cmd != 0 {
		switch cmd & opMask {
		case opPlay:
			p.active = p.clip.Load()
		case opStop:
			p.active = nil
		}
		p.pos = 0
		p.curGen = cmd >> opBits
		p.playing.Store(p.active != nil)
	}

	out.Frames = c.frames
	out.Clear()

	if p.active != nil {
		ch := out.Format.Channels
		src := p.active.Samples[p.pos*ch:]
		n := min(c.frames, len(src)/ch)

		dst := out.Samples[:n*ch]
		for i := range dst {
			dst[i] = src[i] * p.volume
		}
		p.pos += n

		if p.pos >= p.active.Frames() {
			p.active = nil
			p.playing.Store(false)

			select {
			case p.done <- p.curGen:
			default:
			}
		}
	}

	p.position.Store(int64(p.pos))

	return hal.StatusOK
}

func (p *player) apply(v *Values) { p.volume = v.Get(ParamPlayerVolume) }
func (p *player) reset() {
	p.active, p.pos = nil, 0
	p.playing.Store(false)
	p.position.Store(0)
}

// effect copies its single input to its output and processes it in place.
type effect struct {
	process func(buf []float32, channels int)
	update  func(v *Values)
	clear   func()
}

func (e *effect) render(c *cycle, inputs []*audio.Buffer, out *audio.Buffer) hal.Status {
	out.Frames = c.frames
	if in := inputs[0]; in != nil {
		copy(out.Data(), in.Data())
	} else {
		out.Clear()
	}
	e.process(out.Data(), out.Format.Channels)

	return hal.StatusOK
}

func (e *effect) apply(v *Values) { e.update(v) }
func (e *effect) reset()          { e.clear() }

func newPitch(f audio.Format) *effect {
	p := dsp.NewPitchShifter(f.SampleRate)
	last := float32(0)

	return &effect{
		process: p.Process,
		update: func(v *Values) {
			if c := v.Get(ParamPitch); c != last {
				last = c
				p.SetCents(float64(c))
			}
		},
		clear: p.Reset,
	}
}

func newReverb() *effect {
	r := dsp.NewReverb()

	return &effect{
		process: r.Process,
		update:  func(v *Values) { r.SetMix(v.Get(ParamReverbMix)) },
		clear:   r.Reset,
	}
}

// Fixed equalizer bands.
var bands = [...]struct {
	param Param
	freq  float64
	shape dsp.Shape
}{
	{ParamLowGain, 80, dsp.LowShelf},
	{ParamMidGain, 1000, dsp.Peak},
	{ParamHighGain, 10000, dsp.HighShelf},
}

// BandOctaves is the bandwidth shared by every equalizer band.
const BandOctaves = 1.0

func newEqualizer(f audio.Format) *effect {
	var (
		filters [len(bands)]*dsp.Filter
		gains   [len(bands)]float32
	)
	for i := range filters {
		filters[i] = dsp.NewFilter(dsp.Identity)
	}

	return &effect{
		process: func(buf []float32, channels int) {
			for _, b := range filters {
				b.Process(buf, channels)
			}
		},
		update: func(v *Values) {
			for i, b := range bands {
				g := v.Get(b.param)
				if g == gains[i] && filters[i].Coefficients() != dsp.Identity {
					continue
				}
				gains[i] = g
				filters[i].SetCoefficients(dsp.Design(b.shape, b.freq, float64(g), BandOctaves, float64(f.SampleRate)))
			}
		},
		clear: func() {
			for _, b := range filters {
				b.Reset()
			}
		},
	}
}

type mixer struct {
	gain   Param
	volume float32
}

func (m *mixer) render(c *cycle, inputs []*audio.Buffer, out *audio.Buffer) hal.Status {
	out.Frames = c.frames
	dst := out.Data()
	clear(dst)

	for _, in := range inputs {
		if in == nil {
			continue
		}
		for i, v := range in.Data()[:len(dst)] {
			dst[i] += v
		}
	}

	if m.volume != 1 {
		for i := range dst {
			dst[i] *= m.volume
		}
	}

	return hal.StatusOK
}

func (m *mixer) apply(v *Values) { m.volume = v.Get(m.gain) }
func (m *mixer) reset()          {}

// capture pulls the input bus of the running device.
type capture struct {
	hw  audio.Format
	raw *hal.BufferList
}

func newCapture(hw audio.Format, maxFrames int) *capture {
	return &capture{hw: hw, raw: hal.NewBufferList(hw, maxFrames)}
}

func (c *capture) render(cy *cycle, _ []*audio.Buffer, out *audio.Buffer) hal.Status {
	if cy.hw == nil {
		return hal.StatusNotRunning
	}

	frames := cy.captureFrames
	if frames > out.Capacity() {
		return hal.StatusAllocationFailure
	}

	if st := cy.hw.Render(hal.InputBus, frames, c.raw); st != hal.StatusOK {
		return st
	}

	out.Frames = frames
	hal.DecodeSamples(out.Data(), c.hw, c.raw.Buffers[0].Data[:frames*c.hw.FrameBytes()])

	return hal.StatusOK
}

func (c *capture) apply(*Values) {}
func (c *capture) reset()        {}

const (
	resampleQuality = 10
	// converterPrefill covers the resampler's start-up delay.
	converterPrefill = 128
)

// converter maps channels and sample rate between a capture node and its
// consumer. Output always has exactly the cycle's frame count; a short FIFO
// is padded with silence.
type converter struct {
	in, out audio.Format

	mapped []float32
	planIn [dsp.MaxChannels][]float32
	planRs [dsp.MaxChannels][]float32
	rs     *resampler.Resampler

	fifo       []float32
	head, size int

	underruns atomic.Uint64
	overruns  atomic.Uint64
}

func newConverter(in, out audio.Format, maxFrames int) *converter {
	inCap := maxFrames*in.SampleRate/out.SampleRate + 2
	outCap := maxFrames + 64

	c := &converter{
		in:     in,
		out:    out,
		mapped: make([]float32, inCap*out.Channels),
		fifo:   make([]float32, 4*outCap*out.Channels),
	}

	if in.SampleRate != out.SampleRate {
		c.rs = resampler.New(out.Channels, in.SampleRate, out.SampleRate, resampleQuality)
		for ch := range out.Channels {
			c.planIn[ch] = make([]float32, inCap)
			c.planRs[ch] = make([]float32, outCap)
		}
		c.size = converterPrefill
	}

	return c
}

func (c *converter) render(cy *cycle, inputs []*audio.Buffer, out *audio.Buffer) hal.Status {
	if in := inputs[0]; in != nil {
		c.push(in)
	}

	out.Frames = cy.frames
	dst := out.Data()

	got := c.pop(dst)
	if got < cy.frames {
		clear(dst[got*c.out.Channels:])
		c.underruns.Add(1)
	}

	return hal.StatusOK
}

func (c *converter) push(in *audio.Buffer) {
	frames := min(in.Frames, len(c.mapped)/c.out.Channels)
	src := in.Data()
	inCh, outCh := in.Format.Channels, c.out.Channels
	mapped := c.mapped[:frames*outCh]

	switch {
	case inCh == outCh:
		copy(mapped, src)
	case inCh == 1:
		for i := range frames {
			for ch := range outCh {
				mapped[i*outCh+ch] = src[i]
			}
		}
	default:
		for i := range frames {
			var sum float32
			for ch := range inCh {
				sum += src[i*inCh+ch]
			}
			mapped[i] = sum / float32(inCh)
		}
	}

	if c.rs == nil {
		c.write(mapped, frames)
		return
	}

	written := len(c.planRs[0])
	for ch := range outCh {
		plan := c.planIn[ch][:frames]
		for i := range frames {
			plan[i] = mapped[i*outCh+ch]
		}
		_, n := c.rs.ProcessFloat32(ch, plan, c.planRs[ch])
		written = min(written, n)
	}

	for i := range written {
		for ch := range outCh {
			mapped[ch] = c.planRs[ch][i]
		}
		c.write(mapped[:outCh], 1)
	}
}

// write appends frames to the ring, dropping the oldest on overflow.
func (c *converter) write(src []float32, frames int) {
	ch := c.out.Channels
	capFrames := len(c.fifo) / ch

	for i := range frames {
		if c.size == capFrames {
			c.head = (c.head + 1) % capFrames
			c.size--
			c.overruns.Add(1)
		}
		tail := (c.head + c.size) % capFrames
		copy(c.fifo[tail*ch:tail*ch+ch], src[i*ch:i*ch+ch])
		c.size++
	}
}

func (c *converter) pop(dst []float32) int {
	ch := c.out.Channels
	capFrames := len(c.fifo) / ch
	n := min(len(dst)/ch, c.size)

	for i := range n {
		idx := (c.head + i) % capFrames
		copy(dst[i*ch:i*ch+ch], c.fifo[idx*ch:idx*ch+ch])
	}
	c.head = (c.head + n) % capFrames
	c.size -= n

	return n
}

func (c *converter) apply(*Values) {}

func (c *converter) reset() {
	clear(c.fifo)
	c.head, c.size = 0, 0
	if c.rs != nil {
		c.size = converterPrefill
	}
}
