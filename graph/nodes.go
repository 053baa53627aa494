// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"fmt"

	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/dsp"
)

// Node is the read-only view every node handle offers.
type Node interface {
	ID() string
	Kind() Kind
	Format() audio.Format
}

type handle struct {
	n      *node
	params *Params
}

func (h handle) ID() string           { return h.n.spec.ID }
func (h handle) Kind() Kind           { return h.n.spec.Kind }
func (h handle) Format() audio.Format { return h.n.spec.Format }

// PlayerNode schedules an in-memory clip into the graph.
type PlayerNode struct {
	handle
	p *player
}

// Schedule starts clip from its first frame at the next buffer boundary and
// returns the generation that its completion will carry on Done.
func (n *PlayerNode) Schedule(clip *audio.Clip) (uint64, error) {
	if clip == nil {
		return 0, audio.ErrNoSourceLoaded
	}
	if !clip.Format.Compatible(n.n.spec.stream()) {
		return 0, fmt.Errorf("%w: clip is %s, player expects %s", audio.ErrConfiguration, clip.Format, n.n.spec.stream())
	}

	return n.p.schedule(clip), nil
}

// Stop halts playback and rewinds at the next buffer boundary. It returns the
// new generation; completions of earlier generations are stale.
func (n *PlayerNode) Stop() uint64 { return n.p.stop() }

// Done delivers the generation of every clip that played to its end.
func (n *PlayerNode) Done() <-chan uint64 { return n.p.done }

// Playing reports what the render thread last saw.
func (n *PlayerNode) Playing() bool { return n.p.playing.Load() }

// Position is the frame offset reached by the last render cycle.
func (n *PlayerNode) Position() int { return int(n.p.position.Load()) }

func (n *PlayerNode) Volume() float32 { return n.params.Get(ParamPlayerVolume) }

// PitchNode is the pitch shifter.
type PitchNode struct{ handle }

// Cents is the current transposition.
func (n *PitchNode) Cents() float32 { return n.params.Get(ParamPitch) }

// ReverbNode is the reverb.
type ReverbNode struct{ handle }

// WetDryMix is the wet share in percent.
func (n *ReverbNode) WetDryMix() float32 { return n.params.Get(ParamReverbMix) }

// Band describes one equalizer band.
type Band struct {
	Gain      float32
	Frequency float64
	Bandwidth float64
	Shape     dsp.Shape
}

// EqualizerNode is the three band equalizer.
type EqualizerNode struct{ handle }

// Bands is the number of equalizer bands.
const Bands = len(bands)

// Band returns band i (0 low, 1 mid, 2 high).
func (n *EqualizerNode) Band(i int) (Band, error) {
	if i < 0 || i >= Bands {
		return Band{}, fmt.Errorf("%w: %d", ErrInvalidBand, i)
	}

	b := bands[i]

	return Band{
		Gain:      n.params.Get(b.param),
		Frequency: b.freq,
		Bandwidth: BandOctaves,
		Shape:     b.shape,
	}, nil
}

// MixerNode sums its inputs.
type MixerNode struct{ handle }

// Volume is the mixer's output gain.
func (n *MixerNode) Volume() float32 { return n.params.Get(n.n.spec.Gain) }

// ConverterNode adapts the capture stream to the graph format.
type ConverterNode struct {
	handle
	c *converter
}

// Underruns counts cycles padded with silence.
func (n *ConverterNode) Underruns() uint64 { return n.c.underruns.Load() }

// Overruns counts frames dropped because the FIFO was full.
func (n *ConverterNode) Overruns() uint64 { return n.c.overruns.Load() }

// Buffered is the FIFO level. It is only meaningful while nothing renders.
func (n *ConverterNode) Buffered() int { return n.c.size }
