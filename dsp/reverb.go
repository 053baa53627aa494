// SPDX-License-Identifier: EPL-2.0

package dsp

import "github.com/cwbudde/algo-dsp/dsp/effects"

const (
	reverbRoom = 0.8
	reverbDamp = 0.5
)

// Reverb runs one Freeverb tank per channel.
type Reverb struct {
	tanks [MaxChannels]*effects.Reverb
	wet   float32
}

// NewReverb allocates the delay lines of every tank.
func NewReverb() *Reverb {
	r := &Reverb{}
	for ch := range r.tanks {
		t := effects.NewReverb()
		t.SetRoomSize(reverbRoom)
		t.SetDamp(reverbDamp)
		r.tanks[ch] = t
	}
	r.SetMix(0)

	return r
}

// SetMix sets the wet share from 0 (dry) to 100 (fully wet).
func (r *Reverb) SetMix(percent float32) {
	r.wet = min(max(percent, 0), 100) / 100
	for _, t := range r.tanks {
		t.SetWet(float64(r.wet))
		t.SetDry(float64(1 - r.wet))
	}
}

// Mix is the wet share in percent.
func (r *Reverb) Mix() float32 { return r.wet * 100 }

// Reset empties the tanks.
func (r *Reverb) Reset() {
	for _, t := range r.tanks {
		t.Reset()
	}
}

// Process applies the reverb to interleaved buf in place.
func (r *Reverb) Process(buf []float32, channels int) {
	if channels < 1 || channels > MaxChannels {
		return
	}

	for i := 0; i+channels <= len(buf); i += channels {
		for ch := range channels {
			buf[i+ch] = float32(r.tanks[ch].ProcessSample(float64(buf[i+ch])))
		}
	}
}
