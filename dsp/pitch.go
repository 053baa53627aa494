// SPDX-License-Identifier: EPL-2.0

package dsp

import (
	"math"

	"github.com/ik5/audrig/utils"
)

const (
	// pitchWindow is the length of one delay sweep in seconds.
	pitchWindow = 0.05
	// pitchGuard keeps the read head clear of the cubic kernel's look-ahead.
	pitchGuard = 3
)

// CentsToRatio converts a transposition in cents to a frequency ratio.
func CentsToRatio(cents float64) float64 {
	return math.Pow(2, cents/1200)
}

// PitchShifter transposes without changing duration. Two read heads sweep a
// delay line half a window apart and are crossfaded with complementary Hann
// weights, so their sum is always unity gain.
type PitchShifter struct {
	ring   [MaxChannels][]float32
	write  int
	window float64
	phase  float64
	ratio  float64
}

// NewPitchShifter allocates the delay lines for sampleRate.
func NewPitchShifter(sampleRate int) *PitchShifter {
	window := math.Max(pitchWindow*float64(sampleRate), 64)
	size := int(window) + 2*pitchGuard + 2

	p := &PitchShifter{window: window, ratio: 1}
	for ch := range p.ring {
		p.ring[ch] = make([]float32, size)
	}

	return p
}

// SetCents sets the transposition.
func (p *PitchShifter) SetCents(cents float64) {
	p.ratio = CentsToRatio(cents)
}

// Ratio is the current frequency ratio.
func (p *PitchShifter) Ratio() float64 { return p.ratio }

// Reset clears the delay lines.
func (p *PitchShifter) Reset() {
	for ch := range p.ring {
		clear(p.ring[ch])
	}
	p.write, p.phase = 0, 0
}

// Process shifts interleaved buf in place. At a ratio of exactly 1 the
// signal passes untouched, but the delay lines keep filling so a later change
// starts from real history.
func (p *PitchShifter) Process(buf []float32, channels int) {
	if channels < 1 || channels > MaxChannels {
		return
	}

	size := len(p.ring[0])
	bypass := p.ratio == 1
	step := (1 - p.ratio) / p.window

	for i := 0; i+channels <= len(buf); i += channels {
		for ch := range channels {
			p.ring[ch][p.write] = buf[i+ch]
		}

		if !bypass {
			pa := p.phase
			pb := pa + 0.5
			if pb >= 1 {
				pb--
			}

			ga := float32(hann(pa))
			gb := 1 - ga

			posA := float64(p.write) - pitchGuard - pa*p.window
			posB := float64(p.write) - pitchGuard - pb*p.window

			for ch := range channels {
				buf[i+ch] = ga*utils.CubicAt(p.ring[ch], posA) + gb*utils.CubicAt(p.ring[ch], posB)
			}

			p.phase += step
			p.phase -= math.Floor(p.phase)
		}

		p.write++
		if p.write == size {
			p.write = 0
		}
	}
}

// hann is sin²(πx), zero at both ends of the sweep where the delay jumps.
func hann(x float64) float64 {
	s := math.Sin(math.Pi * x)
	return s * s
}
