// SPDX-License-Identifier: EPL-2.0

package dsp

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// Shape selects the filter response of a band.
type Shape int

const (
	LowShelf Shape = iota
	Peak
	HighShelf
)

func (s Shape) String() string {
	switch s {
	case LowShelf:
		return "low-shelf"
	case Peak:
		return "parametric"
	case HighShelf:
		return "high-shelf"
	default:
		return "unknown"
	}
}

// Identity passes the signal through unchanged.
var Identity = biquad.Coefficients{B0: 1}

// blockFrames is the length of the per-channel float64 scratch a Filter
// processes at a time.
const blockFrames = 256

// OctavesToQ converts a bandwidth in octaves to the equivalent Q.
func OctavesToQ(octaves float64) float64 {
	p := math.Pow(2, octaves)
	return math.Sqrt(p) / (p - 1)
}

// Design returns RBJ cookbook coefficients for shape at freq with gainDB and a
// bandwidth in octaves. Frequencies outside (0, nyquist) yield Identity.
func Design(shape Shape, freq, gainDB, octaves, sampleRate float64) biquad.Coefficients {
	if sampleRate <= 0 || freq <= 0 || freq >= sampleRate/2 || octaves <= 0 {
		return Identity
	}

	q := OctavesToQ(octaves)

	switch shape {
	case LowShelf:
		return design.LowShelf(freq, gainDB, q, sampleRate)
	case Peak:
		return design.Peak(freq, gainDB, q, sampleRate)
	case HighShelf:
		return design.HighShelf(freq, gainDB, q, sampleRate)
	default:
		return Identity
	}
}

// Filter runs one biquad section per channel over interleaved frames.
type Filter struct {
	coeffs   biquad.Coefficients
	sections [MaxChannels]biquad.Section
	scratch  []float64
}

// NewFilter returns a filter with zero state.
func NewFilter(c biquad.Coefficients) *Filter {
	f := &Filter{scratch: make([]float64, blockFrames)}
	f.SetCoefficients(c)

	return f
}

// SetCoefficients swaps the response but keeps the state, so a gain change
// does not click.
func (f *Filter) SetCoefficients(c biquad.Coefficients) {
	f.coeffs = c
	for ch := range f.sections {
		f.sections[ch].Coefficients = c
	}
}

func (f *Filter) Coefficients() biquad.Coefficients { return f.coeffs }

// Reset clears the filter memory.
func (f *Filter) Reset() {
	for ch := range f.sections {
		f.sections[ch].Reset()
	}
}

// Process filters interleaved buf in place.
func (f *Filter) Process(buf []float32, channels int) {
	if channels < 1 || channels > MaxChannels {
		return
	}

	frames := len(buf) / channels

	for ch := range channels {
		s := &f.sections[ch]

		for start := 0; start < frames; start += len(f.scratch) {
			block := f.scratch[:min(len(f.scratch), frames-start)]
			for i := range block {
				block[i] = float64(buf[(start+i)*channels+ch])
			}

			s.ProcessBlock(block)

			for i, y := range block {
				buf[(start+i)*channels+ch] = float32(y)
			}
		}
	}
}
