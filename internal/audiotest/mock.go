// SPDX-License-Identifier: EPL-2.0

// Package audiotest holds test doubles for audio sources and signals.
package audiotest

import (
	"io"
	"math"
)

// Waveform yields the value of a sample for a frame index and channel.
type Waveform func(frame int, channel int) float32

// MockSource generates a fixed number of frames from a Waveform.
// It satisfies audio.Source without importing it.
type MockSource struct {
	sampleRate int
	channels   int
	frames     int
	generated  int
	waveform   Waveform
}

// NewMockSource creates a source producing frames frames per channel.
func NewMockSource(sampleRate, channels, frames int, waveform Waveform) *MockSource {
	return &MockSource{
		sampleRate: sampleRate,
		channels:   channels,
		frames:     frames,
		waveform:   waveform,
	}
}

// NewSilentSource creates a mock source that generates silence.
func NewSilentSource(sampleRate, channels, frames int) *MockSource {
	return NewConstantSource(sampleRate, channels, frames, 0)
}

// NewSineSource creates a full scale sine source.
func NewSineSource(sampleRate, channels, frames int, frequency float64) *MockSource {
	return NewMockSource(sampleRate, channels, frames, Sine(sampleRate, frequency, 1))
}

// NewConstantSource creates a mock source with a constant value.
func NewConstantSource(sampleRate, channels, frames int, value float32) *MockSource {
	return NewMockSource(sampleRate, channels, frames, func(int, int) float32 {
		return value
	})
}

// Sine returns a Waveform with the same sine on every channel.
func Sine(sampleRate int, frequency float64, amplitude float32) Waveform {
	return func(frame int, _ int) float32 {
		t := float64(frame) / float64(sampleRate)
		return amplitude * float32(math.Sin(2*math.Pi*frequency*t))
	}
}

// Fill writes frames of w into dst starting at frame offset start.
func Fill(dst []float32, channels, start int, w Waveform) {
	for i := range len(dst) / channels {
		for c := range channels {
			dst[i*channels+c] = w(start+i, c)
		}
	}
}

func (m *MockSource) SampleRate() int { return m.sampleRate }
func (m *MockSource) Channels() int   { return m.channels }
func (m *MockSource) BufSize() int    { return 4096 }
func (m *MockSource) Close() error    { return nil }

// Reset rewinds the source to its first frame.
func (m *MockSource) Reset() {
	m.generated = 0
}

func (m *MockSource) ReadSamples(dst []float32) (int, error) {
	if m.generated >= m.frames {
		return 0, io.EOF
	}

	frames := min(len(dst)/m.channels, m.frames-m.generated)
	Fill(dst[:frames*m.channels], m.channels, m.generated, m.waveform)
	m.generated += frames

	if m.generated >= m.frames {
		return frames * m.channels, io.EOF
	}

	return frames * m.channels, nil
}
