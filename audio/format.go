// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// Encoding is the sample representation of a stream.
type Encoding uint8

const (
	// EncodingFloat is interleaved IEEE float samples in [-1, 1].
	EncodingFloat Encoding = iota
	// EncodingInt is interleaved signed, packed, little endian integer samples.
	EncodingInt
)

func (e Encoding) String() string {
	switch e {
	case EncodingFloat:
		return "float"
	case EncodingInt:
		return "int"
	default:
		return fmt.Sprintf("Encoding(%d)", uint8(e))
	}
}

// Format describes a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Encoding   Encoding
}

// LoopbackFormat is the bit-exact hardware format used by the loopback path:
// mono, 44.1 kHz, 16-bit signed integer, 2 bytes per frame.
var LoopbackFormat = Format{
	SampleRate: 44100,
	Channels:   1,
	BitDepth:   16,
	Encoding:   EncodingInt,
}

// FloatFormat returns a 32-bit float format at the given rate and channel count.
func FloatFormat(sampleRate, channels int) Format {
	return Format{
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   32,
		Encoding:   EncodingFloat,
	}
}

// BytesPerSample is the size of a single sample of one channel.
func (f Format) BytesPerSample() int { return f.BitDepth / 8 }

// FrameBytes is the size of one interleaved frame.
func (f Format) FrameBytes() int { return f.BytesPerSample() * f.Channels }

// Validate reports whether the format is usable by the engine.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrConfiguration, f.SampleRate)
	}

	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("%w: %d channels", ErrConfiguration, f.Channels)
	}

	switch {
	case f.Encoding == EncodingFloat && f.BitDepth == 32:
	case f.Encoding == EncodingInt && f.BitDepth == 16:
	default:
		return fmt.Errorf("%w: %d-bit %s samples", ErrConfiguration, f.BitDepth, f.Encoding)
	}

	return nil
}

// Compatible reports whether two endpoints can be connected without a
// conversion step.
func (f Format) Compatible(other Format) bool {
	return f == other
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz, %d ch, %d-bit %s", f.SampleRate, f.Channels, f.BitDepth, f.Encoding)
}

// PCM16Format returns a 16-bit signed integer format.
func PCM16Format(sampleRate, channels int) Format {
	return Format{
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   16,
		Encoding:   EncodingInt,
	}
}
