// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"
)

// Convert builds the pipeline that brings src to the rate and channel count
// of target. Stages that would be identity are skipped.
func Convert(src Source, target Format) Source {
	out := src

	if out.SampleRate() != target.SampleRate {
		out = NewResampler(out, target.SampleRate)
	}

	if out.Channels() != target.Channels {
		out = NewChannelMapper(out, target.Channels)
	}

	return out
}

// ReadClip drains src through Convert into memory. Samples are clamped to
// [-1, 1]. The source is not closed.
//
// Example:
//
//	src, _ := registry.Open("song.mp3")
//	defer src.Close()
//	clip, err := audio.ReadClip(src, audio.FloatFormat(44100, 2))
func ReadClip(src Source, target Format) (*Clip, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	if target.Encoding != EncodingFloat {
		return nil, fmt.Errorf("%w: clips are float, got %s", ErrConfiguration, target.Encoding)
	}

	pipe := Convert(src, target)

	size := pipe.BufSize()
	if size < 4096 {
		size = 4096
	}
	size -= size % target.Channels
	buf := make([]float32, size)

	// rough guess: a few seconds, grown by append
	samples := make([]float32, 0, target.SampleRate*target.Channels*4)

	for {
		n, err := pipe.ReadSamples(buf)
		for _, v := range buf[:n] {
			samples = append(samples, min(max(v, -1), 1))
		}

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("%w", err)
		}

		if n == 0 {
			break
		}
	}

	// drop a trailing partial frame
	samples = samples[:len(samples)-len(samples)%target.Channels]

	return &Clip{Format: target, Samples: samples}, nil
}
