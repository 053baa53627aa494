// SPDX-License-Identifier: EPL-2.0

package audrig

import (
	"errors"
	"fmt"
	"io"

	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/formats"
	"github.com/ik5/audrig/utils"
)

// LoadFile decodes the file at path with the decoder registered for its
// extension and converts it to f, which must be a float format. The whole
// file is read into memory.
//
// Example:
//
//	clip, err := audrig.LoadFile("song.mp3", audio.FloatFormat(44100, 2))
func LoadFile(path string, f audio.Format) (*audio.Clip, error) {
	src, err := formats.DefaultRegistry().Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	clip, err := audio.ReadClip(src, f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	return clip, nil
}

// ConvertPCM16 runs src through the resample and channel mapping pipeline
// for f and collects the result as interleaved 16-bit samples. bufferSize is
// the read block in samples; zero means 4096.
//
// Example:
//
//	src, _ := wav.Decoder{}.Decode(file)
//	pcm, err := audrig.ConvertPCM16(src, audio.PCM16Format(8000, 1), 0)
func ConvertPCM16(src audio.Source, f audio.Format, bufferSize int) ([]int16, error) {
	if f.SampleRate <= 0 || f.Channels < 1 {
		return nil, fmt.Errorf("%w: %s", audio.ErrConfiguration, f)
	}
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	bufferSize -= bufferSize % f.Channels
	if bufferSize == 0 {
		bufferSize = f.Channels
	}

	pipe := audio.Convert(src, f)

	// a couple of seconds, append grows it
	pcm := make([]int16, 0, f.SampleRate*f.Channels*2)
	buf := make([]float32, bufferSize)

	for {
		n, err := pipe.ReadSamples(buf)
		for _, v := range buf[:n] {
			pcm = append(pcm, utils.Float32ToInt16(v))
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

	return pcm, nil
}
