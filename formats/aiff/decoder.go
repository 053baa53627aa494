// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/utils"
)

// aiffReader is the part of aiff.Decoder the source pulls from.
type aiffReader interface {
	Format() *goaudio.Format
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

type source struct {
	dec      aiffReader
	rate     int
	channels int
	buf      *goaudio.IntBuffer
	done     bool
}

func newSource(dec aiffReader, f *goaudio.Format) *source {
	return &source{
		dec:      dec,
		rate:     f.SampleRate,
		channels: f.NumChannels,
		buf: &goaudio.IntBuffer{
			Format:         f,
			Data:           make([]int, 0, 4096),
			SourceBitDepth: 16,
		},
	}
}

func (s *source) SampleRate() int { return s.rate }
func (s *source) Channels() int   { return s.channels }
func (s *source) Close() error    { return nil }
func (s *source) BufSize() int    { return cap(s.buf.Data) }

func (s *source) ReadSamples(dst []float32) (int, error) {
	if s.done {
		return 0, io.EOF
	}
	if len(dst) == 0 {
		return 0, nil
	}

	if cap(s.buf.Data) < len(dst) {
		s.buf.Data = make([]int, len(dst))
	}
	s.buf.Data = s.buf.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.buf)
	for i := range n {
		dst[i] = utils.Int16ToFloat32(int16(s.buf.Data[i]))
	}

	switch {
	case err != nil && err != io.EOF:
		return n, fmt.Errorf("%w", err)
	case err == io.EOF || n < len(dst):
		// go-audio signals the end with a short read more often than io.EOF
		s.done = true
		return n, io.EOF
	}

	return n, nil
}

// Decoder reads 16-bit PCM AIFF through github.com/go-audio/aiff.
type Decoder struct{}

// Decode needs random access. A plain io.Reader is buffered in memory first.
func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading aiff data: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	dec := aiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotAiffFile
	}
	dec.ReadInfo()

	if dec.BitDepth != 16 {
		return nil, fmt.Errorf("%w: got %d bit", ErrOnlyPCM16bitSupported, dec.BitDepth)
	}

	f := dec.Format()
	if f == nil || f.NumChannels < 1 || f.SampleRate <= 0 {
		return nil, ErrUnsupportedAiffLayout
	}

	return newSource(dec, f), nil
}
