// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/utils"
)

// go-mp3 always produces interleaved stereo.
const channels = 2

// mp3Reader is the part of gomp3.Decoder the source needs.
type mp3Reader interface {
	Read([]byte) (int, error)
	SampleRate() int
}

type source struct {
	dec  mp3Reader
	buf  []byte
	odd  bool // a lone byte is parked at buf[0] from the previous read
	done bool
}

func (s *source) SampleRate() int { return s.dec.SampleRate() }
func (s *source) Channels() int   { return channels }
func (s *source) Close() error    { return nil }
func (s *source) BufSize() int    { return cap(s.buf) / 2 }

func (s *source) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if s.done {
		return 0, io.EOF
	}

	need := len(dst) * 2
	if cap(s.buf) < need {
		buf := make([]byte, need)
		if s.odd {
			buf[0] = s.buf[0]
		}
		s.buf = buf
	}
	s.buf = s.buf[:need]

	start := 0
	if s.odd {
		start = 1
	}

	n, err := s.dec.Read(s.buf[start:])
	total := start + n

	samples := utils.DecodePCM16(dst, s.buf[:total-total%2])

	s.odd = total%2 == 1
	if s.odd {
		s.buf[0] = s.buf[total-1]
	}

	if err == io.EOF {
		s.done = true
		return samples, io.EOF
	}
	if err != nil {
		return samples, fmt.Errorf("%w", err)
	}

	return samples, nil
}

// Decoder wraps github.com/hajimehoshi/go-mp3.
type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	return newSource(dec), nil
}

func newSource(dec mp3Reader) *source {
	return &source{
		dec: dec,
		buf: make([]byte, 8192),
	}
}
