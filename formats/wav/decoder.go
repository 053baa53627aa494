// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/utils"
)

type wavSource struct {
	r          io.Reader
	sampleRate int
	channels   int
	remaining  int64 // bytes left in the data chunk
	buf        []byte
}

func (s *wavSource) SampleRate() int { return s.sampleRate }
func (s *wavSource) Channels() int   { return s.channels }
func (s *wavSource) BufSize() int    { return cap(s.buf) / 2 }
func (s *wavSource) Close() error    { return nil }

func (s *wavSource) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	if s.remaining <= 0 {
		return 0, io.EOF
	}

	want := min(int64(len(dst)*2), s.remaining)
	if int64(cap(s.buf)) < want {
		s.buf = make([]byte, want)
	}

	n, err := io.ReadFull(s.r, s.buf[:want])
	s.remaining -= int64(n)

	samples := utils.DecodePCM16(dst, s.buf[:n-n%2])

	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		// truncated data chunk, hand out what arrived
		s.remaining = 0
	case err != nil:
		return samples, fmt.Errorf("%w", err)
	}

	if s.remaining <= 0 {
		return samples, io.EOF
	}

	return samples, nil
}

// Decoder reads canonical and chunked PCM 16-bit RIFF/WAVE streams. Unknown
// chunks before the data chunk are skipped.
type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	if string(riff[:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, ErrNotWavFile
	}

	var (
		haveFmt    bool
		channels   int
		sampleRate int
	)

	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if haveFmt {
				return nil, ErrUnsupportedWavChunks
			}
			return nil, ErrUnsupportedWavLayout
		}

		id := string(hdr[:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, ErrUnsupportedWavLayout
			}

			var body [16]byte
			if _, err := io.ReadFull(r, body[:]); err != nil {
				return nil, fmt.Errorf("%w", err)
			}

			format := binary.LittleEndian.Uint16(body[0:2])
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits := binary.LittleEndian.Uint16(body[14:16])

			if format != 1 || bits != 16 {
				return nil, ErrOnlyPCM16bitSupported
			}

			if err := skip(r, size-16+size%2); err != nil {
				return nil, err
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, ErrUnsupportedWavChunks
			}

			return &wavSource{
				r:          r,
				sampleRate: sampleRate,
				channels:   channels,
				remaining:  size,
				buf:        make([]byte, 8192),
			}, nil

		default:
			// chunks are word aligned
			if err := skip(r, size+size%2); err != nil {
				return nil, err
			}
		}
	}
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}

	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("%w", ErrUnsupportedWavChunks)
	}

	return nil
}
