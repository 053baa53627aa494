// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/ik5/audrig/utils"
)

// Resampler streams from src to a target sample rate using Catmull-Rom
// interpolation. It works on interleaved samples and preserves the channel
// count. When downsampling a one-pole low-pass runs ahead of interpolation.
type Resampler struct {
	src      Source
	dstRate  int
	step     float64 // source frames per output frame
	channels int

	// history holds four consecutive source frames: t-1, t0, t+1, t+2.
	history [4][]float32
	primed  bool
	pos     float64

	// pending source frames not yet moved into history
	chunk    []float32
	chunkPos int
	chunkLen int
	srcDone  bool
	tail     int // frames left to emit after the source ran dry

	lowpass bool
	alpha   float32
	state   []float32
}

func NewResampler(src Source, dstRate int) *Resampler {
	channels := src.Channels()
	step := float64(src.SampleRate()) / float64(dstRate)

	chunk := src.BufSize()
	if chunk < channels*256 {
		chunk = channels * 256
	}
	chunk -= chunk % channels

	r := &Resampler{
		src:      src,
		dstRate:  dstRate,
		step:     step,
		channels: channels,
		chunk:    make([]float32, chunk),
		lowpass:  step > 1,
		alpha:    0.5,
		state:    make([]float32, channels),
	}

	for i := range r.history {
		r.history[i] = make([]float32, channels)
	}

	return r
}

func (r *Resampler) SampleRate() int { return r.dstRate }
func (r *Resampler) Channels() int   { return r.channels }
func (r *Resampler) BufSize() int    { return r.src.BufSize() }

func (r *Resampler) Close() error {
	if err := r.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// nextFrame copies the next source frame into dst. It reports false once the
// source is exhausted.
func (r *Resampler) nextFrame(dst []float32) (bool, error) {
	if r.chunkPos >= r.chunkLen {
		if r.srcDone {
			return false, nil
		}

		n, err := r.src.ReadSamples(r.chunk)
		r.chunkPos, r.chunkLen = 0, n-n%r.channels
		if errors.Is(err, io.EOF) {
			r.srcDone = true
		} else if err != nil {
			return false, fmt.Errorf("%w", err)
		}

		if r.chunkLen == 0 {
			if r.srcDone {
				return false, nil
			}
			return r.nextFrame(dst)
		}
	}

	copy(dst, r.chunk[r.chunkPos:r.chunkPos+r.channels])
	r.chunkPos += r.channels

	if r.lowpass {
		for c := range dst {
			dst[c] = r.alpha*dst[c] + (1-r.alpha)*r.state[c]
			r.state[c] = dst[c]
		}
	}

	return true, nil
}

// advance shifts history by one frame. Past the end of the source the last
// frame is repeated so interpolation can finish the final segments.
func (r *Resampler) advance() (bool, error) {
	first := r.history[0]
	copy(r.history[:], r.history[1:])
	r.history[3] = first

	ok, err := r.nextFrame(r.history[3])
	if err != nil {
		return false, err
	}

	if !ok {
		if r.tail == 0 {
			return false, nil
		}
		r.tail--
		copy(r.history[3], r.history[2])
	}

	return true, nil
}

func (r *Resampler) prime() (bool, error) {
	ok, err := r.nextFrame(r.history[1])
	if err != nil || !ok {
		return false, err
	}

	if r.lowpass {
		// start the filter from the first value to avoid a warm-up ramp
		copy(r.state, r.history[1])
	}
	copy(r.history[0], r.history[1])

	// The last real frame must still reach history[1], so every frame missing
	// here costs one padded advance at the end.
	r.tail = 2
	for i := 2; i < 4; i++ {
		ok, err := r.nextFrame(r.history[i])
		if err != nil {
			return false, err
		}
		if !ok {
			copy(r.history[i], r.history[i-1])
			r.tail--
		}
	}
	r.primed = true

	return true, nil
}

// ReadSamples produces interleaved samples at the target rate.
// dst length must be a multiple of the channel count.
func (r *Resampler) ReadSamples(dst []float32) (int, error) {
	if len(dst)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	if !r.primed {
		ok, err := r.prime()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, io.EOF
		}
	}

	frames := len(dst) / r.channels
	written := 0

	for written < frames {
		for r.pos >= 1 {
			r.pos--

			ok, err := r.advance()
			if err != nil {
				return written * r.channels, err
			}
			if !ok {
				if written == 0 {
					return 0, io.EOF
				}
				return written * r.channels, io.EOF
			}
		}

		x := float32(r.pos)
		out := dst[written*r.channels : (written+1)*r.channels]
		for c := range out {
			out[c] = utils.CubicInterpolate(r.history[0][c], r.history[1][c], r.history[2][c], r.history[3][c], x)
		}

		written++
		r.pos += r.step
	}

	return written * r.channels, nil
}
