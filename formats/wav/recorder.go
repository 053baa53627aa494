// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/utils"
)

// Recorder appends float frames to a 16-bit PCM WAV file as they arrive.
//
// A write that fails is rolled back to the previous frame boundary, so a
// recording interrupted by I/O errors stays a valid file that only misses the
// failed blocks. Recorder is not safe for concurrent use.
type Recorder struct {
	file   *os.File
	guard  *rollbackWriter
	enc    *gowav.Encoder
	format audio.Format
	buf    *goaudio.IntBuffer
	frames int
	closed bool
}

// NewRecorder creates (or truncates) path and prepares it for f.Channels
// channels at f.SampleRate. Samples are always stored as 16-bit PCM.
func NewRecorder(path string, f audio.Format) (*Recorder, error) {
	if f.SampleRate <= 0 || f.Channels < 1 {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedWavLayout, f)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	guard := &rollbackWriter{f: file, write: file.Write}

	r := &Recorder{
		file:   file,
		guard:  guard,
		enc:    gowav.NewEncoder(guard, f.SampleRate, 16, f.Channels, 1),
		format: f,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: f.Channels,
				SampleRate:  f.SampleRate,
			},
			Data:           []int{},
			SourceBitDepth: 16,
		},
	}

	// An empty block commits the RIFF and data chunk headers, so later
	// rollbacks never reach into them.
	if err := r.enc.Write(r.buf); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w", err)
	}

	return r, nil
}

// Format is the stream layout the recorder was created with.
func (r *Recorder) Format() audio.Format { return r.format }

// Frames is the number of frames committed so far.
func (r *Recorder) Frames() int { return r.frames }

// Write appends interleaved samples. A trailing partial frame is ignored.
func (r *Recorder) Write(samples []float32) error {
	if r.closed {
		return ErrRecorderClosed
	}

	frames := len(samples) / r.format.Channels
	if frames == 0 {
		return nil
	}
	samples = samples[:frames*r.format.Channels]

	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]

	for i, v := range samples {
		r.buf.Data[i] = int(utils.Float32ToInt16(v))
	}

	mark := r.guard.size
	if err := r.enc.Write(r.buf); err != nil {
		r.guard.rollback(mark)
		return fmt.Errorf("%w", err)
	}
	r.frames += frames

	return nil
}

// Close finalizes the header and closes the file. It is safe to call twice.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	encErr := r.enc.Close()

	// The encoder counts frames it attempted, not frames that reached the
	// disk, so the sizes are rewritten from what was actually committed.
	fixErr := r.patchHeader()
	closeErr := r.file.Close()

	if err := errors.Join(encErr, fixErr, closeErr); err != nil {
		return fmt.Errorf("%w", err)
	}

	return nil
}

func (r *Recorder) patchHeader() error {
	var header [headerSize]byte
	putHeader(header[:], r.format.SampleRate, r.format.Channels, uint32(r.frames*r.format.Channels*2))

	if _, err := r.file.WriteAt(header[:], 0); err != nil {
		return err
	}

	return r.file.Truncate(int64(headerSize + r.frames*r.format.Channels*2))
}

// rollbackWriter tracks the committed end of the file so a failed block can
// be cut off again.
type rollbackWriter struct {
	f     *os.File
	write func([]byte) (int, error)
	pos   int64
	size  int64
}

func (w *rollbackWriter) Write(p []byte) (int, error) {
	n, err := w.write(p)
	w.pos += int64(n)
	w.size = max(w.size, w.pos)

	return n, err
}

func (w *rollbackWriter) rollback(to int64) {
	_ = w.f.Truncate(to)
	_, _ = w.f.Seek(to, io.SeekStart)
	w.pos, w.size = to, to
}

func (w *rollbackWriter) Seek(offset int64, whence int) (int64, error) {
	pos, err := w.f.Seek(offset, whence)
	if err != nil {
		return pos, err
	}
	w.pos = pos

	return pos, nil
}
