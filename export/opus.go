// SPDX-License-Identifier: EPL-2.0

package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/formats/wav"
	"github.com/ik5/audrig/utils"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"layeh.com/gopus"
)

const (
	opusSampleRate = 48000
	// 20 ms per packet
	opusFrameSize = opusSampleRate / 50
	// RFC 6716 upper bound for one packet
	maxPacketBytes = 1275

	opusPayloadType = 111

	// DefaultBitrate is used when OpusTranscoder.Bitrate is zero.
	DefaultBitrate = 64000
)

// OpusTranscoder encodes a 16-bit WAV file as Opus in an Ogg container. The
// input is resampled to 48 kHz and folded to at most two channels.
type OpusTranscoder struct {
	Bitrate int
}

func (o *OpusTranscoder) Transcode(ctx context.Context, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	source, err := wav.Decoder{}.Decode(in)
	if err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}
	defer source.Close()

	channels := min(source.Channels(), 2)
	pipe := audio.Convert(source, audio.FloatFormat(opusSampleRate, channels))

	enc, err := gopus.NewEncoder(opusSampleRate, channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("opus encoder: %w", err)
	}
	bitrate := o.Bitrate
	if bitrate <= 0 {
		bitrate = DefaultBitrate
	}
	enc.SetBitrate(bitrate)

	out, err := oggwriter.New(dst, opusSampleRate, uint16(channels))
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	werr := encode(ctx, pipe, enc, out, channels)

	return errors.Join(werr, out.Close())
}

func encode(ctx context.Context, src audio.Source, enc *gopus.Encoder, out *oggwriter.OggWriter, channels int) error {
	frame := make([]float32, opusFrameSize*channels)
	pcm := make([]int16, len(frame))

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:     2,
			PayloadType: opusPayloadType,
		},
	}

	packets := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, eof, err := fill(src, frame)
		if err != nil {
			return err
		}

		// the container needs at least one packet
		if n == 0 && packets > 0 {
			return nil
		}

		clear(frame[n:])
		for i, v := range frame {
			pcm[i] = utils.Float32ToInt16(v)
		}

		data, err := enc.Encode(pcm, opusFrameSize, maxPacketBytes)
		if err != nil {
			return fmt.Errorf("opus encode: %w", err)
		}

		pkt.Payload = data
		if err := out.WriteRTP(pkt); err != nil {
			return fmt.Errorf("ogg write: %w", err)
		}
		pkt.SequenceNumber++
		pkt.Timestamp += opusFrameSize
		packets++

		if eof {
			return nil
		}
	}
}

// fill reads until frame is full or the source ends.
func fill(src audio.Source, frame []float32) (int, bool, error) {
	n := 0
	for n < len(frame) {
		got, err := src.ReadSamples(frame[n:])
		n += got

		if errors.Is(err, io.EOF) {
			return n, true, nil
		}
		if err != nil {
			return n, false, err
		}
		if got == 0 {
			return n, true, nil
		}
	}

	return n, false, nil
}
