// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// ChannelMapper converts a Source to a different channel count. Down mixing
// averages the source channels; up mixing from mono copies the single channel
// to every output channel.
type ChannelMapper struct {
	src      Source
	channels int
	tmp      []float32
}

// NewChannelMapper wraps src so that it yields channels interleaved channels.
func NewChannelMapper(src Source, channels int) *ChannelMapper {
	return &ChannelMapper{
		src:      src,
		channels: channels,
		tmp:      make([]float32, 8192),
	}
}

// NewMonoMixer averages every channel of src into one.
func NewMonoMixer(src Source) *ChannelMapper {
	return NewChannelMapper(src, 1)
}

func (m *ChannelMapper) SampleRate() int { return m.src.SampleRate() }
func (m *ChannelMapper) Channels() int   { return m.channels }
func (m *ChannelMapper) BufSize() int    { return m.src.BufSize() }

func (m *ChannelMapper) Close() error {
	if err := m.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}

	return nil
}

func (m *ChannelMapper) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	in := m.src.Channels()
	if in == m.channels {
		return m.src.ReadSamples(dst)
	}

	if len(dst)%m.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	frames := len(dst) / m.channels
	need := frames * in
	if cap(m.tmp) < need {
		m.tmp = make([]float32, need)
	}

	n, err := m.src.ReadSamples(m.tmp[:need])
	if n == 0 {
		return 0, err
	}
	got := n / in

	switch {
	case in == 1:
		for f := range got {
			v := m.tmp[f]
			for c := range m.channels {
				dst[f*m.channels+c] = v
			}
		}
	case m.channels == 1:
		inv := 1 / float32(in)
		for f := range got {
			var sum float32
			for c := range in {
				sum += m.tmp[f*in+c]
			}
			dst[f] = sum * inv
		}
	default:
		// N to M: fold the source down to mono and spread it out again.
		inv := 1 / float32(in)
		for f := range got {
			var sum float32
			for c := range in {
				sum += m.tmp[f*in+c]
			}
			for c := range m.channels {
				dst[f*m.channels+c] = sum * inv
			}
		}
	}

	return got * m.channels, err
}
