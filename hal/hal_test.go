// SPDX-License-Identifier: EPL-2.0

package hal

import (
	"errors"
	"testing"

	"github.com/ik5/audrig/audio"
)

func TestStatus_Err(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status Status
		want   error
	}{
		{status: StatusOK, want: nil},
		{status: StatusNoData, want: audio.ErrRenderFailure},
		{status: StatusNotRunning, want: audio.ErrRenderFailure},
		{status: StatusAllocationFailure, want: audio.ErrAllocationFailure},
		{status: Status(-50), want: audio.ErrRenderFailure},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			t.Parallel()

			err := tt.status.Err()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Err() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Err() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBus(t *testing.T) {
	t.Parallel()

	if OutputBus.String() != "output" || InputBus.String() != "input" {
		t.Errorf("names = %q %q", OutputBus, InputBus)
	}
	if Bus(7).Valid() {
		t.Error("Bus(7).Valid() = true")
	}
}

func TestBufferList(t *testing.T) {
	t.Parallel()

	l := NewBufferList(audio.FloatFormat(48000, 2), 128)
	if got, want := l.Bytes(), 128*8; got != want {
		t.Errorf("Bytes() = %d, want %d", got, want)
	}
	if l.Buffers[0].Channels != 2 {
		t.Errorf("Channels = %d, want 2", l.Buffers[0].Channels)
	}

	var empty BufferList
	if empty.Bytes() != 0 {
		t.Errorf("empty Bytes() = %d", empty.Bytes())
	}
}

func TestSamplesCodec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		f    audio.Format
		size int
	}{
		{name: "pcm16", f: audio.LoopbackFormat, size: 2},
		{name: "float", f: audio.FloatFormat(44100, 1), size: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := []float32{0, 0.5, -0.5}
			raw := make([]byte, len(in)*tt.size)
			if n := EncodeSamples(raw, tt.f, in); n != len(raw) {
				t.Fatalf("EncodeSamples() = %d, want %d", n, len(raw))
			}

			out := make([]float32, len(in))
			if n := DecodeSamples(out, tt.f, raw); n != len(in) {
				t.Fatalf("DecodeSamples() = %d, want %d", n, len(in))
			}

			for i := range in {
				if d := out[i] - in[i]; d > 1e-4 || d < -1e-4 {
					t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
				}
			}
		})
	}
}
