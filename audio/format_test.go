// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"testing"
)

func TestLoopbackFormat(t *testing.T) {
	t.Parallel()

	f := LoopbackFormat
	if f.SampleRate != 44100 || f.Channels != 1 || f.BitDepth != 16 || f.Encoding != EncodingInt {
		t.Errorf("LoopbackFormat = %v, want 44100 Hz mono 16-bit int", f)
	}

	if got := f.FrameBytes(); got != 2 {
		t.Errorf("LoopbackFormat.FrameBytes() = %d, want 2", got)
	}
}

func TestFormat_FrameBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		format Format
		want   int
	}{
		{name: "mono float", format: FloatFormat(48000, 1), want: 4},
		{name: "stereo float", format: FloatFormat(44100, 2), want: 8},
		{name: "stereo int16", format: Format{SampleRate: 44100, Channels: 2, BitDepth: 16, Encoding: EncodingInt}, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.format.FrameBytes(); got != tt.want {
				t.Errorf("FrameBytes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormat_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{name: "float stereo", format: FloatFormat(44100, 2)},
		{name: "loopback", format: LoopbackFormat},
		{name: "zero rate", format: FloatFormat(0, 2), wantErr: true},
		{name: "no channels", format: FloatFormat(44100, 0), wantErr: true},
		{name: "surround", format: FloatFormat(44100, 6), wantErr: true},
		{name: "24-bit int", format: Format{SampleRate: 44100, Channels: 1, BitDepth: 24, Encoding: EncodingInt}, wantErr: true},
		{name: "64-bit float", format: Format{SampleRate: 44100, Channels: 1, BitDepth: 64, Encoding: EncodingFloat}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.format.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrConfiguration) {
				t.Errorf("Validate() error = %v, want %v", err, ErrConfiguration)
			}
		})
	}
}

func TestFormat_Compatible(t *testing.T) {
	t.Parallel()

	a := FloatFormat(44100, 2)
	if !a.Compatible(FloatFormat(44100, 2)) {
		t.Error("identical formats reported incompatible")
	}
	if a.Compatible(FloatFormat(48000, 2)) {
		t.Error("different rates reported compatible")
	}
	if a.Compatible(FloatFormat(44100, 1)) {
		t.Error("different channel counts reported compatible")
	}
}

func TestBuffer(t *testing.T) {
	t.Parallel()

	f := FloatFormat(44100, 2)
	b := NewBuffer(f, 512)

	if b.Borrowed() {
		t.Error("NewBuffer() returned a borrowed buffer")
	}
	if got := b.Capacity(); got != 512 {
		t.Errorf("Capacity() = %d, want 512", got)
	}

	b.Frames = 3
	for i := range b.Data() {
		b.Samples[i] = 1
	}
	if got := len(b.Data()); got != 6 {
		t.Errorf("len(Data()) = %d, want 6", got)
	}

	b.Clear()
	for i, v := range b.Data() {
		if v != 0 {
			t.Errorf("Data()[%d] = %v after Clear(), want 0", i, v)
		}
	}

	region := make([]float32, 8)
	view := BorrowBuffer(f, region, 4)
	if !view.Borrowed() {
		t.Error("BorrowBuffer() returned an owned buffer")
	}
	view.Data()[0] = 0.25
	if region[0] != 0.25 {
		t.Error("borrowed buffer does not alias the caller region")
	}
}

func TestClip_Frames(t *testing.T) {
	t.Parallel()

	c := Clip{Format: FloatFormat(8000, 2), Samples: make([]float32, 10)}
	if got := c.Frames(); got != 5 {
		t.Errorf("Clip.Frames() = %d, want 5", got)
	}

	var empty Clip
	if got := empty.Frames(); got != 0 {
		t.Errorf("empty Clip.Frames() = %d, want 0", got)
	}
}
