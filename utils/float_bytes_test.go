// SPDX-License-Identifier: EPL-2.0

package utils

import "testing"

func TestFloat32Bytes_RoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0, 1, -1, 0.25, -0.125, 3.5}
	buf := make([]byte, len(in)*4)

	if n := EncodeFloat32(buf, in); n != len(buf) {
		t.Fatalf("EncodeFloat32() = %d, want %d", n, len(buf))
	}

	out := make([]float32, len(in))
	if n := DecodeFloat32(out, buf); n != len(in) {
		t.Fatalf("DecodeFloat32() = %d, want %d", n, len(in))
	}

	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestFloat32Bytes_ShortBuffers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dst     int
		samples int
		want    int
	}{
		{name: "dst short", dst: 7, samples: 4, want: 4},
		{name: "samples short", dst: 32, samples: 2, want: 8},
		{name: "empty", dst: 0, samples: 3, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := EncodeFloat32(make([]byte, tt.dst), make([]float32, tt.samples)); got != tt.want {
				t.Errorf("EncodeFloat32() = %d, want %d", got, tt.want)
			}
		})
	}
}
