// SPDX-License-Identifier: EPL-2.0

package utils

import (
	"math"
	"testing"
)

func TestFloat32ToInt16(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input float32
		want  int16
	}{
		{name: "zero", input: 0.0, want: 0},
		{name: "max positive", input: 1.0, want: math.MaxInt16},
		{name: "max negative", input: -1.0, want: -math.MaxInt16},
		{name: "half positive", input: 0.5, want: 16383},
		{name: "half negative", input: -0.5, want: -16383},
		{name: "small positive", input: 0.001, want: 32},
		{name: "clamp over max", input: 1.5, want: math.MaxInt16},
		{name: "clamp over min", input: -1.5, want: -math.MaxInt16},
		{name: "clamp way over max", input: 100.0, want: math.MaxInt16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Float32ToInt16(tt.input); got != tt.want {
				t.Errorf("Float32ToInt16(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFloat32ToInt16Monotonic(t *testing.T) {
	t.Parallel()

	prev := Float32ToInt16(-1.0)
	for f := -0.99; f <= 1.0; f += 0.01 {
		curr := Float32ToInt16(float32(f))
		if curr < prev {
			t.Errorf("Float32ToInt16 not monotonic: f=%v gives %v, but previous was %v", f, curr, prev)
		}
		prev = curr
	}
}

func TestInt16ToFloat32(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input int16
		want  float32
	}{
		{input: 0, want: 0},
		{input: math.MinInt16, want: -1},
		{input: 16384, want: 0.5},
		{input: -16384, want: -0.5},
	}

	for _, tt := range tests {
		if got := Int16ToFloat32(tt.input); got != tt.want {
			t.Errorf("Int16ToFloat32(%d) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0, 0.25, -0.25, 0.999, -0.999}
	raw := make([]byte, len(in)*2)

	if n := EncodePCM16(raw, in); n != len(raw) {
		t.Fatalf("EncodePCM16() = %d, want %d", n, len(raw))
	}

	out := make([]float32, len(in))
	if n := DecodePCM16(out, raw); n != len(in) {
		t.Fatalf("DecodePCM16() = %d, want %d", n, len(in))
	}

	for i := range in {
		if math.Abs(float64(out[i]-in[i])) > 1.0/16384 {
			t.Errorf("sample %d = %v, want ≈%v", i, out[i], in[i])
		}
	}
}

func TestEncodePCM16_ShortDst(t *testing.T) {
	t.Parallel()

	raw := make([]byte, 3)
	if n := EncodePCM16(raw, []float32{0.1, 0.2, 0.3}); n != 2 {
		t.Errorf("EncodePCM16() = %d, want 2", n)
	}
}

func TestPCM16_ZeroAllocs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping allocation test in short mode")
	}

	samples := make([]float32, 1024)
	raw := make([]byte, 2048)

	allocs := testing.AllocsPerRun(100, func() {
		EncodePCM16(raw, samples)
		DecodePCM16(samples, raw)
	})

	if allocs > 0 {
		t.Errorf("PCM16 conversion allocated %v times, want 0", allocs)
	}
}

func BenchmarkEncodePCM16(b *testing.B) {
	samples := make([]float32, 4096)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i) * 0.1))
	}
	raw := make([]byte, len(samples)*2)

	b.ReportAllocs()
	for range b.N {
		EncodePCM16(raw, samples)
	}
}
