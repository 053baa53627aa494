// SPDX-License-Identifier: EPL-2.0

package dsp

import (
	"math"
	"testing"
)

func TestOctavesToQ(t *testing.T) {
	t.Parallel()

	if got := OctavesToQ(1); math.Abs(got-math.Sqrt2) > 1e-9 {
		t.Errorf("OctavesToQ(1) = %v, want %v", got, math.Sqrt2)
	}
}

func TestDesign_Response(t *testing.T) {
	t.Parallel()

	const rate = 48000

	tests := []struct {
		name   string
		shape  Shape
		freq   float64
		gain   float64
		probe  float64
		want   float64
		within float64
	}{
		{name: "peak center", shape: Peak, freq: 1000, gain: 6, probe: 1000, want: 6, within: 0.01},
		{name: "peak far away", shape: Peak, freq: 1000, gain: 6, probe: 15000, want: 0, within: 0.2},
		{name: "low shelf below", shape: LowShelf, freq: 80, gain: 12, probe: 10, want: 12, within: 0.5},
		{name: "low shelf above", shape: LowShelf, freq: 80, gain: 12, probe: 5000, want: 0, within: 0.1},
		{name: "high shelf above", shape: HighShelf, freq: 10000, gain: -12, probe: 23900, want: -12, within: 0.5},
		{name: "high shelf below", shape: HighShelf, freq: 10000, gain: -12, probe: 100, want: 0, within: 0.1},
		{name: "flat peak", shape: Peak, freq: 1000, gain: 0, probe: 1000, want: 0, within: 1e-9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := Design(tt.shape, tt.freq, tt.gain, 1, rate)
			got := c.MagnitudeDB(tt.probe, rate)

			if math.Abs(got-tt.want) > tt.within {
				t.Errorf("MagnitudeDB(%v) = %.3f dB, want %.3f ±%v", tt.probe, got, tt.want, tt.within)
			}
		})
	}
}

func TestDesign_OutOfRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		freq float64
		rate float64
	}{
		{name: "above nyquist", freq: 10000, rate: 16000},
		{name: "zero frequency", freq: 0, rate: 48000},
		{name: "zero rate", freq: 1000, rate: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Design(HighShelf, tt.freq, 6, 1, tt.rate); got != Identity {
				t.Errorf("Design() = %+v, want Identity", got)
			}
		})
	}
}

func TestShape_String(t *testing.T) {
	t.Parallel()

	for shape, want := range map[Shape]string{
		LowShelf:  "low-shelf",
		Peak:      "parametric",
		HighShelf: "high-shelf",
		Shape(9):  "unknown",
	} {
		if got := shape.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", shape, got, want)
		}
	}
}

func TestFilter_IdentityPassesThrough(t *testing.T) {
	t.Parallel()

	b := NewFilter(Identity)
	buf := []float32{0.1, -0.2, 0.3, -0.4, 0.5, -0.6}
	want := append([]float32(nil), buf...)

	b.Process(buf, 2)

	for i := range buf {
		if buf[i] != want[i] {
			t.Errorf("buf[%d] = %v, want %v", i, buf[i], want[i])
		}
	}
}

func TestFilter_ChannelsIndependent(t *testing.T) {
	t.Parallel()

	b := NewFilter(Design(Peak, 1000, 12, 1, 48000))

	// impulse on the left only
	buf := make([]float32, 64)
	buf[0] = 1
	b.Process(buf, 2)

	for i := 1; i < len(buf); i += 2 {
		if buf[i] != 0 {
			t.Fatalf("right sample %d = %v, want 0", i, buf[i])
		}
	}
}

func TestFilter_Reset(t *testing.T) {
	t.Parallel()

	b := NewFilter(Design(LowShelf, 80, 12, 1, 48000))
	b.Process([]float32{1, 1, 1, 1}, 1)
	b.Reset()

	buf := make([]float32, 8)
	b.Process(buf, 1)

	for i, v := range buf {
		if v != 0 {
			t.Errorf("buf[%d] = %v after Reset, want 0", i, v)
		}
	}
}

func TestFilter_NoAllocs(t *testing.T) {
	b := NewFilter(Design(Peak, 1000, 3, 1, 44100))
	buf := make([]float32, 1024)

	allocs := testing.AllocsPerRun(100, func() {
		b.Process(buf, 2)
	})
	if allocs != 0 {
		t.Errorf("Process allocated %v times per run", allocs)
	}
}

func TestFilter_LongBufferMatchesShort(t *testing.T) {
	t.Parallel()

	c := Design(Peak, 1000, 9, 1, 48000)
	long := NewFilter(c)
	short := NewFilter(c)

	// more frames than one scratch block, processed in one call and in pieces
	buf := make([]float32, 2*(blockFrames*3+17))
	for i := range buf {
		buf[i] = float32(math.Sin(float64(i) / 7))
	}
	pieces := append([]float32(nil), buf...)

	long.Process(buf, 2)
	for start := 0; start < len(pieces); start += 2 * 100 {
		short.Process(pieces[start:min(start+2*100, len(pieces))], 2)
	}

	for i := range buf {
		if math.Abs(float64(buf[i]-pieces[i])) > 1e-6 {
			t.Fatalf("sample %d = %v in one call, %v in pieces", i, buf[i], pieces[i])
		}
	}
}

func TestFilter_SetCoefficientsKeepsState(t *testing.T) {
	t.Parallel()

	f := NewFilter(Design(LowShelf, 80, 12, 1, 48000))
	f.Process([]float32{1, 1, 1, 1}, 1)
	f.SetCoefficients(Identity)

	if f.Coefficients() != Identity {
		t.Fatalf("Coefficients() = %+v", f.Coefficients())
	}

	// the delay line still carries the previous response
	buf := []float32{0}
	f.Process(buf, 1)
	if buf[0] == 0 {
		t.Error("state was cleared by SetCoefficients")
	}
}
