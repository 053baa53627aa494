// SPDX-License-Identifier: EPL-2.0

package tap

import "math"

const (
	meterGain    = 5
	meterCeiling = 1
)

// Amplitude is the meter value of one block: the RMS of the first channel
// times 5, capped at 1. It is a display calibration, not a loudness measure.
func Amplitude(samples []float32, channels int) float32 {
	if channels < 1 {
		channels = 1
	}

	n := len(samples) / channels
	if n == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < n*channels; i += channels {
		v := float64(samples[i])
		sum += v * v
	}

	return float32(math.Min(meterGain*math.Sqrt(sum/float64(n)), meterCeiling))
}
