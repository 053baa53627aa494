// SPDX-License-Identifier: EPL-2.0

package utils

import "encoding/binary"

// Float32ToInt16 clamps x to [-1, 1] and scales it to 16-bit PCM.
func Float32ToInt16(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}

	// 32767 keeps +1.0 from overflowing
	return int16(x * 32767.0)
}

// Int16ToFloat32 maps 16-bit PCM to [-1, 1).
func Int16ToFloat32(v int16) float32 {
	return float32(v) / 32768.0
}

// EncodePCM16 writes samples as packed little endian int16 into dst and
// returns the number of bytes written. It stops at whichever runs out first.
func EncodePCM16(dst []byte, samples []float32) int {
	n := min(len(dst)/2, len(samples))
	for i := range n {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(Float32ToInt16(samples[i])))
	}

	return n * 2
}

// DecodePCM16 reads packed little endian int16 from src into dst and returns
// the number of samples decoded.
func DecodePCM16(dst []float32, src []byte) int {
	n := min(len(src)/2, len(dst))
	for i := range n {
		dst[i] = Int16ToFloat32(int16(binary.LittleEndian.Uint16(src[2*i:])))
	}

	return n
}
