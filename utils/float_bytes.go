// SPDX-License-Identifier: EPL-2.0

package utils

import (
	"encoding/binary"
	"math"
)

// EncodeFloat32 packs samples as little endian IEEE 754 into dst and returns
// the number of bytes written.
func EncodeFloat32(dst []byte, samples []float32) int {
	n := min(len(dst)/4, len(samples))
	for i := range n {
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(samples[i]))
	}

	return n * 4
}

// DecodeFloat32 unpacks little endian IEEE 754 from src into dst and returns
// the number of samples decoded.
func DecodeFloat32(dst []float32, src []byte) int {
	n := min(len(src)/4, len(dst))
	for i := range n {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
	}

	return n
}
