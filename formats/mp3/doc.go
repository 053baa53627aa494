// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MPEG-1 Layer 3 audio with github.com/hajimehoshi/go-mp3.
//
// go-mp3 always produces 16-bit stereo, so every Source from this package
// reports two channels at the file's sample rate. Use audio.Convert to reach
// another layout:
//
//	src, _ := mp3.Decoder{}.Decode(file)
//	mono := audio.Convert(src, audio.FloatFormat(44100, 1))
package mp3
