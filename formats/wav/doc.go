// SPDX-License-Identifier: EPL-2.0

// Package wav reads and writes PCM 16-bit WAV files.
//
// # Decoding
//
// Decoder walks the RIFF chunk list, skips chunks it does not know and
// yields an audio.Source over the data chunk:
//
//	src, err := wav.Decoder{}.Decode(file)
//	buf := make([]float32, 4096)
//	n, err := src.ReadSamples(buf)
//
// Only uncompressed 16-bit PCM is accepted; anything else is reported as
// ErrOnlyPCM16bitSupported.
//
// # Writing whole streams
//
// WritePCM16 writes a complete file from interleaved int16 samples, and
// WriteWAV16 is its mono shorthand:
//
//	err := wav.WritePCM16(file, 44100, 2, samples)
//
// # Recording
//
// Recorder appends float frames block by block through the go-audio WAV
// encoder and finalizes the header on Close. A block that fails to reach the
// disk is cut off again, so the file on disk always ends on a frame boundary:
//
//	rec, err := wav.NewRecorder(path, audio.FloatFormat(44100, 2))
//	for block := range blocks {
//	    _ = rec.Write(block)
//	}
//	err = rec.Close()
package wav
