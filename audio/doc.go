// SPDX-License-Identifier: EPL-2.0

// Package audio holds the PCM primitives shared by the engine.
//
// # Formats and buffers
//
// Format describes a stream: sample rate, channel count, bit depth and
// sample representation. Nodes in a signal graph only connect when their
// formats are Compatible; anything else needs an explicit conversion step.
// LoopbackFormat is the fixed mono 44.1 kHz 16-bit format of the hardware
// loopback path.
//
// Buffer tags a block of interleaved float32 frames with its Format. Buffers
// are either owned (NewBuffer) or borrowed views of a caller region
// (BorrowBuffer); render code preallocates owned buffers once and passes
// borrowed views to callbacks.
//
// # Sources and decoding
//
// A Source is a pull based stream of float32 samples in [-1, 1]:
//
//	type Source interface {
//	    SampleRate() int
//	    Channels() int
//	    ReadSamples(dst []float32) (int, error)
//	    BufSize() int
//	    Close() error
//	}
//
// Decoders turn a reader into a Source and are looked up by extension in a
// Registry:
//
//	registry := audio.NewRegistry()
//	registry.Register("wav", wav.Decoder{})
//	src, err := registry.Open("voice.wav")
//
// Resampler changes the rate with Catmull-Rom interpolation, ChannelMapper
// changes the channel count, and Convert chains whichever of the two a
// target Format needs. ReadClip drains such a pipeline into a Clip, the
// in-memory form a player node schedules.
//
// # Errors
//
// errors.go defines the engine's error taxonomy (ErrConfiguration,
// ErrEngineStart, ErrNoSourceLoaded, ErrNoRecordingAvailable,
// ErrExportFailed, ErrRenderFailure, ErrAllocationFailure). Packages wrap
// them with fmt.Errorf and callers match with errors.Is.
package audio
