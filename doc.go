// SPDX-License-Identifier: EPL-2.0

// Package audrig is a real-time audio engine.
//
// An Engine owns a signal graph rendered by a duplex audio device. A decoded
// file plays through a pitch shifter, a three band equalizer and a reverb;
// the microphone is mixed in beside it. The mix goes to the speakers and can
// be recorded to a WAV file while its level is metered, then exported to
// Opus in an Ogg container.
//
// # Quick Start
//
//	dev := miniaudio.New(512)
//	eng, err := audrig.New(audrig.DefaultConfig(os.TempDir()), dev)
//	if err != nil {
//		return err
//	}
//	defer eng.Close()
//
//	if err := eng.Start(); err != nil {
//		return err
//	}
//	if err := eng.LoadFile("song.mp3"); err != nil {
//		return err
//	}
//	eng.SetPitch(1200)
//	eng.SetReverbMix(50)
//	eng.TogglePlayback()
//
// # Loading Sources
//
// LoadFile picks a decoder by extension from formats.DefaultRegistry (WAV,
// MP3, Ogg Vorbis and AIFF) and converts the stream to the working format of
// the graph. ConvertPCM16 runs the same pipeline for callers that want 16-bit
// samples instead:
//
//	src, _ := wav.Decoder{}.Decode(file)
//	pcm, _ := audrig.ConvertPCM16(src, audio.PCM16Format(8000, 1), 0)
//
// # Parameters
//
// Setters never fail for out of range values: they clamp and return what
// was stored. Changes reach the render thread at the next cycle.
//
// # Loopback
//
// The loopback package is a separate mode that copies microphone frames to
// the speakers untouched, in audio.LoopbackFormat.
//
// See the subpackages for details.
package audrig
