// SPDX-License-Identifier: EPL-2.0

// Package formats wires the bundled decoders into an audio.Registry.
package formats

import (
	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/formats/aiff"
	"github.com/ik5/audrig/formats/mp3"
	"github.com/ik5/audrig/formats/vorbis"
	"github.com/ik5/audrig/formats/wav"
)

// DefaultRegistry returns a registry that knows wav, mp3, ogg and aiff.
func DefaultRegistry() *audio.Registry {
	r := audio.NewRegistry()
	r.Register("wav", wav.Decoder{})
	r.Register("mp3", mp3.Decoder{})
	r.Register("ogg", vorbis.Decoder{})
	r.Register("aiff", aiff.Decoder{})
	r.Register("aif", aiff.Decoder{})

	return r
}
