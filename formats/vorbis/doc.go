// SPDX-License-Identifier: EPL-2.0

// Package vorbis decodes Ogg Vorbis streams with github.com/jfreymuth/oggvorbis.
//
// Samples come out interleaved at the stream's native rate and channel
// count. Reads are trimmed to whole frames.
package vorbis
