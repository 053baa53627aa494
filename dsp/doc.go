// SPDX-License-Identifier: EPL-2.0

// Package dsp holds the effect kernels used by the signal graph: biquad
// shelving and peaking filters, a Freeverb style reverb and a delay line
// pitch shifter. Filter design, the biquad sections and the reverb tanks come
// from github.com/cwbudde/algo-dsp; this package adapts them to interleaved
// float32 frames.
//
// Every processor works in place on interleaved float32 frames of up to
// MaxChannels channels. All state is sized by the constructor, so Process
// never allocates and is safe to call from a render callback.
package dsp

// MaxChannels is the widest interleaved layout the processors accept.
const MaxChannels = 2
