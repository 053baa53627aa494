// SPDX-License-Identifier: EPL-2.0

// Package hal abstracts a duplex audio device driven by its own clock.
//
// The device calls a registered RenderFunc on its real-time thread whenever
// the output bus needs frames. Inside that callback the renderer may pull the
// matching capture frames with Render(InputBus, ...). The callback must not
// block or allocate.
package hal

import (
	"fmt"

	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/utils"
)

// Bus identifies one direction of the device.
type Bus int

const (
	OutputBus Bus = 0
	InputBus  Bus = 1
)

func (b Bus) String() string {
	switch b {
	case OutputBus:
		return "output"
	case InputBus:
		return "input"
	default:
		return fmt.Sprintf("bus(%d)", int(b))
	}
}

// Valid reports whether b names a real bus.
func (b Bus) Valid() bool { return b == OutputBus || b == InputBus }

// Status is the result code a render callback hands back to the device.
type Status int32

const (
	StatusOK Status = iota
	// StatusNoData means the capture side had nothing for this cycle.
	StatusNoData
	// StatusAllocationFailure means a preallocated region was too small.
	StatusAllocationFailure
	// StatusNotRunning means the device was pulled outside a render cycle.
	StatusNotRunning
	// StatusInvalidBus means a pull named a disabled or unknown bus.
	StatusInvalidBus
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoData:
		return "no data"
	case StatusAllocationFailure:
		return "allocation failure"
	case StatusNotRunning:
		return "not running"
	case StatusInvalidBus:
		return "invalid bus"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Err maps a failed status onto the engine error taxonomy, nil for StatusOK.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusAllocationFailure:
		return fmt.Errorf("%w: %s", audio.ErrAllocationFailure, s)
	default:
		return fmt.Errorf("%w: %s", audio.ErrRenderFailure, s)
	}
}

// Buffer is one raw, interleaved region handed over by the device.
type Buffer struct {
	Channels int
	Data     []byte
}

// BufferList is the set of regions of one render cycle. Devices in this
// package use a single interleaved buffer, but renderers must cope with zero.
type BufferList struct {
	Buffers []Buffer
}

// NewBufferList preallocates one buffer holding frames frames of f.
func NewBufferList(f audio.Format, frames int) *BufferList {
	return &BufferList{
		Buffers: []Buffer{{
			Channels: f.Channels,
			Data:     make([]byte, frames*f.FrameBytes()),
		}},
	}
}

// Bytes is the total size of all regions.
func (l *BufferList) Bytes() int {
	n := 0
	for _, b := range l.Buffers {
		n += len(b.Data)
	}

	return n
}

// RenderFunc fills out with frames frames for the output bus.
type RenderFunc func(frames int, out *BufferList) Status

// Interface is a claimable duplex device.
type Interface interface {
	// Claim takes exclusive ownership. A device that is already owned
	// returns ErrInUse.
	Claim() error
	Release() error

	EnableIO(bus Bus, enable bool) error
	SetFormat(bus Bus, f audio.Format) error
	SetRenderCallback(fn RenderFunc) error

	Start() error
	Stop() error

	// Render pulls frames of the current cycle's capture data for bus into
	// dst. It is only valid from inside the render callback.
	Render(bus Bus, frames int, dst *BufferList) Status
}

// EncodeSamples writes samples into dst using the sample encoding of f and
// returns the bytes written.
func EncodeSamples(dst []byte, f audio.Format, samples []float32) int {
	if f.Encoding == audio.EncodingInt {
		return utils.EncodePCM16(dst, samples)
	}

	return utils.EncodeFloat32(dst, samples)
}

// DecodeSamples reads samples of encoding f from src and returns the number
// of samples decoded.
func DecodeSamples(dst []float32, f audio.Format, src []byte) int {
	if f.Encoding == audio.EncodingInt {
		return utils.DecodePCM16(dst, src)
	}

	return utils.DecodeFloat32(dst, src)
}
