// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"fmt"
	"sync/atomic"

	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/hal"
)

// Kind is the processing role of a node.
type Kind int

const (
	Player Kind = iota
	PitchShift
	Equalizer
	Reverb
	Mixer
	InputCapture
	Converter
)

func (k Kind) String() string {
	switch k {
	case Player:
		return "player"
	case PitchShift:
		return "pitch-shift"
	case Equalizer:
		return "equalizer"
	case Reverb:
		return "reverb"
	case Mixer:
		return "mixer"
	case InputCapture:
		return "input-capture"
	case Converter:
		return "converter"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MaxMixerInputs is the number of input ports of a Mixer.
const MaxMixerInputs = 8

// inputPorts is the number of input ports of k.
func (k Kind) inputPorts() int {
	switch k {
	case Player, InputCapture:
		return 0
	case Mixer:
		return MaxMixerInputs
	default:
		return 1
	}
}

// NodeSpec declares one node of a topology.
//
// Format is the float stream the node produces. For InputCapture it is the
// hardware capture format instead; a Converter is inserted behind the capture
// node when that differs from its consumer. Gain selects the volume slot of a
// Mixer; ParamNone mixes at unity.
type NodeSpec struct {
	ID     string
	Kind   Kind
	Format audio.Format
	Gain   Param
}

// stream is the float format a node hands to its consumers.
func (s NodeSpec) stream() audio.Format {
	return audio.FloatFormat(s.Format.SampleRate, s.Format.Channels)
}

// Connection is a directed edge from an output port to an input port.
type Connection struct {
	From     string
	FromPort int
	To       string
	ToPort   int
}

func (c Connection) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d", c.From, c.FromPort, c.To, c.ToPort)
}

// TapFunc observes the output of a node once per render cycle. It runs on the
// render thread with a borrowed buffer that is only valid during the call.
type TapFunc func(buf audio.Buffer)

type tapEntry struct {
	fn TapFunc
}

// cycle carries what every processor needs for one render call.
type cycle struct {
	frames        int
	captureFrames int
	hw            hal.Interface
	values        *Values
}

type processor interface {
	// render fills out from inputs. A non-OK status aborts the cycle.
	render(c *cycle, inputs []*audio.Buffer, out *audio.Buffer) hal.Status
	// apply picks up new parameter values at a buffer boundary.
	apply(v *Values)
	reset()
}

type node struct {
	spec   NodeSpec
	proc   processor
	out    *audio.Buffer
	inputs []*audio.Buffer
	tap    atomic.Pointer[tapEntry]
}

func (n *node) runTap() {
	if e := n.tap.Load(); e != nil {
		e.fn(audio.BorrowBuffer(n.out.Format, n.out.Data(), n.out.Frames))
	}
}
