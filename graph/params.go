// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Param names one slot of the parameter store.
type Param int

const (
	ParamNone Param = iota
	ParamPitch
	ParamReverbMix
	ParamLowGain
	ParamMidGain
	ParamHighGain
	ParamMicVolume
	ParamPlayerVolume

	numParams
)

// Bounds is the closed range a parameter is clamped into.
type Bounds struct {
	Min, Max, Default float32
}

var paramBounds = [numParams]Bounds{
	ParamNone:         {Min: 1, Max: 1, Default: 1},
	ParamPitch:        {Min: -2400, Max: 2400, Default: 0},
	ParamReverbMix:    {Min: 0, Max: 100, Default: 0},
	ParamLowGain:      {Min: -12, Max: 12, Default: 0},
	ParamMidGain:      {Min: -12, Max: 12, Default: 0},
	ParamHighGain:     {Min: -12, Max: 12, Default: 0},
	ParamMicVolume:    {Min: 0, Max: 1, Default: 1},
	ParamPlayerVolume: {Min: 0, Max: 1, Default: 1},
}

var paramNames = [numParams]string{
	ParamNone:         "none",
	ParamPitch:        "pitch",
	ParamReverbMix:    "reverb mix",
	ParamLowGain:      "low gain",
	ParamMidGain:      "mid gain",
	ParamHighGain:     "high gain",
	ParamMicVolume:    "mic volume",
	ParamPlayerVolume: "player volume",
}

func (p Param) String() string {
	if p < 0 || p >= numParams {
		return fmt.Sprintf("Param(%d)", int(p))
	}
	return paramNames[p]
}

// Bounds of p. Unknown params get the unity range of ParamNone.
func (p Param) Bounds() Bounds {
	if p < 0 || p >= numParams {
		return paramBounds[ParamNone]
	}
	return paramBounds[p]
}

// Clamp pulls v into b. NaN falls back to the default.
func (b Bounds) Clamp(v float32) float32 {
	if v != v {
		return b.Default
	}
	return min(max(v, b.Min), b.Max)
}

// Values is one consistent read of every slot.
type Values [numParams]float32

// Get is v[p] with a bounds check.
func (v *Values) Get(p Param) float32 {
	if p <= ParamNone || p >= numParams {
		return 1
	}
	return v[p]
}

// Params is the lock-free store shared by the control goroutines and the
// render thread. Each slot holds float32 bits; a version counter bumps after
// every store so the renderer only re-reads when something changed.
type Params struct {
	slots   [numParams]atomic.Uint32
	version atomic.Uint64
}

// NewParams returns a store holding the defaults.
func NewParams() *Params {
	p := &Params{}
	for i := range p.slots {
		p.slots[i].Store(math.Float32bits(paramBounds[i].Default))
	}

	return p
}

// Set clamps v into the bounds of param, stores it and returns the stored
// value. ParamNone and unknown params are ignored.
func (p *Params) Set(param Param, v float32) float32 {
	if param <= ParamNone || param >= numParams {
		return 1
	}

	v = paramBounds[param].Clamp(v)
	p.slots[param].Store(math.Float32bits(v))
	p.version.Add(1)

	return v
}

// Get is the last value stored for param.
func (p *Params) Get(param Param) float32 {
	if param <= ParamNone || param >= numParams {
		return 1
	}
	return math.Float32frombits(p.slots[param].Load())
}

// Version changes whenever any slot is written.
func (p *Params) Version() uint64 { return p.version.Load() }

// Snapshot copies every slot into dst and returns the version read before
// the copy. A write racing with the copy bumps the version again, so the
// next boundary picks it up.
func (p *Params) Snapshot(dst *Values) uint64 {
	v := p.version.Load()
	for i := range p.slots {
		dst[i] = math.Float32frombits(p.slots[i].Load())
	}
	dst[ParamNone] = 1

	return v
}
