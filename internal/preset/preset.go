// SPDX-License-Identifier: EPL-2.0

// Package preset reads effect settings from YAML.
//
//	name: small hall
//	pitch: -200
//	reverb_mix: 35
//	eq:
//	  low: 3
//	  high: -2
//	mic_volume: 0.8
//
// Omitted fields leave the current value alone. Unknown fields are an error.
package preset

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// EQ holds band gains in dB.
type EQ struct {
	Low  *float32 `yaml:"low"`
	Mid  *float32 `yaml:"mid"`
	High *float32 `yaml:"high"`
}

// Preset is one set of effect values.
type Preset struct {
	Name         string   `yaml:"name"`
	Pitch        *float32 `yaml:"pitch"`
	ReverbMix    *float32 `yaml:"reverb_mix"`
	EQ           EQ       `yaml:"eq"`
	MicVolume    *float32 `yaml:"mic_volume"`
	PlayerVolume *float32 `yaml:"player_volume"`
}

// Target receives preset values. The setters return the value actually
// stored after clamping.
type Target interface {
	SetPitch(cents float32) float32
	SetReverbMix(percent float32) float32
	SetBandGain(band int, db float32) (float32, error)
	SetMicVolume(gain float32) float32
	SetPlayerVolume(gain float32) float32
}

// Load reads a preset file.
func Load(path string) (Preset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Preset{}, fmt.Errorf("preset: open %q: %w", path, err)
	}
	defer f.Close()

	p, err := Decode(f)
	if err != nil {
		return Preset{}, fmt.Errorf("preset: parse %q: %w", path, err)
	}

	return p, nil
}

// Decode reads one preset document from r.
func Decode(r io.Reader) (Preset, error) {
	var p Preset

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Preset{}, fmt.Errorf("preset: decode yaml: %w", err)
	}

	return p, nil
}

// Encode writes p as YAML.
func Encode(w io.Writer, p Preset) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(p); err != nil {
		return err
	}

	return enc.Close()
}

// Apply pushes every set field of p to t and returns p with the stored
// values.
func (p Preset) Apply(t Target) (Preset, error) {
	out := p

	set := func(v *float32, fn func(float32) float32) *float32 {
		if v == nil {
			return nil
		}
		got := fn(*v)
		return &got
	}

	out.Pitch = set(p.Pitch, t.SetPitch)
	out.ReverbMix = set(p.ReverbMix, t.SetReverbMix)
	out.MicVolume = set(p.MicVolume, t.SetMicVolume)
	out.PlayerVolume = set(p.PlayerVolume, t.SetPlayerVolume)

	bands := []**float32{&out.EQ.Low, &out.EQ.Mid, &out.EQ.High}
	for i, b := range bands {
		if *b == nil {
			continue
		}
		got, err := t.SetBandGain(i, **b)
		if err != nil {
			return out, fmt.Errorf("preset %q: band %d: %w", p.Name, i, err)
		}
		*b = &got
	}

	return out, nil
}

// Float returns a pointer to v for building presets in code.
func Float(v float32) *float32 { return &v }
