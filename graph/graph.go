// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/hal"
)

// DefaultMaxFrames bounds the frames of one render cycle when Config leaves
// MaxFrames at zero.
const DefaultMaxFrames = 4096

// Config describes the graph to build.
type Config struct {
	// Format is the working stream: sample rate and channel count of every
	// node but the capture.
	Format audio.Format
	// Capture is the hardware input format. Zero means Format.
	Capture audio.Format
	// Output is the hardware output format. It must match Format in rate and
	// channels but may use 16-bit samples. Zero means Format.
	Output audio.Format
	// MaxFrames is the largest cycle the graph preallocates for.
	MaxFrames int
	// Topology overrides DefaultTopology.
	Topology *Topology
}

// Stats are render counters, safe to read from any goroutine.
type Stats struct {
	Cycles     uint64
	Failures   uint64
	Underruns  uint64
	Overruns   uint64
	LastStatus hal.Status
}

// Graph owns the nodes of a validated topology and renders them on the
// device's callback.
type Graph struct {
	logger *slog.Logger

	format  audio.Format
	capture audio.Format
	output  audio.Format
	max     int

	params  *Params
	nodes   []*node
	byID    map[string]*node
	handles map[string]Node
	sink    *node
	convs   []*converter

	// render thread only
	values  Values
	version uint64
	cyc     cycle
	acc     int

	mu      sync.Mutex
	hw      hal.Interface
	running atomic.Bool

	cycles     atomic.Uint64
	failures   atomic.Uint64
	lastStatus atomic.Int32
}

// New validates the topology and builds every node with its buffers. Any
// invalid node, edge or format is an audio.ErrConfiguration.
func New(cfg Config) (*Graph, error) {
	f := audio.FloatFormat(cfg.Format.SampleRate, cfg.Format.Channels)
	if err := f.Validate(); err != nil {
		return nil, err
	}

	capture := cfg.Capture
	if capture == (audio.Format{}) {
		capture = f
	}

	output := cfg.Output
	if output == (audio.Format{}) {
		output = f
	}
	if err := output.Validate(); err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	if output.SampleRate != f.SampleRate || output.Channels != f.Channels {
		return nil, fmt.Errorf("%w: output %s does not match graph %s", audio.ErrConfiguration, output, f)
	}

	maxFrames := cfg.MaxFrames
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}

	topo := DefaultTopology(f, capture)
	if cfg.Topology != nil {
		topo = *cfg.Topology
	}
	topo = topo.withConverters()

	order, err := topo.order()
	if err != nil {
		return nil, err
	}

	g := &Graph{
		logger:  slog.Default().With("graph uuid", uuid.New()),
		format:  f,
		capture: capture,
		output:  output,
		max:     maxFrames,
		params:  NewParams(),
		byID:    make(map[string]*node, len(order)),
		handles: make(map[string]Node, len(order)),
	}

	for _, i := range order {
		spec := topo.Nodes[i]
		if spec.Kind == InputCapture {
			g.capture = spec.Format
		}

		n := &node{spec: spec, inputs: make([]*audio.Buffer, spec.Kind.inputPorts())}
		g.build(n)
		g.nodes = append(g.nodes, n)
		g.byID[spec.ID] = n
	}

	for _, e := range topo.Edges {
		g.byID[e.To].inputs[e.ToPort] = g.byID[e.From].out
	}
	g.sink = g.byID[topo.Sink]

	g.version = g.params.Snapshot(&g.values)
	for _, n := range g.nodes {
		n.proc.apply(&g.values)
	}
	g.cyc.values = &g.values

	g.logger.Debug("graph built", "format", f, "capture", g.capture, "output", output, "nodes", len(g.nodes))

	return g, nil
}

func (g *Graph) build(n *node) {
	spec := n.spec
	h := handle{n: n, params: g.params}
	frames := g.max

	switch spec.Kind {
	case Player:
		p := newPlayer()
		n.proc = p
		g.handles[spec.ID] = &PlayerNode{handle: h, p: p}
	case PitchShift:
		n.proc = newPitch(spec.stream())
		g.handles[spec.ID] = &PitchNode{h}
	case Equalizer:
		n.proc = newEqualizer(spec.stream())
		g.handles[spec.ID] = &EqualizerNode{h}
	case Reverb:
		n.proc = newReverb()
		g.handles[spec.ID] = &ReverbNode{h}
	case Mixer:
		n.proc = &mixer{gain: spec.Gain, volume: 1}
		g.handles[spec.ID] = &MixerNode{h}
	case InputCapture:
		frames = g.max*spec.Format.SampleRate/g.format.SampleRate + 2
		n.proc = newCapture(spec.Format, frames)
		g.handles[spec.ID] = h
	case Converter:
		c := newConverter(g.capture, spec.stream(), g.max)
		n.proc = c
		g.convs = append(g.convs, c)
		g.handles[spec.ID] = &ConverterNode{handle: h, c: c}
	}

	n.out = audio.NewBuffer(spec.stream(), frames)
}

// Format is the working stream format.
func (g *Graph) Format() audio.Format { return g.format }

// CaptureFormat is the hardware input format.
func (g *Graph) CaptureFormat() audio.Format { return g.capture }

// OutputFormat is the hardware output format.
func (g *Graph) OutputFormat() audio.Format { return g.output }

// MaxFrames is the largest cycle Render accepts.
func (g *Graph) MaxFrames() int { return g.max }

// Params is the shared parameter store.
func (g *Graph) Params() *Params { return g.params }

// Running reports whether Start succeeded and Stop has not run since.
func (g *Graph) Running() bool { return g.running.Load() }

// Start claims hw, enables both buses with the graph formats, registers
// Render and starts the device. A device that cannot be claimed is reported
// as audio.ErrEngineStart and not retried.
func (g *Graph) Start(hw hal.Interface) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.hw != nil {
		return ErrRunning
	}

	if err := hw.Claim(); err != nil {
		g.logger.Error("cannot claim audio hardware", "error", err)
		return fmt.Errorf("%w: %w", audio.ErrEngineStart, err)
	}

	g.cyc.hw = hw

	err := errors.Join(
		hw.EnableIO(hal.InputBus, true),
		hw.EnableIO(hal.OutputBus, true),
		hw.SetFormat(hal.InputBus, g.capture),
		hw.SetFormat(hal.OutputBus, g.output),
		hw.SetRenderCallback(g.Render),
	)
	if err == nil {
		err = hw.Start()
	}
	if err != nil {
		_ = hw.Release()
		g.cyc.hw = nil
		g.logger.Error("cannot start audio hardware", "error", err)

		return fmt.Errorf("%w: %w", audio.ErrEngineStart, err)
	}

	g.hw = hw
	g.running.Store(true)
	g.logger.Info("graph started", "format", g.format, "capture", g.capture, "output", g.output)

	return nil
}

// Stop halts the device and releases it. Stopping a stopped graph is a no-op.
func (g *Graph) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.hw == nil {
		return nil
	}

	err := errors.Join(g.hw.Stop(), g.hw.Release())
	g.hw = nil
	g.cyc.hw = nil
	g.running.Store(false)

	for _, n := range g.nodes {
		n.proc.reset()
	}
	g.acc = 0

	g.logger.Info("graph stopped", "cycles", g.cycles.Load(), "failures", g.failures.Load())

	return err
}

// Render processes one cycle into out. It runs on the device thread and never
// blocks or allocates. A failed capture pull aborts the cycle: its status is
// returned and out is left untouched.
func (g *Graph) Render(frames int, out *hal.BufferList) hal.Status {
	if frames <= 0 {
		return hal.StatusOK
	}
	if frames > g.max {
		return g.fail(hal.StatusAllocationFailure)
	}

	if g.params.Version() != g.version {
		g.version = g.params.Snapshot(&g.values)
		for _, n := range g.nodes {
			n.proc.apply(&g.values)
		}
	}

	g.cyc.frames = frames
	g.cyc.captureFrames = g.captureFrames(frames)

	for _, n := range g.nodes {
		if st := n.proc.render(&g.cyc, n.inputs, n.out); st != hal.StatusOK {
			return g.fail(st)
		}
		n.runTap()
	}

	if len(out.Buffers) > 0 {
		region := out.Buffers[0].Data
		if len(region) < frames*g.output.FrameBytes() {
			return g.fail(hal.StatusAllocationFailure)
		}
		hal.EncodeSamples(region, g.output, g.sink.out.Data())
	}

	g.cycles.Add(1)

	return hal.StatusOK
}

// captureFrames spreads the rate ratio over cycles so the capture pull
// matches the graph rate in the long run.
func (g *Graph) captureFrames(frames int) int {
	if g.capture.SampleRate == g.format.SampleRate {
		return frames
	}

	g.acc += frames * g.capture.SampleRate
	n := g.acc / g.format.SampleRate
	g.acc -= n * g.format.SampleRate

	return n
}

func (g *Graph) fail(st hal.Status) hal.Status {
	g.failures.Add(1)
	g.lastStatus.Store(int32(st))

	return st
}

// Stats returns the render counters.
func (g *Graph) Stats() Stats {
	s := Stats{
		Cycles:     g.cycles.Load(),
		Failures:   g.failures.Load(),
		LastStatus: hal.Status(g.lastStatus.Load()),
	}
	for _, c := range g.convs {
		s.Underruns += c.underruns.Load()
		s.Overruns += c.overruns.Load()
	}

	return s
}

// InstallTap attaches fn to the output of node id, replacing any previous
// tap there. It takes effect at the next node boundary.
func (g *Graph) InstallTap(id string, fn TapFunc) error {
	n, ok := g.byID[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}
	n.tap.Store(&tapEntry{fn: fn})

	return nil
}

// RemoveTap detaches the tap of node id, if any.
func (g *Graph) RemoveTap(id string) error {
	n, ok := g.byID[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}
	n.tap.Store(nil)

	return nil
}

// Node looks up a node handle by id.
func (g *Graph) Node(id string) (Node, bool) {
	h, ok := g.handles[id]
	return h, ok
}

func lookup[T Node](g *Graph, id string) T {
	h, _ := g.handles[id].(T)
	return h
}

// The typed accessors return nil when the topology has no such node.

func (g *Graph) Player() *PlayerNode       { return lookup[*PlayerNode](g, IDPlayer) }
func (g *Graph) Pitch() *PitchNode         { return lookup[*PitchNode](g, IDPitch) }
func (g *Graph) Equalizer() *EqualizerNode { return lookup[*EqualizerNode](g, IDEqualizer) }
func (g *Graph) Reverb() *ReverbNode       { return lookup[*ReverbNode](g, IDReverb) }
func (g *Graph) MicMixer() *MixerNode      { return lookup[*MixerNode](g, IDMicMixer) }
func (g *Graph) Output() *MixerNode        { return lookup[*MixerNode](g, IDOutput) }

// Converter returns the converter inserted behind the default capture node.
func (g *Graph) Converter() *ConverterNode {
	return lookup[*ConverterNode](g, IDCapture+".convert."+IDMicMixer)
}

// SetPitch transposes the player branch, clamped to ±2400 cents.
func (g *Graph) SetPitch(cents float32) float32 { return g.params.Set(ParamPitch, cents) }

// SetReverbMix sets the wet share, clamped to [0, 100].
func (g *Graph) SetReverbMix(percent float32) float32 {
	return g.params.Set(ParamReverbMix, percent)
}

// SetBandGain sets the gain of band 0, 1 or 2, clamped to ±12 dB.
func (g *Graph) SetBandGain(band int, db float32) (float32, error) {
	if band < 0 || band >= Bands {
		return 0, fmt.Errorf("%w: %d", ErrInvalidBand, band)
	}
	return g.params.Set(bands[band].param, db), nil
}

// SetMicVolume sets the microphone gain, clamped to [0, 1].
func (g *Graph) SetMicVolume(gain float32) float32 { return g.params.Set(ParamMicVolume, gain) }

// SetPlayerVolume sets the player gain, clamped to [0, 1].
func (g *Graph) SetPlayerVolume(gain float32) float32 {
	return g.params.Set(ParamPlayerVolume, gain)
}
