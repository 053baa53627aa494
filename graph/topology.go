// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"fmt"

	"github.com/ik5/audrig/audio"
)

// IDs of the nodes in the default topology.
const (
	IDPlayer    = "player"
	IDPitch     = "pitch"
	IDEqualizer = "eq"
	IDReverb    = "reverb"
	IDCapture   = "mic"
	IDMicMixer  = "micmix"
	IDOutput    = "output"
)

// Topology is the declarative node and edge table of a graph. It is validated
// once by New and never changes afterwards.
type Topology struct {
	Nodes []NodeSpec
	Edges []Connection
	Sink  string
}

// DefaultTopology is the player branch through pitch, equalizer and reverb
// into port 0 of the output mixer, and the microphone branch through its gain
// mixer into port 1. capture is the hardware input format.
func DefaultTopology(f, capture audio.Format) Topology {
	return Topology{
		Nodes: []NodeSpec{
			{ID: IDPlayer, Kind: Player, Format: f},
			{ID: IDPitch, Kind: PitchShift, Format: f},
			{ID: IDEqualizer, Kind: Equalizer, Format: f},
			{ID: IDReverb, Kind: Reverb, Format: f},
			{ID: IDCapture, Kind: InputCapture, Format: capture},
			{ID: IDMicMixer, Kind: Mixer, Format: f, Gain: ParamMicVolume},
			{ID: IDOutput, Kind: Mixer, Format: f},
		},
		Edges: []Connection{
			{From: IDPlayer, To: IDPitch},
			{From: IDPitch, To: IDEqualizer},
			{From: IDEqualizer, To: IDReverb},
			{From: IDReverb, To: IDOutput, ToPort: 0},
			{From: IDCapture, To: IDMicMixer},
			{From: IDMicMixer, To: IDOutput, ToPort: 1},
		},
		Sink: IDOutput,
	}
}

// withConverters returns a copy of t where every capture edge whose stream
// differs from its consumer goes through a Converter node.
func (t Topology) withConverters() Topology {
	specs := make(map[string]NodeSpec, len(t.Nodes))
	for _, n := range t.Nodes {
		specs[n.ID] = n
	}

	out := Topology{
		Nodes: append([]NodeSpec(nil), t.Nodes...),
		Edges: make([]Connection, 0, len(t.Edges)),
		Sink:  t.Sink,
	}

	for _, e := range t.Edges {
		from, okFrom := specs[e.From]
		to, okTo := specs[e.To]

		if !okFrom || !okTo || from.Kind != InputCapture || from.stream() == to.stream() {
			out.Edges = append(out.Edges, e)
			continue
		}

		id := fmt.Sprintf("%s.convert.%s", e.From, e.To)
		out.Nodes = append(out.Nodes, NodeSpec{ID: id, Kind: Converter, Format: to.Format})
		out.Edges = append(out.Edges,
			Connection{From: e.From, FromPort: e.FromPort, To: id},
			Connection{From: id, To: e.To, ToPort: e.ToPort},
		)
	}

	return out
}

// order validates t and returns node indices in processing order.
func (t Topology) order() ([]int, error) {
	index := make(map[string]int, len(t.Nodes))
	for i, n := range t.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: node %d has no id", audio.ErrConfiguration, i)
		}
		if _, dup := index[n.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node %q", audio.ErrConfiguration, n.ID)
		}
		if n.Kind < Player || n.Kind > Converter {
			return nil, fmt.Errorf("%w: node %q has %s", audio.ErrConfiguration, n.ID, n.Kind)
		}
		if err := n.stream().Validate(); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		if n.Kind == InputCapture {
			if err := n.Format.Validate(); err != nil {
				return nil, fmt.Errorf("node %q: %w", n.ID, err)
			}
		}
		index[n.ID] = i
	}

	sink, ok := index[t.Sink]
	if !ok {
		return nil, fmt.Errorf("%w: sink %q is not a node", audio.ErrConfiguration, t.Sink)
	}

	type port struct{ node, port int }
	taken := make(map[port]bool, len(t.Edges))
	indegree := make([]int, len(t.Nodes))
	next := make([][]int, len(t.Nodes))

	for _, e := range t.Edges {
		from, okFrom := index[e.From]
		to, okTo := index[e.To]
		if !okFrom || !okTo {
			return nil, fmt.Errorf("%w: %s names an unknown node", audio.ErrConfiguration, e)
		}

		if e.FromPort != 0 || e.ToPort < 0 || e.ToPort >= t.Nodes[to].Kind.inputPorts() {
			return nil, fmt.Errorf("%w: %s uses a port %s does not have", audio.ErrConfiguration, e, t.Nodes[to].Kind)
		}

		p := port{to, e.ToPort}
		if taken[p] {
			return nil, fmt.Errorf("%w: %s:%d has more than one input", audio.ErrConfiguration, e.To, e.ToPort)
		}
		taken[p] = true

		src, dst := t.Nodes[from], t.Nodes[to]
		if dst.Kind != Converter && src.stream() != dst.stream() {
			return nil, fmt.Errorf("%w: %s connects %s to %s", audio.ErrConfiguration, e, src.stream(), dst.stream())
		}

		indegree[to]++
		next[from] = append(next[from], to)
	}

	for i, n := range t.Nodes {
		if n.Kind.inputPorts() == 1 && indegree[i] == 0 {
			return nil, fmt.Errorf("%w: %q has no input", audio.ErrConfiguration, n.ID)
		}
		if n.Kind != InputCapture && n.stream().SampleRate != t.Nodes[sink].stream().SampleRate {
			return nil, fmt.Errorf("%w: %q runs at %d Hz, output at %d Hz",
				audio.ErrConfiguration, n.ID, n.stream().SampleRate, t.Nodes[sink].stream().SampleRate)
		}
	}

	// Kahn
	order := make([]int, 0, len(t.Nodes))
	queue := make([]int, 0, len(t.Nodes))
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)

		for _, j := range next[i] {
			indegree[j]--
			if indegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}
	if len(order) != len(t.Nodes) {
		return nil, fmt.Errorf("%w: topology has a cycle", audio.ErrConfiguration)
	}

	// every node has to end up at the sink
	reaches := make([]bool, len(t.Nodes))
	reaches[sink] = true
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		for _, j := range next[i] {
			reaches[i] = reaches[i] || reaches[j]
		}
	}
	for i, ok := range reaches {
		if !ok {
			return nil, fmt.Errorf("%w: %q does not reach sink %q", audio.ErrConfiguration, t.Nodes[i].ID, t.Sink)
		}
	}

	return order, nil
}
