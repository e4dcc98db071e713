// Package graph evaluates devices connected by patch cables and MIDI routes.
package graph

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/mrdg/groove/audio"
	"github.com/mrdg/groove/midi"
)

// MainMixer is the reserved id of the sink that sums all terminal outputs.
const MainMixer = "main-mixer"

// NoChannel marks an unset midi-in or midi-out.
const NoChannel = -1

// ErrNotFound is returned for parameters of unknown devices and unknown
// parameters of known ones.
var ErrNotFound = errors.New("not found")

// CyclicRoutingError names one edge of a cycle in the routing graph.
type CyclicRoutingError struct {
	From, To string
}

func (e *CyclicRoutingError) Error() string {
	return fmt.Sprintf("cyclic routing: %s -> %s", e.From, e.To)
}

// Node declares a device and its MIDI ports.
type Node struct {
	ID      string
	Role    audio.Role
	Device  audio.Device
	MidiIn  int
	MidiOut int
}

type node struct {
	Node
	buf      []float32
	inputs   []int
	outlet   outlet
	terminal bool
}

// outlet routes events emitted by a device to the receivers of its
// midi-out channel.
type outlet struct {
	g       *Graph
	channel int
}

func (o *outlet) Send(ev midi.Event) {
	if o.channel == NoChannel {
		return
	}
	ev.Channel = uint8(o.channel)
	o.g.Deliver(ev)
}

// Graph holds devices in an arena indexed by declaration order. Edges are
// indexes into the arena.
type Graph struct {
	nodes     []node
	index     map[string]int
	order     []int
	terminals []int
	receivers [midi.NumChannels][]int
	tap       func(device string, ev midi.Event)
	ctx       audio.Context
	silenced  atomic.Uint64
}

// New builds a graph from nodes and patch cables. Buffers for bufferSize
// frames are allocated here so that Process never allocates.
func New(nodes []Node, cables [][]string, bufferSize int) (*Graph, error) {
	g := &Graph{
		nodes: make([]node, len(nodes)),
		index: make(map[string]int, len(nodes)),
	}
	for i, n := range nodes {
		switch {
		case n.ID == "":
			return nil, fmt.Errorf("device %d has no id", i)
		case n.ID == MainMixer:
			return nil, fmt.Errorf("%s is a reserved id", MainMixer)
		}
		if _, ok := g.index[n.ID]; ok {
			return nil, fmt.Errorf("duplicate device id %s", n.ID)
		}
		if err := checkChannels(n); err != nil {
			return nil, err
		}
		g.index[n.ID] = i
		g.nodes[i] = node{
			Node:   n,
			buf:    make([]float32, 2*bufferSize),
			outlet: outlet{g: g, channel: n.MidiOut},
		}
	}

	out := make([][]int, len(nodes))
	in := make([][]int, len(nodes))
	seen := make(map[[2]int]bool)
	addEdge := func(from, to int, carriesAudio bool) error {
		if from == to {
			return &CyclicRoutingError{From: nodes[from].ID, To: nodes[to].ID}
		}
		if seen[[2]int{from, to}] {
			return nil
		}
		seen[[2]int{from, to}] = true
		out[from] = append(out[from], to)
		in[to] = append(in[to], from)
		if carriesAudio {
			g.nodes[to].inputs = append(g.nodes[to].inputs, from)
		}
		return nil
	}

	for _, cable := range cables {
		if len(cable) < 2 {
			return nil, fmt.Errorf("patch cable %v: needs at least two ids", cable)
		}
		prev := -1
		for k, id := range cable {
			if id == MainMixer {
				if k != len(cable)-1 {
					return nil, fmt.Errorf("patch cable %v: %s must come last", cable, MainMixer)
				}
				g.nodes[prev].terminal = true
				break
			}
			i, ok := g.index[id]
			if !ok {
				return nil, fmt.Errorf("patch cable %v: unknown device %s", cable, id)
			}
			if prev >= 0 {
				if err := addEdge(prev, i, true); err != nil {
					return nil, err
				}
			}
			if k == len(cable)-1 {
				g.nodes[i].terminal = true
			}
			prev = i
		}
	}

	for i, n := range nodes {
		m, ok := n.Device.(audio.Modulator)
		if !ok {
			continue
		}
		id, name := m.Target()
		t, ok := g.index[id]
		if !ok {
			return nil, fmt.Errorf("device %s: unknown target device %s", n.ID, id)
		}
		p, ok := nodes[t].Device.Params().Get(name)
		if !ok {
			return nil, fmt.Errorf("device %s: target %s has no parameter %s", n.ID, id, name)
		}
		// the target reads its parameters when it is processed
		if err := addEdge(i, t, false); err != nil {
			return nil, err
		}
		m.Bind(p)
	}

	for i, n := range nodes {
		if n.MidiIn != NoChannel {
			g.receivers[n.MidiIn] = append(g.receivers[n.MidiIn], i)
		}
	}
	for i, n := range nodes {
		if n.MidiOut == NoChannel {
			continue
		}
		for _, r := range g.receivers[n.MidiOut] {
			if err := addEdge(i, r, false); err != nil {
				return nil, err
			}
		}
	}

	order, err := sortTopological(out, in)
	if err != nil {
		cycle := err.(cycleError)
		return nil, &CyclicRoutingError{From: nodes[cycle.from].ID, To: nodes[cycle.to].ID}
	}
	g.order = order
	for _, i := range order {
		if g.nodes[i].terminal {
			g.terminals = append(g.terminals, i)
		}
	}
	return g, nil
}

func checkChannels(n Node) error {
	for _, ch := range []int{n.MidiIn, n.MidiOut} {
		if ch != NoChannel && (ch < 0 || ch >= midi.NumChannels) {
			return fmt.Errorf("device %s: midi channel out of range: %d", n.ID, ch)
		}
	}
	if n.MidiIn != NoChannel && n.Role == audio.Effect {
		return fmt.Errorf("device %s: effects have no midi-in", n.ID)
	}
	if n.MidiOut != NoChannel && n.Role != audio.Controller {
		return fmt.Errorf("device %s: only controllers have a midi-out", n.ID)
	}
	return nil
}

type cycleError struct{ from, to int }

func (e cycleError) Error() string { return "cycle" }

// sortTopological orders nodes with Kahn's algorithm. Ready nodes are taken
// in declaration order, which makes the result deterministic.
func sortTopological(out, in [][]int) ([]int, error) {
	indegree := make([]int, len(in))
	ready := &intHeap{}
	for i := range in {
		indegree[i] = len(in[i])
		if indegree[i] == 0 {
			heap.Push(ready, i)
		}
	}
	order := make([]int, 0, len(in))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		order = append(order, i)
		for _, j := range out[i] {
			indegree[j]--
			if indegree[j] == 0 {
				heap.Push(ready, j)
			}
		}
	}
	if len(order) == len(in) {
		return order, nil
	}

	// Every node left over still has an unsorted predecessor. Walking
	// predecessors from any of them must revisit a node, and the step that
	// closes the loop is an edge of the cycle.
	start := -1
	for i, d := range indegree {
		if d > 0 {
			start = i
			break
		}
	}
	visited := make(map[int]bool)
	cur := start
	for {
		visited[cur] = true
		pred := -1
		for _, p := range in[cur] {
			if indegree[p] > 0 && (pred == -1 || p < pred) {
				pred = p
			}
		}
		if visited[pred] {
			return nil, cycleError{from: pred, to: cur}
		}
		cur = pred
	}
}

type intHeap []int

func (h intHeap) Len() int            { return len(h) }
func (h intHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x interface{}) { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// SetTap installs a function that observes every event delivered to a
// device. It runs on the audio thread and must be set before the graph is
// shared with it.
func (g *Graph) SetTap(tap func(device string, ev midi.Event)) {
	g.tap = tap
}

// Deliver passes ev to every device listening on its channel.
func (g *Graph) Deliver(ev midi.Event) {
	for _, i := range g.receivers[ev.Channel&0x0f] {
		n := &g.nodes[i]
		if g.tap != nil {
			g.tap(n.ID, ev)
		}
		n.Device.HandleEvent(ev)
	}
}

// Listening reports whether any device receives events on channel.
func (g *Graph) Listening(channel uint8) bool {
	return len(g.receivers[channel&0x0f]) > 0
}

// Process evaluates every device once in topological order and writes the
// sum of the terminal outputs to out. Buffers holding NaN or infinite values
// are replaced with silence.
func (g *Graph) Process(out []float32, ctx audio.Context) {
	samples := len(out)
	for _, i := range g.order {
		n := &g.nodes[i]
		buf := n.buf[:samples]
		clear(buf)
		for _, up := range n.inputs {
			mix(buf, g.nodes[up].buf[:samples])
		}
		g.ctx = ctx
		g.ctx.Out = &n.outlet
		n.Device.Process(buf, &g.ctx)
		if !sanitize(buf) {
			g.silenced.Add(1)
		}
	}
	clear(out)
	for _, i := range g.terminals {
		mix(out, g.nodes[i].buf[:samples])
	}
	if !sanitize(out) {
		g.silenced.Add(1)
	}
}

func mix(dst, src []float32) {
	for i, v := range src {
		dst[i] += v
	}
}

// smallest normal float32
const minNormal = 1.1754943508222875e-38

// sanitize flushes denormals to zero. If buf contains NaN or infinite values
// the whole buffer is silenced and sanitize returns false.
func sanitize(buf []float32) bool {
	for i, v := range buf {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			clear(buf)
			return false
		}
		if v != 0 && math.Abs(f) < minNormal {
			buf[i] = 0
		}
	}
	return true
}

// Reset clears the state of every device.
func (g *Graph) Reset() {
	for i := range g.nodes {
		g.nodes[i].Device.Reset()
	}
}

// Order returns the device ids in evaluation order.
func (g *Graph) Order() []string {
	ids := make([]string, len(g.order))
	for k, i := range g.order {
		ids[k] = g.nodes[i].ID
	}
	return ids
}

// Terminals returns the ids of the devices feeding the main mixer.
func (g *Graph) Terminals() []string {
	ids := make([]string, len(g.terminals))
	for k, i := range g.terminals {
		ids[k] = g.nodes[i].ID
	}
	return ids
}

// Nodes returns the device declarations in declaration order.
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, len(g.nodes))
	for i := range g.nodes {
		nodes[i] = g.nodes[i].Node
	}
	return nodes
}

func (g *Graph) Device(id string) (audio.Device, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.nodes[i].Device, true
}

// Param resolves a parameter of a device.
func (g *Graph) Param(device, name string) (*audio.Param, error) {
	d, ok := g.Device(device)
	if !ok {
		return nil, fmt.Errorf("device %s: %w", device, ErrNotFound)
	}
	p, ok := d.Params().Get(name)
	if !ok {
		return nil, fmt.Errorf("device %s: parameter %s: %w", device, name, ErrNotFound)
	}
	return p, nil
}

// GetParameter returns the current value of a parameter.
func (g *Graph) GetParameter(device, name string) (float64, error) {
	p, err := g.Param(device, name)
	if err != nil {
		return 0, err
	}
	return p.Value(), nil
}

// SetParameter writes a parameter, clamping it to its range.
func (g *Graph) SetParameter(device, name string, v float64) (clamped bool, err error) {
	p, err := g.Param(device, name)
	if err != nil {
		return false, err
	}
	return p.Set(v), nil
}

// Silenced returns the number of buffers replaced with silence.
func (g *Graph) Silenced() uint64 { return g.silenced.Load() }

type eventDropper interface {
	DroppedEvents() uint64
}

// DroppedEvents sums the events devices could not handle.
func (g *Graph) DroppedEvents() uint64 {
	var n uint64
	for i := range g.nodes {
		if d, ok := g.nodes[i].Device.(eventDropper); ok {
			n += d.DroppedEvents()
		}
	}
	return n
}
