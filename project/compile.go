package project

import (
	"errors"
	"fmt"

	"github.com/mrdg/groove/audio"
	"github.com/mrdg/groove/automation"
	"github.com/mrdg/groove/clock"
	"github.com/mrdg/groove/graph"
	"github.com/mrdg/groove/sequence"
)

// Project is a validated document with its devices built and routed.
type Project struct {
	Clock     clock.Config
	Graph     *graph.Graph
	Tracks    []*sequence.Track
	Automator *automation.Automator
}

// Compile validates doc and builds it for an audio stream described by cfg.
// Errors are of type *LoadError. Nothing is shared between the result and
// doc, so the document may be edited afterwards.
func Compile(doc *Document, cfg audio.Config) (*Project, error) {
	p := &Project{Clock: doc.Clock.Config(cfg.SampleRate)}
	if err := p.Clock.Validate(); err != nil {
		return nil, &LoadError{Kind: InvalidClockConfig, Entity: "clock", Err: err}
	}
	sig := p.Clock.Signature

	nodes, err := compileDevices(doc.Devices, cfg)
	if err != nil {
		return nil, err
	}
	if err := checkCables(doc.PatchCables, nodes); err != nil {
		return nil, err
	}
	if err := checkTargets(nodes); err != nil {
		return nil, err
	}
	p.Graph, err = graph.New(nodes, doc.PatchCables, cfg.BufferSize)
	if err != nil {
		var cycle *graph.CyclicRoutingError
		if errors.As(err, &cycle) {
			return nil, &LoadError{Kind: CyclicRouting, Entity: cycle.From, Err: err}
		}
		return nil, &LoadError{Kind: InvalidCable, Err: err}
	}

	patterns, err := compilePatterns(doc.Patterns, sig)
	if err != nil {
		return nil, err
	}
	p.Tracks, err = compileTracks(doc.Tracks, patterns)
	if err != nil {
		return nil, err
	}
	paths, err := compilePaths(doc.Paths, sig)
	if err != nil {
		return nil, err
	}
	trips, err := compileTrips(doc.Trips, paths, p.Graph)
	if err != nil {
		return nil, err
	}
	p.Automator, err = automation.New(trips, sig, p.Graph)
	if err != nil {
		return nil, &LoadError{Kind: InvalidTrip, Err: err}
	}
	return p, nil
}

func compileDevices(devices []Device, cfg audio.Config) ([]graph.Node, error) {
	seen := make(map[string]bool)
	var nodes []graph.Node
	for i, d := range devices {
		switch {
		case d.ID == "":
			return nil, loadError(InvalidDevice, "", "device %d has no id", i)
		case d.ID == graph.MainMixer:
			return nil, loadError(InvalidDevice, d.ID, "id is reserved")
		case seen[d.ID]:
			return nil, loadError(DuplicateID, d.ID, "device declared twice")
		}
		seen[d.ID] = true

		in, err := d.Port(KeyMidiIn)
		if err != nil {
			return nil, &LoadError{Kind: InvalidDevice, Entity: d.ID, Err: err}
		}
		out, err := d.Port(KeyMidiOut)
		if err != nil {
			return nil, &LoadError{Kind: InvalidDevice, Entity: d.ID, Err: err}
		}
		if in >= 0 && d.Role == audio.Effect {
			return nil, loadError(InvalidDevice, d.ID, "%s applies only to instruments and controllers", KeyMidiIn)
		}
		if out >= 0 && d.Role != audio.Controller {
			return nil, loadError(InvalidDevice, d.ID, "%s applies only to controllers", KeyMidiOut)
		}

		dev, err := audio.New(d.Role, d.Kind, cfg, d.Params())
		if err != nil {
			return nil, &LoadError{Kind: InvalidDevice, Entity: d.ID, Err: err}
		}
		nodes = append(nodes, graph.Node{
			ID:      d.ID,
			Role:    d.Role,
			Device:  dev,
			MidiIn:  in,
			MidiOut: out,
		})
	}
	return nodes, nil
}

func checkCables(cables [][]string, nodes []graph.Node) error {
	ids := make(map[string]bool)
	for _, n := range nodes {
		ids[n.ID] = true
	}
	for i, cable := range cables {
		entity := fmt.Sprintf("patch-cable %d", i)
		if len(cable) < 2 {
			return loadError(InvalidCable, entity, "needs at least two ids, got %v", cable)
		}
		for k, id := range cable {
			if id == graph.MainMixer {
				if k != len(cable)-1 {
					return loadError(InvalidCable, entity, "%s must come last", graph.MainMixer)
				}
				continue
			}
			if !ids[id] {
				return loadError(DanglingReference, id, "%s refers to an unknown device", entity)
			}
		}
	}
	return nil
}

// checkTargets verifies that every modulator drives a parameter of another
// declared device.
func checkTargets(nodes []graph.Node) error {
	devices := make(map[string]audio.Device, len(nodes))
	for _, n := range nodes {
		devices[n.ID] = n.Device
	}
	for _, n := range nodes {
		m, ok := n.Device.(audio.Modulator)
		if !ok {
			continue
		}
		id, param := m.Target()
		if id == n.ID {
			return loadError(InvalidDevice, n.ID, "a device cannot modulate itself")
		}
		d, ok := devices[id]
		if !ok {
			return loadError(DanglingReference, n.ID, "%s refers to an unknown device %s", audio.KeyTarget, id)
		}
		if _, ok := d.Params().Get(param); !ok {
			return loadError(DanglingReference, n.ID, "%s: device %s has no parameter %s", audio.KeyTarget, id, param)
		}
	}
	return nil
}

func compilePatterns(patterns []Pattern, sig clock.Signature) (map[string]*sequence.Pattern, error) {
	compiled := make(map[string]*sequence.Pattern)
	for _, p := range patterns {
		if p.ID == "" {
			return nil, loadError(MalformedPattern, "", "pattern has no id")
		}
		if _, ok := compiled[p.ID]; ok {
			return nil, loadError(DuplicateID, p.ID, "pattern declared twice")
		}
		sp := &sequence.Pattern{ID: p.ID, NoteValue: p.NoteValue}
		for r, notes := range p.Notes {
			if len(notes)%2 != 0 {
				return nil, loadError(MalformedPattern, p.ID, "row %d: notes must be pitch, velocity pairs", r)
			}
			row := make([]sequence.Step, len(notes)/2)
			for i := range row {
				pitch, vel := notes[2*i], notes[2*i+1]
				if pitch < 0 || pitch > 127 || vel < 0 || vel > 127 {
					return nil, loadError(MalformedPattern, p.ID, "row %d step %d: pitch and velocity must be in 0..127", r, i)
				}
				row[i] = sequence.Step{Pitch: uint8(pitch), Velocity: uint8(vel)}
			}
			sp.Rows = append(sp.Rows, row)
		}
		if err := sp.Validate(sig); err != nil {
			return nil, &LoadError{Kind: MalformedPattern, Entity: p.ID, Err: err}
		}
		compiled[p.ID] = sp
	}
	return compiled, nil
}

func compileTracks(tracks []Track, patterns map[string]*sequence.Pattern) ([]*sequence.Track, error) {
	seen := make(map[string]bool)
	var compiled []*sequence.Track
	for _, t := range tracks {
		if seen[t.ID] {
			return nil, loadError(DuplicateID, t.ID, "track declared twice")
		}
		seen[t.ID] = true
		if t.MidiChannel < 0 || t.MidiChannel > 15 {
			return nil, loadError(InvalidTrack, t.ID, "midi channel out of range: %d", t.MidiChannel)
		}
		if len(t.Patterns) == 0 {
			return nil, loadError(InvalidTrack, t.ID, "no patterns")
		}
		st := &sequence.Track{ID: t.ID, Channel: uint8(t.MidiChannel)}
		for _, id := range t.Patterns {
			p, ok := patterns[id]
			if !ok {
				return nil, loadError(DanglingReference, t.ID, "unknown pattern %s", id)
			}
			st.Patterns = append(st.Patterns, p)
		}
		compiled = append(compiled, st)
	}
	return compiled, nil
}

func compilePaths(paths []Path, sig clock.Signature) (map[string]*automation.Path, error) {
	compiled := make(map[string]*automation.Path)
	for _, p := range paths {
		if p.ID == "" {
			return nil, loadError(MalformedPath, "", "path has no id")
		}
		if _, ok := compiled[p.ID]; ok {
			return nil, loadError(DuplicateID, p.ID, "path declared twice")
		}
		ap := &automation.Path{ID: p.ID, NoteValue: p.NoteValue}
		for _, s := range p.Steps {
			ap.Steps = append(ap.Steps, automation.Step{From: s.From, To: s.To, Slope: s.Slope})
		}
		if err := ap.Validate(sig); err != nil {
			return nil, &LoadError{Kind: MalformedPath, Entity: p.ID, Err: err}
		}
		compiled[p.ID] = ap
	}
	return compiled, nil
}

func compileTrips(trips []Trip, paths map[string]*automation.Path, g *graph.Graph) ([]*automation.Trip, error) {
	seen := make(map[string]bool)
	var compiled []*automation.Trip
	for _, t := range trips {
		if seen[t.ID] {
			return nil, loadError(DuplicateID, t.ID, "trip declared twice")
		}
		seen[t.ID] = true
		at := &automation.Trip{
			ID:           t.ID,
			StartMeasure: t.StartMeasure,
			Device:       t.Target.ID,
			Param:        t.Target.Param,
		}
		for _, id := range t.Paths {
			p, ok := paths[id]
			if !ok {
				return nil, loadError(DanglingReference, t.ID, "unknown path %s", id)
			}
			at.Paths = append(at.Paths, p)
		}
		if err := at.Validate(); err != nil {
			return nil, &LoadError{Kind: InvalidTrip, Entity: t.ID, Err: err}
		}
		if _, err := g.Param(at.Device, at.Param); err != nil {
			return nil, &LoadError{Kind: DanglingReference, Entity: t.ID, Err: err}
		}
		compiled = append(compiled, at)
	}
	return compiled, nil
}
