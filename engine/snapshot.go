// Package engine renders a project buffer by buffer on the audio thread.
package engine

import (
	"github.com/google/uuid"
	"github.com/mrdg/groove/audio"
	"github.com/mrdg/groove/automation"
	"github.com/mrdg/groove/clock"
	"github.com/mrdg/groove/graph"
	"github.com/mrdg/groove/project"
	"github.com/mrdg/groove/sequence"
)

// Snapshot is a fully built project, ready to be rendered. Its topology
// never changes once built; only parameter values do.
type Snapshot struct {
	ID        uuid.UUID
	Clock     *clock.Clock
	Graph     *graph.Graph
	Sequencer *sequence.Sequencer
	Automator *automation.Automator
}

// Build compiles doc for the audio settings in cfg. Errors are of type
// *project.LoadError.
func Build(doc *project.Document, cfg Config) (*Snapshot, error) {
	p, err := project.Compile(doc, audio.Config{
		SampleRate: cfg.SampleRate,
		BufferSize: cfg.BufferSize,
		Dir:        cfg.Dir,
	})
	if err != nil {
		return nil, err
	}
	clk, err := clock.New(p.Clock)
	if err != nil {
		return nil, &project.LoadError{Kind: project.InvalidClockConfig, Entity: "clock", Err: err}
	}
	return &Snapshot{
		ID:        uuid.New(),
		Clock:     clk,
		Graph:     p.Graph,
		Sequencer: sequence.New(p.Tracks),
		Automator: p.Automator,
	}, nil
}

// Length returns the position of the end of the arrangement in ticks.
func (s *Snapshot) Length() float64 {
	return s.Sequencer.Length()
}
