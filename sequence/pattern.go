// Package sequence expands tracks of note patterns into a time ordered
// stream of note events.
package sequence

import (
	"fmt"

	"github.com/mrdg/groove/clock"
)

// Step is one grid cell of a pattern row. Pitch 0 is a rest.
type Step struct {
	Pitch    uint8
	Velocity uint8
}

type Pattern struct {
	ID        string
	NoteValue clock.NoteValue
	// Rows play simultaneously. All rows have the same number of steps.
	Rows [][]Step
}

// Len returns the number of steps in a row.
func (p *Pattern) Len() int {
	if len(p.Rows) == 0 {
		return 0
	}
	return len(p.Rows[0])
}

// StepTicks returns the length of one step.
func (p *Pattern) StepTicks() float64 {
	return p.NoteValue.Ticks()
}

// Validate checks that rows have equal lengths and fill a whole number of
// measures of sig.
func (p *Pattern) Validate(sig clock.Signature) error {
	if !p.NoteValue.Valid() {
		return fmt.Errorf("pattern %s: bad note value %d", p.ID, int(p.NoteValue))
	}
	if len(p.Rows) == 0 {
		return fmt.Errorf("pattern %s: no rows", p.ID)
	}
	n := p.Len()
	for i, row := range p.Rows {
		if len(row) != n {
			return fmt.Errorf("pattern %s: row %d has %d steps, row 0 has %d", p.ID, i, len(row), n)
		}
		for j, s := range row {
			if s.Pitch > 127 || s.Velocity > 127 {
				return fmt.Errorf("pattern %s: row %d step %d: pitch and velocity must be below 128", p.ID, i, j)
			}
		}
	}
	perMeasure, ok := p.NoteValue.StepsPerMeasure(sig)
	if !ok {
		return fmt.Errorf("pattern %s: %v notes don't fill a measure of %v", p.ID, p.NoteValue, sig)
	}
	if n == 0 || n%perMeasure != 0 {
		return fmt.Errorf("pattern %s: length %d is not a multiple of %d steps per measure", p.ID, n, perMeasure)
	}
	return nil
}

// Measures returns the length of the pattern in measures of sig. The
// pattern must be valid.
func (p *Pattern) Measures(sig clock.Signature) int {
	perMeasure, _ := p.NoteValue.StepsPerMeasure(sig)
	return p.Len() / perMeasure
}

// Track plays patterns back to back on a MIDI channel.
type Track struct {
	ID       string
	Channel  uint8
	Patterns []*Pattern
}
