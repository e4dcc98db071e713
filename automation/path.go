// Package automation drives device parameters from curves anchored in
// musical time.
package automation

import (
	"fmt"
	"math"

	"github.com/mrdg/groove/clock"
)

// Step is one segment of a path. A flat step holds From and glides towards
// the next step's value; a slope step ramps from From to To within itself.
type Step struct {
	From, To float64
	Slope    bool
}

func Flat(v float64) Step        { return Step{From: v, To: v} }
func Ramp(from, to float64) Step { return Step{From: from, To: to, Slope: true} }

// Path is an automation curve with values in [0, 1]. A path without a note
// value is flat: it is indexed by update count instead of musical position.
type Path struct {
	ID        string
	NoteValue clock.NoteValue
	Steps     []Step
}

func (p *Path) Quantized() bool { return p.NoteValue != 0 }

// Ticks returns the musical length of a quantized path.
func (p *Path) Ticks() float64 {
	if !p.Quantized() {
		return 0
	}
	return float64(len(p.Steps)) * p.NoteValue.Ticks()
}

func (p *Path) Validate(sig clock.Signature) error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("path %s: no steps", p.ID)
	}
	for i, s := range p.Steps {
		for _, v := range []float64{s.From, s.To} {
			if !(v >= 0 && v <= 1) {
				return fmt.Errorf("path %s: step %d: value %v is outside [0, 1]", p.ID, i, v)
			}
		}
	}
	if !p.Quantized() {
		return nil
	}
	if !p.NoteValue.Valid() {
		return fmt.Errorf("path %s: bad note value %d", p.ID, int(p.NoteValue))
	}
	perMeasure, ok := p.NoteValue.StepsPerMeasure(sig)
	if !ok {
		return fmt.Errorf("path %s: %v notes don't fill a measure of %v", p.ID, p.NoteValue, sig)
	}
	if len(p.Steps)%perMeasure != 0 {
		return fmt.Errorf("path %s: length %d is not a multiple of %d steps per measure", p.ID, len(p.Steps), perMeasure)
	}
	return nil
}

// ValueAt returns the value at a fractional step index. Indexes outside the
// path are clamped to its first and last values.
func (p *Path) ValueAt(x float64) float64 {
	n := len(p.Steps)
	if n == 0 {
		return 0
	}
	if !(x > 0) {
		return p.Steps[0].From
	}
	i := int(math.Floor(x))
	if i >= n {
		return p.Steps[n-1].To
	}
	f := x - float64(i)
	s := p.Steps[i]
	switch {
	case s.Slope:
		return s.From + (s.To-s.From)*f
	case i+1 < n:
		return s.From + (p.Steps[i+1].From-s.From)*f
	}
	return s.From
}
