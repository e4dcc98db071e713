package dub

import (
	"fmt"

	"github.com/mrdg/groove/clock"
)

type matchItem struct {
	level   int
	matcher matcher
}

type matcher interface {
	match(i int) bool
}

type rangeMatch struct {
	start, end int
}

func (r rangeMatch) match(i int) bool {
	return (i >= r.start || r.start == -1) && (i <= r.end || r.end == -1)
}

var matchAll = rangeMatch{-1, -1}

type listMatch []int

func (l listMatch) match(i int) bool {
	for _, k := range l {
		if k == i {
			return true
		}
	}
	return false
}

// Steps evaluates expr over one measure of sig divided into steps of grid.
// Level 0 of the expression numbers the quarter notes of the measure, and
// every following level halves the note length and numbers notes within the
// enclosing quarter, starting at 1. So '2,4/* selects every eighth note of
// beats two and four.
func Steps(expr MatchExpr, sig clock.Signature, grid clock.NoteValue) ([]bool, error) {
	n, ok := grid.StepsPerMeasure(sig)
	if !ok {
		return nil, fmt.Errorf("a measure of %v does not divide into %v notes", sig, grid)
	}
	seq := make([]bool, n)
	gridTicks := int(grid.Ticks())

	for i := len(expr.matchers) - 1; i >= 0; i-- {
		item := expr.matchers[i]
		levelTicks := clock.PPQN >> item.level
		if levelTicks < gridTicks || levelTicks%gridTicks != 0 {
			return nil, fmt.Errorf("can't match on level %d with %v steps", item.level, grid)
		}
		skip := levelTicks / gridTicks
		notesPerBeat := clock.PPQN / levelTicks

		for note, steps := 0, 0; note < len(seq); note += skip {
			// number notes relative to others on the same division, e.g.
			// the sixteenths within a quarter are numbered 0 to 3
			noteNum := steps % notesPerBeat
			if notesPerBeat == 1 {
				noteNum = steps
			}
			steps++

			if item.matcher.match(noteNum + 1) {
				if i == len(expr.matchers)-1 {
					seq[note] = true
				}
				continue
			}
			for k := note; k < note+skip && k < len(seq); k++ {
				seq[k] = false
			}
		}
	}
	return seq, nil
}
