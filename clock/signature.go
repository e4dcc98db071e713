package clock

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Signature struct {
	Num int
	Den int
}

func ParseSignature(s string) (Signature, error) {
	var sig Signature
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return sig, fmt.Errorf("not a valid time signature: %s", s)
	}
	num, err := strconv.Atoi(parts[0])
	if err != nil {
		return sig, fmt.Errorf("bad numerator %s: %w", parts[0], err)
	}
	den, err := strconv.Atoi(parts[1])
	if err != nil {
		return sig, fmt.Errorf("bad denominator %s: %w", parts[1], err)
	}
	return Signature{Num: num, Den: den}, nil
}

func (s Signature) String() string { return fmt.Sprintf("%d/%d", s.Num, s.Den) }

// TicksPerBeat returns the length of one beat, where the denominator decides
// the beat unit.
func (s Signature) TicksPerBeat() float64 {
	return PPQN * 4 / float64(s.Den)
}

func (s Signature) TicksPerMeasure() float64 {
	return float64(s.Num) * s.TicksPerBeat()
}

// Ticks converts a position to an absolute tick count.
func (s Signature) Ticks(p Position) float64 {
	return float64(p.Measure)*s.TicksPerMeasure() +
		float64(p.Beat)*s.TicksPerBeat() +
		float64(p.Tick) + p.Frac
}

// Position converts an absolute tick count to a position.
func (s Signature) Position(t float64) Position {
	if r := math.Round(t); math.Abs(t-r) < snap {
		t = r
	}
	tpm := s.TicksPerMeasure()
	tpb := s.TicksPerBeat()

	measure := math.Floor(t / tpm)
	rem := t - measure*tpm
	beat := math.Floor(rem / tpb)
	if beat >= float64(s.Num) {
		beat = float64(s.Num - 1)
	}
	rem -= beat * tpb
	tick := math.Floor(rem)
	return Position{
		Measure: int(measure),
		Beat:    int(beat),
		Tick:    int(tick),
		Frac:    rem - tick,
	}
}

// NoteValue is a grid resolution expressed as the denominator of the note
// length, so a sixteenth note is 16.
type NoteValue int

const (
	Whole        NoteValue = 1
	Half         NoteValue = 2
	Quarter      NoteValue = 4
	Eighth       NoteValue = 8
	Sixteenth    NoteValue = 16
	ThirtySecond NoteValue = 32
	SixtyFourth  NoteValue = 64
)

var noteValueNames = map[NoteValue]string{
	Whole:        "whole",
	Half:         "half",
	Quarter:      "quarter",
	Eighth:       "eighth",
	Sixteenth:    "sixteenth",
	ThirtySecond: "thirty-second",
	SixtyFourth:  "sixty-fourth",
}

func ParseNoteValue(s string) (NoteValue, error) {
	for v, name := range noteValueNames {
		if name == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown note value: %q", s)
}

func (v NoteValue) Valid() bool {
	_, ok := noteValueNames[v]
	return ok
}

func (v NoteValue) String() string {
	if name, ok := noteValueNames[v]; ok {
		return name
	}
	return "NoteValue(" + strconv.Itoa(int(v)) + ")"
}

// Ticks returns the length of one note of this value.
func (v NoteValue) Ticks() float64 {
	return PPQN * 4 / float64(v)
}

// StepsPerMeasure returns how many notes of this value fill one measure of
// sig. ok is false when a measure does not hold a whole number of them.
func (v NoteValue) StepsPerMeasure(sig Signature) (steps int, ok bool) {
	n := sig.TicksPerMeasure() / v.Ticks()
	r := math.Round(n)
	return int(r), r >= 1 && math.Abs(n-r) < 1e-9
}

func (v NoteValue) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("unknown note value: %d", int(v))
	}
	return []byte(v.String()), nil
}

func (v *NoteValue) UnmarshalText(b []byte) error {
	nv, err := ParseNoteValue(string(b))
	if err != nil {
		return err
	}
	*v = nv
	return nil
}
