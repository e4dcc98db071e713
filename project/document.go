// Package project reads, validates and writes project documents.
package project

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mrdg/groove/audio"
	"github.com/mrdg/groove/clock"
	"golang.org/x/exp/maps"
)

// Document is the JSON form of a project.
type Document struct {
	Clock       Clock      `json:"clock"`
	Devices     []Device   `json:"devices"`
	PatchCables [][]string `json:"patch-cables"`
	Patterns    []Pattern  `json:"patterns"`
	Tracks      []Track    `json:"tracks"`
	Paths       []Path     `json:"paths"`
	Trips       []Trip     `json:"trips"`
}

type Clock struct {
	BPM                float64 `json:"bpm"`
	MidiTicksPerSecond int     `json:"midi-ticks-per-second"`
	TimeSignature      [2]int  `json:"time-signature"`
}

func (c Clock) Signature() clock.Signature {
	return clock.Signature{Num: c.TimeSignature[0], Den: c.TimeSignature[1]}
}

// Config returns the clock configuration for a stream at sampleRate.
func (c Clock) Config(sampleRate int) clock.Config {
	return clock.Config{
		BPM:            c.BPM,
		TicksPerSecond: c.MidiTicksPerSecond,
		Signature:      c.Signature(),
		SampleRate:     sampleRate,
	}
}

// Reserved keys in a device's parameter object.
const (
	KeyMidiIn  = "midi-in"
	KeyMidiOut = "midi-out"
)

// Device is encoded as {"<role>": ["<id>", {"<kind>": {<settings>}}]}.
type Device struct {
	Role     audio.Role
	ID       string
	Kind     string
	Settings audio.Settings
}

func (d Device) MarshalJSON() ([]byte, error) {
	settings := d.Settings
	if settings == nil {
		settings = audio.Settings{}
	}
	return json.Marshal(map[string][]interface{}{
		d.Role.String(): {d.ID, map[string]audio.Settings{d.Kind: settings}},
	})
}

func (d *Device) UnmarshalJSON(b []byte) error {
	var tagged map[string][]json.RawMessage
	if err := json.Unmarshal(b, &tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return fmt.Errorf("device: expected one of instrument, effect or controller, got %v", maps.Keys(tagged))
	}
	for role, body := range tagged {
		r, err := audio.ParseRole(role)
		if err != nil {
			return err
		}
		if len(body) != 2 {
			return fmt.Errorf("%s: expected [id, {kind: {params}}]", role)
		}
		var id string
		if err := json.Unmarshal(body[0], &id); err != nil {
			return fmt.Errorf("%s: id: %w", role, err)
		}
		var kind map[string]audio.Settings
		if err := json.Unmarshal(body[1], &kind); err != nil {
			return fmt.Errorf("%s %s: %w", role, id, err)
		}
		if len(kind) != 1 {
			return fmt.Errorf("%s %s: expected exactly one kind, got %v", role, id, maps.Keys(kind))
		}
		*d = Device{Role: r, ID: id}
		for name, settings := range kind {
			d.Kind = name
			d.Settings = settings
		}
	}
	return nil
}

// Port returns the MIDI channel stored under key, or -1 if there is none.
func (d Device) Port(key string) (int, error) {
	v, ok := d.Settings[key]
	if !ok {
		return -1, nil
	}
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) || f < 0 || f > 15 {
		return -1, fmt.Errorf("%s: not a midi channel: %v", key, v)
	}
	return int(f), nil
}

// Params returns the settings without the MIDI port keys.
func (d Device) Params() audio.Settings {
	s := make(audio.Settings, len(d.Settings))
	for k, v := range d.Settings {
		if k != KeyMidiIn && k != KeyMidiOut {
			s[k] = v
		}
	}
	return s
}

// Pattern rows are flattened (pitch, velocity) pairs.
type Pattern struct {
	ID        string          `json:"id"`
	NoteValue clock.NoteValue `json:"note-value"`
	Notes     [][]int         `json:"notes"`
}

type Track struct {
	ID          string   `json:"id"`
	MidiChannel int      `json:"midi-channel"`
	Patterns    []string `json:"patterns"`
}

type Path struct {
	ID string `json:"id"`
	// NoteValue is omitted for flat paths.
	NoteValue clock.NoteValue `json:"note-value,omitempty"`
	Steps     []PathStep      `json:"steps"`
}

// PathStep is {"flat": [v]} or {"slope": [from, to]}. Flat steps may also
// be written {"flat": v}.
type PathStep struct {
	Slope    bool
	From, To float64
}

func (s PathStep) MarshalJSON() ([]byte, error) {
	if s.Slope {
		return json.Marshal(map[string][]float64{"slope": {s.From, s.To}})
	}
	return json.Marshal(map[string][]float64{"flat": {s.From}})
}

func (s *PathStep) UnmarshalJSON(b []byte) error {
	var step map[string]json.RawMessage
	if err := json.Unmarshal(b, &step); err != nil {
		return err
	}
	if len(step) != 1 {
		return fmt.Errorf("path step: expected flat or slope, got %s", b)
	}
	if raw, ok := step["flat"]; ok {
		var values []float64
		if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
			if err := json.Unmarshal(raw, &values); err != nil {
				return fmt.Errorf("flat: %w", err)
			}
		} else {
			var v float64
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("flat: %w", err)
			}
			values = []float64{v}
		}
		if len(values) != 1 {
			return fmt.Errorf("flat: expected one value, got %d", len(values))
		}
		*s = PathStep{From: values[0], To: values[0]}
		return nil
	}
	if raw, ok := step["slope"]; ok {
		var values []float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return fmt.Errorf("slope: %w", err)
		}
		if len(values) != 2 {
			return fmt.Errorf("slope: expected [from, to], got %d values", len(values))
		}
		*s = PathStep{Slope: true, From: values[0], To: values[1]}
		return nil
	}
	return fmt.Errorf("path step: expected flat or slope, got %s", b)
}

type Trip struct {
	ID           string   `json:"id"`
	Paths        []string `json:"paths"`
	StartMeasure int      `json:"start-measure"`
	Target       Target   `json:"target"`
}

type Target struct {
	ID    string `json:"id"`
	Param string `json:"param"`
}

// FindPattern returns the pattern with the given id.
func (d *Document) FindPattern(id string) (*Pattern, bool) {
	for i := range d.Patterns {
		if d.Patterns[i].ID == id {
			return &d.Patterns[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() (*Document, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var c Document
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
