// Package midi defines the note events that flow through the engine and
// connects them to MIDI hardware and files.
package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

const NumChannels = 16

type Type uint8

const (
	NoteOff Type = 0x80
	NoteOn  Type = 0x90
)

func (t Type) String() string {
	switch t {
	case NoteOn:
		return "note-on"
	case NoteOff:
		return "note-off"
	}
	return fmt.Sprintf("Type(%#x)", uint8(t))
}

// Event is a note event on one of the 16 MIDI channels.
type Event struct {
	Type     Type
	Channel  uint8
	Pitch    uint8
	Velocity uint8

	// Tick is the musical position of the event in clock.PPQN ticks.
	Tick float64
	// Offset is the frame offset within the buffer that delivers the event.
	Offset int
	// Live marks events that arrived from an input port rather than the
	// sequencer.
	Live bool
}

func On(channel, pitch, velocity uint8) Event {
	return Event{Type: NoteOn, Channel: channel, Pitch: pitch, Velocity: velocity}
}

func Off(channel, pitch uint8) Event {
	return Event{Type: NoteOff, Channel: channel, Pitch: pitch}
}

func (e Event) String() string {
	return fmt.Sprintf("%v ch=%d pitch=%d vel=%d tick=%.2f", e.Type, e.Channel, e.Pitch, e.Velocity, e.Tick)
}

// Message converts the event to a wire message.
func (e Event) Message() gomidi.Message {
	if e.Type == NoteOn {
		return gomidi.NoteOn(e.Channel, e.Pitch, e.Velocity)
	}
	return gomidi.NoteOff(e.Channel, e.Pitch)
}

// FromMessage converts a wire message to an event. A note-on with zero
// velocity is reported as a note-off. ok is false for anything that isn't a
// note message.
func FromMessage(msg gomidi.Message) (ev Event, ok bool) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return On(ch, key, vel), true
	case msg.GetNoteEnd(&ch, &key):
		return Off(ch, key), true
	}
	return Event{}, false
}

// Less orders events by position. At equal positions sequenced events come
// before live ones, and within each group every note-off comes before every
// note-on, whatever the channel, so that a repeated pitch retriggers. Events
// that compare equal keep their order under Sort.
func Less(a, b Event) bool {
	if a.Tick != b.Tick {
		return a.Tick < b.Tick
	}
	if a.Live != b.Live {
		return !a.Live
	}
	return a.Type == NoteOff && b.Type == NoteOn
}

// Sort is a stable insertion sort by Less. It doesn't allocate, so it can be
// used on the audio thread where event lists are short.
func Sort(events []Event) {
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && Less(events[j], events[j-1]); j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
}
