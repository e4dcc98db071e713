package audio

import (
	"reflect"
	"testing"

	"github.com/mrdg/groove/midi"
)

type eventRecorder []midi.Event

func (r *eventRecorder) Send(ev midi.Event) { *r = append(*r, ev) }

func TestArpeggiator(t *testing.T) {
	arp := newDevice(t, Controller, "arpeggiator", Settings{"rate": 2.0, "gate": 0.5})
	arp.HandleEvent(midi.On(0, 64, 90))
	arp.HandleEvent(midi.On(0, 60, 90))

	var rec eventRecorder
	// one quarter note at 120 bpm, two steps of 480 ticks
	ctx := &Context{
		Frames:        22050,
		Start:         0,
		End:           960,
		TicksPerFrame: 960.0 / 22050,
		Out:           &rec,
	}
	arp.Process(nil, ctx)

	type note struct {
		typ   midi.Type
		pitch uint8
		tick  float64
	}
	var got []note
	for _, ev := range rec {
		got = append(got, note{ev.Type, ev.Pitch, ev.Tick})
	}
	want := []note{
		{midi.NoteOn, 60, 0},
		{midi.NoteOff, 60, 240},
		{midi.NoteOn, 64, 480},
		{midi.NoteOff, 64, 720},
	}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}
	if want, got := 11025, rec[2].Offset; want != got {
		t.Errorf("want offset %v, got %v", want, got)
	}
}

func TestArpeggiatorSilentWhenPaused(t *testing.T) {
	arp := newDevice(t, Controller, "arpeggiator", nil)
	arp.HandleEvent(midi.On(0, 60, 90))
	var rec eventRecorder
	arp.Process(nil, &Context{Frames: 512, Start: 100, End: 100, Out: &rec})
	if len(rec) != 0 {
		t.Errorf("expected no events, got %v", rec)
	}
}

func TestArpeggiatorReleasesOnPause(t *testing.T) {
	arp := newDevice(t, Controller, "arpeggiator", Settings{"rate": 1.0, "gate": 1.0})
	arp.HandleEvent(midi.On(0, 60, 90))
	var rec eventRecorder
	arp.Process(nil, &Context{Frames: 512, Start: 0, End: 100, TicksPerFrame: 100.0 / 512, Out: &rec})
	if want, got := []midi.Event{{Type: midi.NoteOn, Pitch: 60, Velocity: 90}}, []midi.Event(rec); !reflect.DeepEqual(want, got) {
		t.Fatalf("want %v, got %v", want, got)
	}

	rec = nil
	arp.Process(nil, &Context{Frames: 512, Start: 100, End: 100, Out: &rec})
	off := midi.Off(0, 60)
	off.Tick = 100
	if want, got := []midi.Event{off}, []midi.Event(rec); !reflect.DeepEqual(want, got) {
		t.Fatalf("want %v, got %v", want, got)
	}

	rec = nil
	arp.Process(nil, &Context{Frames: 512, Start: 100, End: 100, Out: &rec})
	if len(rec) != 0 {
		t.Errorf("expected no more events, got %v", rec)
	}
}

func TestArpeggiatorReleasesWithKeys(t *testing.T) {
	arp := newDevice(t, Controller, "arpeggiator", Settings{"rate": 1.0, "gate": 1.0})
	arp.HandleEvent(midi.On(0, 60, 90))
	var rec eventRecorder
	arp.Process(nil, &Context{Frames: 512, Start: 0, End: 100, TicksPerFrame: 100.0 / 512, Out: &rec})

	arp.HandleEvent(midi.Off(0, 60))
	rec = nil
	arp.Process(nil, &Context{Frames: 512, Start: 100, End: 200, TicksPerFrame: 100.0 / 512, Out: &rec})
	off := midi.Off(0, 60)
	off.Tick = 100
	if want, got := []midi.Event{off}, []midi.Event(rec); !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestArpeggiatorUpDown(t *testing.T) {
	a := newDevice(t, Controller, "arpeggiator", Settings{"mode": 2.0, "octaves": 2.0}).(*Arpeggiator)
	a.HandleEvent(midi.On(0, 60, 90))
	a.HandleEvent(midi.On(0, 67, 90))
	var got []int
	for n := 0; n < 8; n++ {
		got = append(got, a.pitchAt(n))
	}
	if want := []int{60, 67, 72, 79, 72, 67, 60, 67}; !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}
}
