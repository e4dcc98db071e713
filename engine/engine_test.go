package engine

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/mrdg/groove/audio"
	"github.com/mrdg/groove/clock"
	"github.com/mrdg/groove/midi"
	"github.com/mrdg/groove/project"
)

// dc is an instrument that outputs a constant and counts resets.
type dc struct {
	params *audio.Params
	value  *audio.Param
	resets int
}

func (p *dc) Params() *audio.Params     { return p.params }
func (p *dc) HandleEvent(ev midi.Event) {}
func (p *dc) Reset()                    { p.resets++ }
func (p *dc) Process(buf []float32, ctx *audio.Context) {
	for i := range buf {
		buf[i] += float32(p.value.Value())
	}
}

func init() {
	audio.Register("dc", audio.Instrument, func(cfg audio.Config, s audio.Settings) (audio.Device, error) {
		params := audio.NewParams()
		p := &dc{params: params, value: params.MustRegister("value", -1, 1, 0)}
		if v, ok := s["value"].(float64); ok {
			p.value.Set(v)
		}
		return p, nil
	})
}

var testConfig = Config{
	SampleRate:       44100,
	BufferSize:       512,
	LiveQueueSize:    8,
	CommandQueueSize: 16,
}

// frames in one measure of 4/4 at 120 bpm
const measure = 88200

type delivery struct {
	device string
	ev     midi.Event
}

type recorder struct {
	events []delivery
}

func (r *recorder) tap(device string, ev midi.Event) {
	r.events = append(r.events, delivery{device, ev})
}

func (r *recorder) take() []delivery {
	events := r.events
	r.events = nil
	return events
}

func steps(pitches ...int) []int {
	var notes []int
	for _, p := range pitches {
		notes = append(notes, p, 100)
	}
	return notes
}

func alternating() []int {
	var pitches []int
	for i := 0; i < 16; i++ {
		if i%2 == 0 {
			pitches = append(pitches, 60)
		} else {
			pitches = append(pitches, 0)
		}
	}
	return steps(pitches...)
}

func testDocument() *project.Document {
	return &project.Document{
		Clock: project.Clock{BPM: 120, MidiTicksPerSecond: 960, TimeSignature: [2]int{4, 4}},
		Devices: []project.Device{
			{Role: audio.Instrument, ID: "piano-1", Kind: "synth", Settings: audio.Settings{"midi-in": 0.0}},
			{Role: audio.Effect, ID: "gain-1", Kind: "gain", Settings: audio.Settings{}},
		},
		PatchCables: [][]string{{"piano-1", "gain-1"}},
		Patterns: []project.Pattern{
			{ID: "pattern-1", NoteValue: clock.Sixteenth, Notes: [][]int{alternating()}},
		},
		Tracks: []project.Track{
			{ID: "track-1", MidiChannel: 0, Patterns: []string{"pattern-1"}},
		},
	}
}

func newEngine(t *testing.T, doc *project.Document) (*Engine, *recorder, *Snapshot) {
	t.Helper()
	rec := &recorder{}
	e, err := New(testConfig, WithEventTap(rec.tap))
	if err != nil {
		t.Fatal(err)
	}
	s, err := Build(doc, testConfig)
	if err != nil {
		t.Fatal(err)
	}
	e.Install(s)
	return e, rec, s
}

func render(e *Engine, frames int) []float32 {
	out := make([]float32, 2*frames)
	e.Render(out)
	return out
}

func TestRenderOneMeasure(t *testing.T) {
	e, rec, _ := newEngine(t, testDocument())
	e.Play()
	render(e, measure)

	events := rec.take()
	var ons, offs int
	for i, d := range events {
		if d.device != "piano-1" {
			t.Fatalf("event delivered to %s", d.device)
		}
		if want, got := float64(i*240), d.ev.Tick; math.Abs(want-got) > 1e-9 {
			t.Fatalf("event %d: want tick: %v, got: %v", i, want, got)
		}
		switch d.ev.Type {
		case midi.NoteOn:
			ons++
		case midi.NoteOff:
			offs++
		}
	}
	if ons != 8 || offs != 8 {
		t.Fatalf("want 8 note-ons and 8 note-offs, got %d and %d", ons, offs)
	}
	if want, got := uint64(173), e.Stats().Buffers; want != got {
		t.Fatalf("want: %v buffers, got: %v", want, got)
	}
}

func TestEventOffsets(t *testing.T) {
	e, rec, _ := newEngine(t, testDocument())
	e.Play()
	// 240 ticks is 5512.5 frames at 120 bpm
	for i := 0; i < 11; i++ {
		render(e, 512)
	}
	events := rec.take()
	if want, got := 2, len(events); want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
	if want, got := 5512-10*512, events[1].ev.Offset; want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
}

func TestLastTripWins(t *testing.T) {
	doc := testDocument()
	doc.Paths = []project.Path{
		{ID: "low", NoteValue: clock.Quarter, Steps: []project.PathStep{{From: 0.2, To: 0.2}, {From: 0.2, To: 0.2}, {From: 0.2, To: 0.2}, {From: 0.2, To: 0.2}}},
		{ID: "high", NoteValue: clock.Quarter, Steps: []project.PathStep{{From: 0.7, To: 0.7}, {From: 0.7, To: 0.7}, {From: 0.7, To: 0.7}, {From: 0.7, To: 0.7}}},
	}
	doc.Trips = []project.Trip{
		{ID: "trip-2", Paths: []string{"high"}, StartMeasure: 7, Target: project.Target{ID: "gain-1", Param: "ceiling"}},
		{ID: "trip-1", Paths: []string{"low"}, StartMeasure: 7, Target: project.Target{ID: "gain-1", Param: "ceiling"}},
	}
	e, _, _ := newEngine(t, doc)

	e.Seek(clock.Position{Measure: 6, Beat: 3})
	render(e, 512)
	if v, _ := e.Parameter("gain-1", "ceiling"); v != 1 {
		t.Fatalf("trips applied before their start measure: %v", v)
	}

	e.Seek(clock.Position{Measure: 7})
	render(e, 512)
	v, err := e.Parameter("gain-1", "ceiling")
	if err != nil {
		t.Fatal(err)
	}
	if want, got := 0.7, v; math.Abs(want-got) > 1e-9 {
		t.Fatalf("want: %v, got: %v", want, got)
	}

	// Rendering the same position again gives the same value.
	e.Seek(clock.Position{Measure: 7})
	render(e, 512)
	if again, _ := e.Parameter("gain-1", "ceiling"); again != v {
		t.Fatalf("want: %v, got: %v", v, again)
	}
}

func TestFlatTripAcrossTempoChange(t *testing.T) {
	doc := testDocument()
	var steps []project.PathStep
	for _, v := range []float64{0, 0.25, 0.5, 0.75, 1} {
		steps = append(steps, project.PathStep{From: v, To: v})
	}
	doc.Paths = []project.Path{{ID: "fade", Steps: steps}}
	doc.Trips = []project.Trip{{ID: "trip-1", Paths: []string{"fade"}, Target: project.Target{ID: "gain-1", Param: "ceiling"}}}
	e, _, _ := newEngine(t, doc)
	e.Play()

	var got []float64
	for i := 0; i < 6; i++ {
		if i == 4 {
			if err := e.SetTempo(240); err != nil {
				t.Fatal(err)
			}
		}
		render(e, 512)
		v, _ := e.Parameter("gain-1", "ceiling")
		got = append(got, v)
	}
	want := []float64{0, 0.25, 0.5, 0.75, 1, 1}
	for i := range want {
		if math.Abs(want[i]-got[i]) > 1e-9 {
			t.Fatalf("want: %v, got: %v", want, got)
		}
	}
}

func TestLiveInputSameBuffer(t *testing.T) {
	e, rec, _ := newEngine(t, testDocument())
	render(e, 512)
	rec.take()

	e.SubmitEvent(midi.On(0, 64, 90))
	render(e, 512)
	events := rec.take()
	if want, got := 1, len(events); want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
	ev := events[0].ev
	if ev.Type != midi.NoteOn || ev.Pitch != 64 || !ev.Live || ev.Offset != 0 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if want, got := uint64(1), e.Stats().LiveDelivered; want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
}

func TestLiveInputAfterSequenced(t *testing.T) {
	e, rec, _ := newEngine(t, testDocument())
	e.Play()
	e.SubmitEvent(midi.On(0, 64, 90))
	render(e, 512)
	events := rec.take()
	if want, got := 2, len(events); want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
	if events[0].ev.Live || !events[1].ev.Live {
		t.Fatalf("want sequenced event before live event, got %v", events)
	}
}

func TestLiveQueueOverflow(t *testing.T) {
	e, rec, _ := newEngine(t, testDocument())
	for p := 0; p < 10; p++ {
		e.SubmitEvent(midi.On(0, uint8(p), 100))
	}
	if want, got := uint64(2), e.Stats().LiveDropped; want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
	render(e, 512)
	events := rec.take()
	if want, got := 8, len(events); want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
	if want, got := uint8(2), events[0].ev.Pitch; want != got {
		t.Fatalf("oldest events should be dropped: want: %v, got: %v", want, got)
	}
}

func TestSeekReleasesSoundingNotes(t *testing.T) {
	doc := testDocument()
	doc.Patterns[0] = project.Pattern{ID: "pattern-1", NoteValue: clock.Whole, Notes: [][]int{steps(60)}}
	e, rec, _ := newEngine(t, doc)
	e.Play()
	render(e, 512)
	if events := rec.take(); len(events) != 1 || events[0].ev.Type != midi.NoteOn {
		t.Fatalf("expected a note-on, got %v", events)
	}

	e.Seek(clock.Position{Beat: 2})
	render(e, 512)
	events := rec.take()
	if want, got := 1, len(events); want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
	if ev := events[0].ev; ev.Type != midi.NoteOff || ev.Pitch != 60 {
		t.Fatalf("expected note-off for 60, got %v", ev)
	}

	// The note-off at the end of the measure belongs to the released note
	// and is not sent again.
	render(e, measure/2)
	if events := rec.take(); len(events) != 0 {
		t.Fatalf("expected no events, got %v", events)
	}
}

func TestStopRewinds(t *testing.T) {
	e, rec, _ := newEngine(t, testDocument())
	e.Play()
	render(e, 3000)
	e.Stop()
	render(e, 512)
	if st := e.Stats(); st.Playing || st.Position != (clock.Position{}) {
		t.Fatalf("expected stopped transport at the start, got %+v", st)
	}
	rec.take()
	e.Play()
	render(e, 512)
	events := rec.take()
	if len(events) != 1 || events[0].ev.Tick != 0 || events[0].ev.Type != midi.NoteOn {
		t.Fatalf("expected note-on at the start, got %v", events)
	}
}

func TestSetParameter(t *testing.T) {
	e, _, _ := newEngine(t, testDocument())
	clamped, err := e.SetParameter("gain-1", "ceiling", 2)
	if err != nil {
		t.Fatal(err)
	}
	if !clamped {
		t.Fatal("expected value to be clamped")
	}
	clamped, err = e.SetParameter("gain-1", "ceiling", 0.25)
	if err != nil || clamped {
		t.Fatalf("unexpected result: %v %v", clamped, err)
	}
	render(e, 512)
	if v, _ := e.Parameter("gain-1", "ceiling"); v != 0.25 {
		t.Fatalf("want: 0.25, got: %v", v)
	}
	if _, err := e.SetParameter("gain-1", "volume", 1); err == nil {
		t.Fatal("expected error for unknown parameter")
	}
	if want, got := uint64(1), e.Stats().ClampedWrites; want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
}

func TestSnapshotSwap(t *testing.T) {
	doc := testDocument()
	e, _, first := newEngine(t, doc)
	e.Play()
	render(e, 1024)
	before := e.Stats().Position

	// A write resolved against the first snapshot is stale once the second
	// one is installed.
	if _, err := e.SetParameter("gain-1", "ceiling", 0.5); err != nil {
		t.Fatal(err)
	}
	second, err := Build(doc, testConfig)
	if err != nil {
		t.Fatal(err)
	}
	e.Install(second)
	render(e, 512)

	st := e.Stats()
	if want, got := second.ID.String(), st.Snapshot; want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
	if first.ID == second.ID {
		t.Fatal("snapshots share an id")
	}
	if want, got := uint64(1), st.StaleCommands; want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
	if v, _ := e.Parameter("gain-1", "ceiling"); v != 1 {
		t.Fatalf("stale write applied: %v", v)
	}
	after := doc.Clock.Signature().Ticks(st.Position)
	if start := doc.Clock.Signature().Ticks(before); after <= start {
		t.Fatalf("transport position did not carry over: %v -> %v", before, st.Position)
	}
}

func TestPanic(t *testing.T) {
	doc := testDocument()
	doc.Devices = append(doc.Devices, project.Device{Role: audio.Instrument, ID: "dc-1", Kind: "dc", Settings: audio.Settings{}})
	e, _, s := newEngine(t, doc)
	render(e, 512)
	e.Panic()
	render(e, 512)
	d, _ := s.Graph.Device("dc-1")
	if want, got := 1, d.(*dc).resets; want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
}

func TestNaNIsSilenced(t *testing.T) {
	doc := testDocument()
	doc.Devices = append(doc.Devices,
		project.Device{Role: audio.Instrument, ID: "dc-1", Kind: "dc", Settings: audio.Settings{"value": 0.5}},
		project.Device{Role: audio.Instrument, ID: "dc-2", Kind: "dc", Settings: audio.Settings{}},
	)
	doc.PatchCables = append(doc.PatchCables, []string{"dc-1", "main-mixer"}, []string{"dc-2", "main-mixer"})
	e, _, s := newEngine(t, doc)
	d, _ := s.Graph.Device("dc-2")
	// Non-finite values can't be set through the parameter API.
	d.(*dc).value = nanParam()

	out := render(e, 512)
	for i, v := range out {
		if math.IsNaN(float64(v)) {
			t.Fatalf("sample %d is NaN", i)
		}
		if v != 0.5 {
			t.Fatalf("sample %d: want: 0.5, got: %v", i, v)
		}
	}
	if st := e.Stats(); st.SilencedBuffers == 0 {
		t.Fatal("expected silenced buffers to be counted")
	}
}

func nanParam() *audio.Param {
	params := audio.NewParams()
	return params.MustRegister("nan", math.Inf(-1), math.Inf(1), math.Inf(1))
}

func TestRenderWithoutProject(t *testing.T) {
	e, err := New(testConfig)
	if err != nil {
		t.Fatal(err)
	}
	e.Play()
	out := render(e, 100)
	for _, v := range out {
		if v != 0 {
			t.Fatal("expected silence")
		}
	}
	if _, err := e.Parameter("gain-1", "ceiling"); err == nil {
		t.Fatal("expected error without a project")
	}
}

func TestLiveInputWithoutProject(t *testing.T) {
	rec := &recorder{}
	e, err := New(testConfig, WithEventTap(rec.tap))
	if err != nil {
		t.Fatal(err)
	}
	for p := 0; p < 3; p++ {
		e.SubmitEvent(midi.On(0, uint8(60+p), 100))
	}
	render(e, 512)
	if want, got := uint64(3), e.Stats().LiveStale; want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}

	s, err := Build(testDocument(), testConfig)
	if err != nil {
		t.Fatal(err)
	}
	e.Install(s)
	render(e, 512)
	if events := rec.take(); len(events) != 0 {
		t.Fatalf("events queued before the project was installed must not be delivered, got %v", events)
	}
}

func TestArpeggiatorPauseLeavesNoStuckNotes(t *testing.T) {
	doc := testDocument()
	doc.Devices = append(doc.Devices, project.Device{
		Role:     audio.Controller,
		ID:       "arp-1",
		Kind:     "arpeggiator",
		Settings: audio.Settings{"midi-in": 1.0, "midi-out": 0.0, "gate": 1.0},
	})
	e, rec, _ := newEngine(t, doc)
	e.SubmitEvent(midi.On(1, 72, 100))
	e.Play()
	render(e, 1024)
	e.Pause()
	for i := 0; i < 100; i++ {
		render(e, 512)
	}

	sounding := make(map[uint8]bool)
	var arpNotes int
	for _, d := range rec.take() {
		if d.device != "piano-1" {
			continue
		}
		if d.ev.Pitch == 72 {
			arpNotes++
		}
		sounding[d.ev.Pitch] = d.ev.Type == midi.NoteOn
	}
	if arpNotes == 0 {
		t.Fatal("expected the arpeggiator to play")
	}
	for pitch, on := range sounding {
		if on {
			t.Errorf("pitch %d still sounding after pause", pitch)
		}
	}
}

func TestEditor(t *testing.T) {
	doc := testDocument()
	e, _, first := newEngine(t, doc)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ed := NewEditor(e, doc, time.Hour, logger)

	err := ed.Edit(func(d *project.Document) error {
		d.Patterns[0].Notes[0][0] = 62
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := ed.Flush(); err != nil {
		t.Fatal(err)
	}
	second := e.Snapshot()
	if second == first {
		t.Fatal("expected a new snapshot")
	}
	if want, got := 60, doc.Patterns[0].Notes[0][0]; want != got {
		t.Fatalf("edit changed the original document: %v", got)
	}

	err = ed.Edit(func(d *project.Document) error {
		d.Patterns[0].Notes[0] = d.Patterns[0].Notes[0][:4]
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	var loadErr *project.LoadError
	if err := ed.Flush(); !errors.As(err, &loadErr) || loadErr.Kind != project.MalformedPattern {
		t.Fatalf("expected malformed pattern error, got %v", err)
	}
	if e.Snapshot() != second {
		t.Fatal("failed rebuild replaced the snapshot")
	}

	failed := errors.New("rejected")
	if err := ed.Edit(func(d *project.Document) error { return failed }); err != failed {
		t.Fatalf("want: %v, got: %v", failed, err)
	}
}
