package control

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mrdg/groove/audio"
	"github.com/mrdg/groove/clock"
	"github.com/mrdg/groove/engine"
	"github.com/mrdg/groove/midi"
	"github.com/mrdg/groove/project"
)

var config = engine.Config{
	SampleRate:       44100,
	BufferSize:       256,
	LiveQueueSize:    16,
	CommandQueueSize: 16,
}

func document() *project.Document {
	return &project.Document{
		Clock: project.Clock{BPM: 120, MidiTicksPerSecond: 960, TimeSignature: [2]int{4, 4}},
		Devices: []project.Device{
			{Role: audio.Instrument, ID: "piano-1", Kind: "synth", Settings: audio.Settings{"midi-in": 0.0}},
			{Role: audio.Effect, ID: "gain-1", Kind: "gain", Settings: audio.Settings{"ceiling": 0.5}},
		},
		PatchCables: [][]string{{"piano-1", "gain-1"}},
	}
}

type fixture struct {
	engine  *engine.Engine
	handler http.Handler
	events  []midi.Event
}

func newFixture(t *testing.T, load bool) *fixture {
	t.Helper()
	f := &fixture{}
	e, err := engine.New(config, engine.WithEventTap(func(device string, ev midi.Event) {
		f.events = append(f.events, ev)
	}))
	if err != nil {
		t.Fatal(err)
	}
	if load {
		s, err := engine.Build(document(), config)
		if err != nil {
			t.Fatal(err)
		}
		e.Install(s)
	}
	f.engine = e
	f.handler = Handler(e, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *fixture) render() {
	f.engine.Render(make([]float32, 2*config.BufferSize))
}

func TestDevices(t *testing.T) {
	f := newFixture(t, true)
	w := f.do("GET", "/devices", "")
	if want, got := http.StatusOK, w.Code; want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
	var devices []deviceInfo
	if err := json.NewDecoder(w.Body).Decode(&devices); err != nil {
		t.Fatal(err)
	}
	if want, got := 2, len(devices); want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
	gain := devices[1]
	if gain.ID != "gain-1" || gain.Role != "effect" {
		t.Fatalf("unexpected device: %+v", gain)
	}
	want := []paramInfo{
		{Name: "ceiling", Value: 0.5, Min: 0, Max: 1},
		{Name: "humidity", Value: 1, Min: 0, Max: 1},
	}
	if got := gain.Params; len(got) != len(want) || want[0] != got[0] || want[1] != got[1] {
		t.Fatalf("want: %v, got: %v", want, got)
	}
}

func TestParams(t *testing.T) {
	f := newFixture(t, true)
	w := f.do("PUT", "/devices/gain-1/params/ceiling", `{"value": 3}`)
	if want, got := http.StatusOK, w.Code; want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
	var res paramValue
	json.NewDecoder(w.Body).Decode(&res)
	if !res.Clamped {
		t.Fatal("expected clamped flag")
	}
	f.render()

	w = f.do("GET", "/devices/gain-1/params/ceiling", "")
	res = paramValue{}
	json.NewDecoder(w.Body).Decode(&res)
	if res.Value == nil || *res.Value != 1 {
		t.Fatalf("want: 1, got: %v", res.Value)
	}

	tests := []struct {
		method, path, body string
		code               int
	}{
		{"GET", "/devices/gain-2/params/ceiling", "", http.StatusNotFound},
		{"GET", "/devices/gain-1/params/volume", "", http.StatusNotFound},
		{"PUT", "/devices/gain-1/params/ceiling", `{}`, http.StatusBadRequest},
		{"PUT", "/devices/gain-1/params/ceiling", `{"value": "loud"}`, http.StatusBadRequest},
		{"PUT", "/devices/gain-1/params/volume", `{"value": 1}`, http.StatusNotFound},
	}
	for _, test := range tests {
		if w := f.do(test.method, test.path, test.body); w.Code != test.code {
			t.Errorf("%s %s: want: %v, got: %v", test.method, test.path, test.code, w.Code)
		}
	}
}

func TestTransport(t *testing.T) {
	f := newFixture(t, true)
	if w := f.do("POST", "/transport/play", ""); w.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %v", w.Code)
	}
	f.render()
	if !f.engine.Stats().Playing {
		t.Fatal("expected transport to be playing")
	}

	f.do("POST", "/transport/pause", "")
	f.do("POST", "/transport/seek", `{"measure": 2, "beat": 1}`)
	f.render()
	st := f.engine.Stats()
	if want, got := (clock.Position{Measure: 2, Beat: 1}), st.Position; st.Playing || want != got {
		t.Fatalf("want: paused at %v, got: %+v", want, st)
	}

	if w := f.do("POST", "/transport/tempo", `{"bpm": 0}`); w.Code != http.StatusBadRequest {
		t.Fatalf("want bad request for zero tempo, got %v", w.Code)
	}
	if w := f.do("POST", "/transport/rewind", ""); w.Code != http.StatusNotFound {
		t.Fatalf("want not found for unknown action, got %v", w.Code)
	}
	if w := f.do("GET", "/transport/play", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("want method not allowed, got %v", w.Code)
	}
}

func TestTempo(t *testing.T) {
	f := newFixture(t, true)
	f.do("POST", "/transport/tempo", `{"bpm": 90}`)
	f.do("POST", "/transport/play", "")
	f.render()
	f.render()
	if want, got := 90.0, f.engine.Stats().BPM; want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
}

func TestEvents(t *testing.T) {
	f := newFixture(t, true)
	w := f.do("POST", "/events", `{"type": "note-on", "channel": 0, "pitch": 60, "velocity": 100}`)
	if want, got := http.StatusAccepted, w.Code; want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
	f.render()
	if len(f.events) != 1 || f.events[0].Pitch != 60 || !f.events[0].Live {
		t.Fatalf("unexpected events: %v", f.events)
	}
	for _, body := range []string{
		`{"type": "note-on", "channel": 16, "pitch": 60, "velocity": 100}`,
		`{"type": "pitch-bend", "channel": 0}`,
		`{"type": `,
	} {
		if w := f.do("POST", "/events", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: want bad request, got %v", body, w.Code)
		}
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, true)
	f.render()
	w := f.do("GET", "/stats", "")
	var st engine.Stats
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if want, got := uint64(1), st.Buffers; want != got {
		t.Fatalf("want: %v, got: %v", want, got)
	}
	if st.Snapshot == "" {
		t.Fatal("expected snapshot id")
	}
}

func TestNoProject(t *testing.T) {
	f := newFixture(t, false)
	for _, path := range []string{"/devices", "/devices/gain-1/params/ceiling"} {
		if w := f.do("GET", path, ""); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: want: %v, got: %v", path, http.StatusServiceUnavailable, w.Code)
		}
	}
}
