package cmd

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mrdg/groove/engine"
	"github.com/mrdg/groove/project"
)

const demo = "../project/testdata/demo.json"

var testConfig = engine.Config{
	SampleRate:       44100,
	BufferSize:       512,
	LiveQueueSize:    8,
	CommandQueueSize: 16,
}

func init() {
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSession(t *testing.T) *session {
	t.Helper()
	doc, err := project.Load(demo)
	if err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(testConfig)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := engine.Build(doc, testConfig)
	if err != nil {
		t.Fatal(err)
	}
	eng.Install(snap)
	return &session{
		engine: eng,
		editor: engine.NewEditor(eng, doc, time.Hour, logger),
		path:   filepath.Join(t.TempDir(), "saved.json"),
	}
}

func (s *session) render() {
	s.engine.Render(make([]float32, 2*testConfig.BufferSize))
}

func mustEval(t *testing.T, s *session, input string) string {
	t.Helper()
	result, err := s.eval(input)
	if err != nil {
		t.Fatalf("%s: %v", input, err)
	}
	return result
}

func TestTransport(t *testing.T) {
	s := newSession(t)
	mustEval(t, s, "play")
	s.render()
	if !s.engine.Stats().Playing {
		t.Error("expected transport to be playing")
	}
	mustEval(t, s, "stop")
	mustEval(t, s, "seek 2 3")
	s.render()
	st := s.engine.Stats()
	if st.Playing {
		t.Error("expected transport to be stopped")
	}
	if want, got := 1, st.Position.Measure; want != got {
		t.Errorf("want measure %d, got %d", want, got)
	}
	if want, got := 2, st.Position.Beat; want != got {
		t.Errorf("want beat %d, got %d", want, got)
	}
}

func TestEvalErrors(t *testing.T) {
	s := newSession(t)
	for _, input := range []string{
		"dance",
		"play now",
		"seek 0",
		"seek 1 2 3 4",
		"tempo 0",
		"set nope ceiling 1",
		"get gain-1 nope",
		"note 16 60 100",
		"note 0 128 100",
		"off 0",
		"steps nope 1 60 100 '*",
		"steps bass 3 60 100 '*",
		"steps chords 1 60 100 '*",
		"clear bass 2",
		"show nope",
		"save 1",
	} {
		if _, err := s.eval(input); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

func TestSetParameter(t *testing.T) {
	s := newSession(t)
	if got := mustEval(t, s, "set gain-1 ceiling 0.5"); got != "" {
		t.Errorf("unexpected result: %q", got)
	}
	s.render()
	if want, got := "0.5", mustEval(t, s, "get gain-1 ceiling"); want != got {
		t.Errorf("want %s, got %s", want, got)
	}

	got := mustEval(t, s, "set gain-1 ceiling 2")
	if !strings.Contains(got, "clamped to [0, 1]") {
		t.Errorf("expected clamp notice, got %q", got)
	}
	s.render()
	if want, got := "1", mustEval(t, s, "get gain-1 ceiling"); want != got {
		t.Errorf("want %s, got %s", want, got)
	}
}

func TestDevices(t *testing.T) {
	s := newSession(t)
	got := mustEval(t, s, "devices")
	for _, want := range []string{"piano-1 (instrument)", "arp-1 (controller)", "gain-1 (effect)", "ceiling"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in:\n%s", want, got)
		}
	}
}

func TestSteps(t *testing.T) {
	s := newSession(t)
	before := s.engine.Snapshot().ID

	mustEval(t, s, "steps bass 1 48 90 '1:4")
	mustEval(t, s, "steps bass 2 55 60 '*/2")
	if err := s.editor.Flush(); err != nil {
		t.Fatal(err)
	}
	if s.engine.Snapshot().ID == before {
		t.Error("expected a new snapshot after editing")
	}

	doc, err := s.editor.Document()
	if err != nil {
		t.Fatal(err)
	}
	p, _ := doc.FindPattern("bass")
	if want, got := 2, len(p.Notes); want != got {
		t.Fatalf("want %d rows, got %d", want, got)
	}
	// the bass pattern is one measure of sixteenths
	for step := 0; step < 16; step++ {
		pitch, vel := p.Notes[0][2*step], p.Notes[0][2*step+1]
		if step%4 == 0 {
			if pitch != 48 || vel != 90 {
				t.Errorf("row 1 step %d: want 48/90, got %d/%d", step, pitch, vel)
			}
		} else if pitch != 0 || vel != 0 {
			t.Errorf("row 1 step %d: want a rest, got %d/%d", step, pitch, vel)
		}
		on := p.Notes[1][2*step] == 55
		if want := step%4 == 2; want != on {
			t.Errorf("row 2 step %d: want note %v, got %v", step, want, on)
		}
	}

	mustEval(t, s, "clear bass 2")
	doc, _ = s.editor.Document()
	p, _ = doc.FindPattern("bass")
	for _, v := range p.Notes[1] {
		if v != 0 {
			t.Fatalf("expected row 2 to be cleared, got %v", p.Notes[1])
		}
	}
}

func TestSave(t *testing.T) {
	s := newSession(t)
	mustEval(t, s, "steps bass 1 50 100 '*")
	if got := mustEval(t, s, "save"); got != "saved "+s.path {
		t.Errorf("unexpected result: %q", got)
	}
	doc, err := project.Load(s.path)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := doc.FindPattern("bass")
	if want, got := 50, p.Notes[0][0]; want != got {
		t.Errorf("want pitch %d, got %d", want, got)
	}
}

func TestReadCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands")
	input := "# warm up\ntempo 96\n\n  play  \n"
	if err := os.WriteFile(path, []byte(input), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := readCommands(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"tempo 96", "play"}; strings.Join(want, "|") != strings.Join(got, "|") {
		t.Errorf("want %q, got %q", want, got)
	}
}

func TestShowPatterns(t *testing.T) {
	doc, err := project.Load(demo)
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	if err := showPatterns(&b, doc, []string{"chords"}, false); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n")
	if want, got := 5, len(lines); want != got {
		t.Fatalf("want %d lines, got %d:\n%s", want, got, b.String())
	}
	if want, got := "chords half", lines[0]; want != got {
		t.Errorf("want %q, got %q", want, got)
	}
	if want, got := 2, strings.Count(lines[2], "⬛️"); want != got {
		t.Errorf("want %d filled steps, got %d", want, got)
	}
}
