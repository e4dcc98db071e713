package audio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWAVRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(file)
	if err != nil {
		t.Fatal(err)
	}
	buf := []float32{0, 0, 0.5, 0.5, -0.5, -0.5, 1, 1, -1, -1, 0.25, 0.25}
	w := NewWAVWriter(f, len(buf)/2, 44100)
	if err := w.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	snd, err := LoadSample(file)
	if err != nil {
		t.Fatal(err)
	}
	if want, got := 6, snd.Len(); want != got {
		t.Fatalf("want %v samples, got %v", want, got)
	}
	for i, want := range []float64{0, 0.5, -0.5, 1, -1, 0.25} {
		if got := snd.buf[i]; got < want-0.001 || got > want+0.001 {
			t.Errorf("sample %d: want %v, got %v", i, want, got)
		}
	}
}
