package midi

import (
	"fmt"
	"io"
	"math"

	"gitlab.com/gomidi/midi/v2/smf"
)

// Resolution of exported files in ticks per quarter note. It matches the
// resolution of musical positions, so ticks copy over unchanged.
const Resolution = 960

// Song is a sequenced arrangement to export.
type Song struct {
	BPM         float64
	Numerator   uint8
	Denominator uint8
	// Events must be sorted by Less.
	Events []Event
	// Length is the position of the end of the song in ticks.
	Length float64
}

// WriteSMF writes song as a format 1 Standard MIDI File with a tempo track
// followed by one track per channel that has events.
func WriteSMF(w io.Writer, song Song) error {
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(Resolution)

	var track0 smf.Track
	track0.Add(0, smf.MetaMeter(song.Numerator, song.Denominator))
	track0.Add(0, smf.MetaTempo(song.BPM))
	track0.Close(toTicks(song.Length))
	if err := sm.Add(track0); err != nil {
		return fmt.Errorf("add tempo track: %w", err)
	}

	for ch := uint8(0); ch < NumChannels; ch++ {
		var (
			track smf.Track
			last  uint32
			used  bool
		)
		for _, ev := range song.Events {
			if ev.Channel != ch {
				continue
			}
			pos := toTicks(ev.Tick)
			track.Add(pos-last, ev.Message())
			last = pos
			used = true
		}
		if !used {
			continue
		}
		end := toTicks(song.Length)
		if end < last {
			end = last
		}
		track.Close(end - last)
		if err := sm.Add(track); err != nil {
			return fmt.Errorf("add track for channel %d: %w", ch, err)
		}
	}
	if _, err := sm.WriteTo(w); err != nil {
		return fmt.Errorf("write smf: %w", err)
	}
	return nil
}

func toTicks(t float64) uint32 {
	if t <= 0 {
		return 0
	}
	return uint32(math.Round(t))
}
