// Package clock maps between audio frames, MIDI ticks and musical position.
package clock

import (
	"errors"
	"fmt"
	"math"
)

// PPQN is the resolution of musical positions in ticks per quarter note.
const PPQN = 960

// ErrInvalidConfig is returned when a clock is configured with a non-positive
// tempo, tick rate, sample rate or time signature component.
var ErrInvalidConfig = errors.New("invalid clock config")

// positions closer than this to a whole tick are snapped to it, which absorbs
// floating point error in frame/tick round trips.
const snap = 1e-6

type Config struct {
	BPM            float64
	TicksPerSecond int
	Signature      Signature
	SampleRate     int
}

func (c Config) Validate() error {
	switch {
	case !(c.BPM > 0) || math.IsInf(c.BPM, 0):
		return fmt.Errorf("%w: bpm must be positive, got %v", ErrInvalidConfig, c.BPM)
	case c.TicksPerSecond <= 0:
		return fmt.Errorf("%w: midi ticks per second must be positive, got %d", ErrInvalidConfig, c.TicksPerSecond)
	case c.Signature.Num <= 0 || c.Signature.Den <= 0:
		return fmt.Errorf("%w: bad time signature %v", ErrInvalidConfig, c.Signature)
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfig, c.SampleRate)
	}
	return nil
}

// Position is a zero-based musical coordinate. Tick counts ticks within the
// beat and Frac the fraction of the next tick.
type Position struct {
	Measure int
	Beat    int
	Tick    int
	Frac    float64
}

func (p Position) String() string {
	if p.Frac != 0 {
		return fmt.Sprintf("%d:%d:%d+%.3f", p.Measure, p.Beat, p.Tick, p.Frac)
	}
	return fmt.Sprintf("%d:%d:%d", p.Measure, p.Beat, p.Tick)
}

// Clock tracks the transport position in frames. The mapping between frames
// and ticks is linear from an anchor point, which moves whenever the tempo
// changes or the transport seeks.
type Clock struct {
	cfg     Config
	bpm     float64
	pending float64

	frame       int64
	anchorFrame int64
	anchorTicks float64
}

func New(cfg Config) (*Clock, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Clock{cfg: cfg, bpm: cfg.BPM}, nil
}

func (c *Clock) BPM() float64             { return c.bpm }
func (c *Clock) Signature() Signature     { return c.cfg.Signature }
func (c *Clock) SampleRate() int          { return c.cfg.SampleRate }
func (c *Clock) Frame() int64             { return c.frame }
func (c *Clock) Ticks() float64           { return c.ticksAt(float64(c.frame)) }
func (c *Clock) Position() Position       { return c.cfg.Signature.Position(c.Ticks()) }
func (c *Clock) TicksPerMeasure() float64 { return c.cfg.Signature.TicksPerMeasure() }

// TicksPerFrame returns the number of musical ticks that pass per audio frame
// at the current tempo. BPM always counts quarter notes, whatever the time
// signature.
func (c *Clock) TicksPerFrame() float64 {
	return c.bpm / 60 * PPQN / float64(c.cfg.SampleRate)
}

// QueueTempo schedules a tempo change for the start of the next Advance.
func (c *Clock) QueueTempo(bpm float64) error {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return fmt.Errorf("%w: bpm must be positive, got %v", ErrInvalidConfig, bpm)
	}
	c.pending = bpm
	return nil
}

func (c *Clock) applyTempo() {
	if c.pending == 0 {
		return
	}
	c.anchorTicks = c.Ticks()
	c.anchorFrame = c.frame
	c.bpm = c.pending
	c.pending = 0
}

// Advance moves the transport forward by frames and returns the position at
// the start of the span.
func (c *Clock) Advance(frames int) Position {
	start, _ := c.AdvanceSpan(frames)
	return c.cfg.Signature.Position(start)
}

// AdvanceSpan is like Advance but returns the tick span covered.
func (c *Clock) AdvanceSpan(frames int) (start, end float64) {
	c.applyTempo()
	start = c.Ticks()
	c.frame += int64(frames)
	return start, c.Ticks()
}

// Seek moves the transport to p. Queued tempo changes stay queued.
func (c *Clock) Seek(p Position) {
	c.SeekTicks(c.cfg.Signature.Ticks(p))
}

func (c *Clock) SeekTicks(t float64) {
	if t < 0 {
		t = 0
	}
	c.frame = int64(math.Round(c.frameAt(t)))
	c.anchorFrame = c.frame
	c.anchorTicks = t
}

func (c *Clock) ticksAt(frame float64) float64 {
	return c.anchorTicks + (frame-float64(c.anchorFrame))*c.TicksPerFrame()
}

func (c *Clock) frameAt(ticks float64) float64 {
	return float64(c.anchorFrame) + (ticks-c.anchorTicks)/c.TicksPerFrame()
}

// PositionToFrame returns the (possibly fractional) frame at which p occurs.
func (c *Clock) PositionToFrame(p Position) float64 {
	return c.frameAt(c.cfg.Signature.Ticks(p))
}

// FrameToPosition is the inverse of PositionToFrame.
func (c *Clock) FrameToPosition(frame float64) Position {
	return c.cfg.Signature.Position(c.ticksAt(frame))
}

// FrameToMidiTicks converts a frame count to ticks of the MIDI tick clock.
func (c *Clock) FrameToMidiTicks(frame float64) float64 {
	return frame * float64(c.cfg.TicksPerSecond) / float64(c.cfg.SampleRate)
}

func (c *Clock) MidiTicksToFrame(ticks float64) float64 {
	return ticks * float64(c.cfg.SampleRate) / float64(c.cfg.TicksPerSecond)
}
