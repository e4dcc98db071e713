package audio

import (
	"math"

	"github.com/mrdg/groove/clock"
	"github.com/mrdg/groove/midi"
)

const (
	arpUp = iota
	arpDown
	arpUpDown
)

// Arpeggiator turns held notes into a rhythmic sequence. Steps are anchored
// to the musical grid, so the output only depends on the transport position
// and the notes held.
type Arpeggiator struct {
	params  *Params
	rate    *Param
	octaves *Param
	mode    *Param
	gate    *Param

	held     [128]bool
	notes    [128]uint8
	numNotes int
	velocity uint8

	step     int
	sounding int
	offAt    float64
}

func newArpeggiator(cfg Config, settings Settings) (Device, error) {
	params := NewParams()
	a := &Arpeggiator{
		params:   params,
		rate:     params.MustRegister("rate", 1, 16, 4),
		octaves:  params.MustRegister("octaves", 1, 4, 1),
		mode:     params.MustRegister("mode", arpUp, arpUpDown, arpUp),
		gate:     params.MustRegister("gate", 0.05, 1, 0.5),
		sounding: -1,
	}
	if err := settings.apply(params); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Arpeggiator) Params() *Params { return a.params }

func (a *Arpeggiator) HandleEvent(ev midi.Event) {
	on := ev.Type == midi.NoteOn && ev.Velocity > 0
	if a.held[ev.Pitch] == on {
		return
	}
	a.held[ev.Pitch] = on
	if on {
		a.velocity = ev.Velocity
	}
	a.numNotes = 0
	for pitch, held := range a.held {
		if held {
			a.notes[a.numNotes] = uint8(pitch)
			a.numNotes++
		}
	}
}

// Process leaves the audio untouched and emits the notes of every step that
// starts inside the buffer. A sounding note ends at the start of the buffer
// once its keys are released or the transport stops.
func (a *Arpeggiator) Process(buf []float32, ctx *Context) {
	if ctx.Out == nil {
		return
	}
	if a.sounding >= 0 && (a.numNotes == 0 || ctx.End <= ctx.Start) {
		a.release(ctx, ctx.Start)
	}
	if ctx.End <= ctx.Start {
		return
	}
	stepTicks := clock.PPQN / float64(a.rate.Int())
	for t := math.Ceil(ctx.Start/stepTicks) * stepTicks; t < ctx.End; t += stepTicks {
		if a.sounding >= 0 && a.offAt <= t {
			a.release(ctx, a.offAt)
		}
		if a.numNotes == 0 {
			a.step = 0
			continue
		}
		pitch := a.pitchAt(a.step)
		a.step++
		ev := midi.On(0, uint8(pitch), a.velocity)
		ev.Tick = t
		ev.Offset = ctx.Offset(t)
		ctx.Out.Send(ev)
		a.sounding = pitch
		a.offAt = t + a.gate.Value()*stepTicks
	}
	if a.sounding >= 0 && a.offAt < ctx.End {
		a.release(ctx, a.offAt)
	}
}

func (a *Arpeggiator) release(ctx *Context, tick float64) {
	ev := midi.Off(0, uint8(a.sounding))
	ev.Tick = tick
	ev.Offset = ctx.Offset(tick)
	ctx.Out.Send(ev)
	a.sounding = -1
}

// pitchAt returns the pitch played at step n of the current sequence.
func (a *Arpeggiator) pitchAt(n int) int {
	length := a.numNotes * a.octaves.Int()
	i := n % length
	switch a.mode.Int() {
	case arpDown:
		i = length - 1 - i
	case arpUpDown:
		if length > 1 {
			cycle := 2*length - 2
			i = n % cycle
			if i >= length {
				i = cycle - i
			}
		}
	}
	pitch := int(a.notes[i%a.numNotes]) + 12*(i/a.numNotes)
	if pitch > 127 {
		pitch = 127
	}
	return pitch
}

func (a *Arpeggiator) Reset() {
	a.held = [128]bool{}
	a.numNotes = 0
	a.step = 0
	a.sounding = -1
}
