package audio

import (
	"sync/atomic"

	"github.com/mrdg/groove/midi"
)

const (
	blockSize = 16 // this gives about 0.35ms accuracy for sequenced events
	numVoices = 12

	// maximum number of events an instrument accepts per buffer
	maxPendingEvents = 128
)

type voiceState int

const (
	stateFree voiceState = iota
	stateActive
	stateReleased
)

type Voice interface {
	NoteOn(pitch, velocity int)
	NoteOff()
	Process(buf []float64)
	State() voiceState
	Pitch() int
	Reset()
}

// VoicePool plays note events on a fixed set of voices. Events are applied
// at their frame offset with block granularity.
type VoicePool struct {
	params  *Params
	voices  []Voice
	pending []midi.Event
	buf     []float64
	level   *Param
	dropped atomic.Uint64
}

const propLevel = "level"

func NewVoicePool(params *Params, voices []Voice, bufferSize int) *VoicePool {
	return &VoicePool{
		params:  params,
		voices:  voices,
		pending: make([]midi.Event, 0, maxPendingEvents),
		buf:     make([]float64, bufferSize),
		level:   params.MustRegister(propLevel, -40, 10, 0),
	}
}

func (p *VoicePool) Params() *Params { return p.params }

// DroppedEvents returns the number of events that didn't fit in a buffer or
// found no voice to play on.
func (p *VoicePool) DroppedEvents() uint64 { return p.dropped.Load() }

func (p *VoicePool) HandleEvent(ev midi.Event) {
	if len(p.pending) == cap(p.pending) {
		p.dropped.Add(1)
		return
	}
	p.pending = append(p.pending, ev)
}

func (p *VoicePool) Process(out []float32, ctx *Context) {
	frames := len(out) / 2
	if frames > len(p.buf) {
		frames = len(p.buf)
	}
	next := 0
	for n := 0; n < frames; n += blockSize {
		end := n + blockSize
		if end > frames {
			end = frames
		}
		for next < len(p.pending) && p.pending[next].Offset < end {
			p.apply(p.pending[next])
			next++
		}
		for _, voice := range p.voices {
			if voice.State() == stateFree {
				continue
			}
			voice.Process(p.buf[n:end])
		}
	}
	for ; next < len(p.pending); next++ {
		p.apply(p.pending[next])
	}
	p.pending = p.pending[:0]

	gain := dbToGain(p.level.Value())
	for n := 0; n < frames; n++ {
		sample := float32(gain * p.buf[n])
		out[2*n] += sample
		out[2*n+1] += sample
		p.buf[n] = 0
	}
}

func (p *VoicePool) apply(ev midi.Event) {
	pitch := int(ev.Pitch)
	for _, voice := range p.voices {
		if voice.State() == stateActive && voice.Pitch() == pitch {
			voice.NoteOff()
		}
	}
	if ev.Type == midi.NoteOff || ev.Velocity == 0 {
		return
	}
	voice := p.findFreeVoice()
	if voice == nil {
		p.dropped.Add(1)
		return
	}
	voice.NoteOn(pitch, int(ev.Velocity))
}

// findFreeVoice prefers idle voices and falls back to stealing one that is
// already releasing.
func (p *VoicePool) findFreeVoice() Voice {
	var released Voice
	for _, voice := range p.voices {
		switch voice.State() {
		case stateFree:
			return voice
		case stateReleased:
			if released == nil {
				released = voice
			}
		}
	}
	if released != nil {
		released.Reset()
	}
	return released
}

func (p *VoicePool) Reset() {
	for _, voice := range p.voices {
		voice.Reset()
	}
	p.pending = p.pending[:0]
	for n := range p.buf {
		p.buf[n] = 0
	}
}

// ActiveVoices returns the number of voices that are not free.
func (p *VoicePool) ActiveVoices() int {
	var n int
	for _, voice := range p.voices {
		if voice.State() != stateFree {
			n++
		}
	}
	return n
}
