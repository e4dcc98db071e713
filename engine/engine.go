package engine

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/mrdg/groove/audio"
	"github.com/mrdg/groove/clock"
	"github.com/mrdg/groove/midi"
)

// events buffered per pass before the merge buffer has to grow
const eventCapacity = 1024

// Engine renders the installed snapshot. Render runs on the audio thread;
// every other method may be called from any goroutine and only communicates
// with the audio thread through bounded queues and atomic pointers.
type Engine struct {
	cfg Config

	pending   atomic.Pointer[Snapshot]
	installed atomic.Pointer[Snapshot]
	latest    atomic.Pointer[Snapshot]

	live     *audio.Queue[midi.Event]
	commands *audio.Queue[command]

	eventTap func(device string, ev midi.Event)

	// Owned by the audio thread.
	current  *Snapshot
	playing  bool
	events   []midi.Event
	sounding [midi.NumChannels][128]bool
	ctx      audio.Context

	stats counters
}

type Option func(*Engine)

// WithEventTap installs a function that observes every event delivered to
// a device. It is called on the audio thread.
func WithEventTap(tap func(device string, ev midi.Event)) Option {
	return func(e *Engine) {
		e.eventTap = tap
	}
}

func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:      cfg,
		live:     audio.NewQueue[midi.Event](audio.NextPowerOfTwo(cfg.LiveQueueSize)),
		commands: audio.NewQueue[command](audio.NextPowerOfTwo(cfg.CommandQueueSize)),
		events:   make([]midi.Event, 0, eventCapacity),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Install hands s to the audio thread, which starts rendering it at the next
// buffer boundary. The transport position carries over.
func (e *Engine) Install(s *Snapshot) {
	if e.eventTap != nil {
		s.Graph.SetTap(e.eventTap)
	}
	e.latest.Store(s)
	e.pending.Store(s)
}

// Snapshot returns the most recently installed snapshot, or nil.
func (e *Engine) Snapshot() *Snapshot {
	return e.latest.Load()
}

// SubmitEvent queues a live event for the next buffer. If the queue is full
// the oldest pending event is dropped.
func (e *Engine) SubmitEvent(ev midi.Event) {
	ev.Live = true
	if e.live.Push(ev) {
		e.stats.liveDropped.Add(1)
	}
}

// Render fills out with interleaved stereo frames.
func (e *Engine) Render(out []float32) {
	limit := 2 * e.cfg.BufferSize
	for len(out) > 0 {
		n := len(out)
		if n > limit {
			n = limit
		}
		e.render(out[:n])
		out = out[n:]
	}
}

func (e *Engine) render(out []float32) {
	if s := e.pending.Swap(nil); s != nil {
		e.install(s)
	}
	e.applyCommands()

	s := e.current
	if s == nil {
		for {
			if _, ok := e.live.Pop(); !ok {
				break
			}
			e.stats.liveStale.Add(1)
		}
		clear(out)
		return
	}

	frames := len(out) / 2
	var start, end float64
	if e.playing {
		start, end = s.Clock.AdvanceSpan(frames)
	} else {
		start = s.Clock.Ticks()
		end = start
	}
	e.ctx = audio.Context{
		Frames:        frames,
		Start:         start,
		End:           end,
		TicksPerFrame: s.Clock.TicksPerFrame(),
	}

	events := e.events[:0]
	for {
		ev, ok := e.live.Pop()
		if !ok {
			break
		}
		ev.Tick = start
		events = append(events, ev)
	}
	live := len(events)
	if e.playing {
		events = s.Sequencer.Collect(start, end, events)
	}
	midi.Sort(events)

	for i := range events {
		ev := events[i]
		ev.Offset = e.ctx.Offset(ev.Tick)
		if !ev.Live {
			e.sounding[ev.Channel&0x0f][ev.Pitch&0x7f] = ev.Type == midi.NoteOn
		}
		s.Graph.Deliver(ev)
	}
	e.events = events[:0]

	s.Automator.Apply(start, end)
	s.Graph.Process(out, e.ctx)

	e.stats.liveDelivered.Add(uint64(live))
	e.stats.buffers.Add(1)
	e.stats.tick.Store(math.Float64bits(s.Clock.Ticks()))
	e.stats.bpm.Store(math.Float64bits(s.Clock.BPM()))
}

func (e *Engine) install(s *Snapshot) {
	if old := e.current; old != nil {
		s.Clock.SeekTicks(old.Clock.Ticks())
		e.stats.retire(old)
	}
	s.Sequencer.Seek(s.Clock.Ticks())
	s.Automator.Seek(s.Clock.Ticks(), e.bufferTicks(s))
	e.sounding = [midi.NumChannels][128]bool{}
	e.current = s
	e.installed.Store(s)
	e.stats.installs.Add(1)
}

// release sends a note-off for every sequenced note that is still sounding.
func (e *Engine) release() {
	s := e.current
	for ch := range e.sounding {
		for pitch, on := range e.sounding[ch] {
			if on {
				s.Graph.Deliver(midi.Off(uint8(ch), uint8(pitch)))
				e.sounding[ch][pitch] = false
			}
		}
	}
}

func (e *Engine) seek(t float64) {
	e.release()
	e.current.Clock.SeekTicks(t)
	e.current.Sequencer.Seek(e.current.Clock.Ticks())
	e.current.Automator.Seek(e.current.Clock.Ticks(), e.bufferTicks(e.current))
}

// bufferTicks returns the ticks covered by a full buffer at the current tempo.
func (e *Engine) bufferTicks(s *Snapshot) float64 {
	return s.Clock.TicksPerFrame() * float64(e.cfg.BufferSize)
}

// Parameter returns the value of a device parameter.
func (e *Engine) Parameter(device, name string) (float64, error) {
	s := e.Snapshot()
	if s == nil {
		return 0, ErrNoProject
	}
	return s.Graph.GetParameter(device, name)
}

// SetParameter queues a parameter write. The value is clamped to the
// parameter's range; clamped reports whether that was necessary.
func (e *Engine) SetParameter(device, name string, v float64) (clamped bool, err error) {
	s := e.Snapshot()
	if s == nil {
		return false, ErrNoProject
	}
	p, err := s.Graph.Param(device, name)
	if err != nil {
		return false, err
	}
	lo, hi := p.Range()
	clamped = math.IsNaN(v) || v < lo || v > hi
	e.send(command{op: opParam, snapshot: s, param: p, value: v})
	if clamped {
		e.stats.clamped.Add(1)
	}
	return clamped, nil
}

func (e *Engine) Play()  { e.send(command{op: opPlay}) }
func (e *Engine) Pause() { e.send(command{op: opPause}) }

// Stop halts the transport and rewinds it to the start.
func (e *Engine) Stop() { e.send(command{op: opStop}) }

// Panic silences every device, dropping reverb tails and delay lines.
func (e *Engine) Panic() { e.send(command{op: opPanic}) }

// Seek moves the transport to p at the next buffer boundary. Sequenced notes
// that are sounding get released.
func (e *Engine) Seek(p clock.Position) {
	e.send(command{op: opSeek, pos: p})
}

// SetTempo changes the tempo from the next buffer on.
func (e *Engine) SetTempo(bpm float64) error {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return fmt.Errorf("%w: bpm must be positive, got %v", clock.ErrInvalidConfig, bpm)
	}
	e.send(command{op: opTempo, value: bpm})
	return nil
}

// ErrNoProject is returned by the parameter API before a snapshot is installed.
var ErrNoProject = errors.New("no project loaded")
