package engine

import (
	"github.com/mrdg/groove/audio"
	"github.com/mrdg/groove/clock"
	"github.com/mrdg/groove/midi"
)

type opcode uint8

const (
	opPlay opcode = iota
	opPause
	opStop
	opSeek
	opTempo
	opPanic
	opParam
)

type command struct {
	op    opcode
	pos   clock.Position
	value float64
	// snapshot the parameter was resolved against
	snapshot *Snapshot
	param    *audio.Param
}

func (e *Engine) send(cmd command) {
	if e.commands.Push(cmd) {
		e.stats.commandsDropped.Add(1)
	}
}

func (e *Engine) applyCommands() {
	for {
		cmd, ok := e.commands.Pop()
		if !ok {
			return
		}
		if e.current == nil {
			e.stats.staleCommands.Add(1)
			continue
		}
		e.apply(cmd)
	}
}

func (e *Engine) apply(cmd command) {
	s := e.current
	switch cmd.op {
	case opPlay:
		e.playing = true
	case opPause:
		e.playing = false
		e.release()
	case opStop:
		e.playing = false
		e.seek(0)
	case opSeek:
		e.seek(s.Clock.Signature().Ticks(cmd.pos))
	case opTempo:
		if err := s.Clock.QueueTempo(cmd.value); err != nil {
			e.stats.staleCommands.Add(1)
		}
	case opPanic:
		e.sounding = [midi.NumChannels][128]bool{}
		s.Graph.Reset()
	case opParam:
		if cmd.snapshot != s {
			e.stats.staleCommands.Add(1)
			return
		}
		cmd.param.Set(cmd.value)
	}
	e.stats.playing.Store(e.playing)
}
