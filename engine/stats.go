package engine

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/mrdg/groove/clock"
)

type counters struct {
	buffers         atomic.Uint64
	installs        atomic.Uint64
	liveDelivered   atomic.Uint64
	liveDropped     atomic.Uint64
	liveStale       atomic.Uint64
	commandsDropped atomic.Uint64
	staleCommands   atomic.Uint64
	clamped         atomic.Uint64

	// totals of snapshots that are no longer rendered
	deviceDropped atomic.Uint64
	silenced      atomic.Uint64
	autoClamped   atomic.Uint64

	playing atomic.Bool
	tick    atomic.Uint64
	bpm     atomic.Uint64
}

func (c *counters) retire(s *Snapshot) {
	c.deviceDropped.Add(s.Graph.DroppedEvents())
	c.silenced.Add(s.Graph.Silenced())
	c.autoClamped.Add(s.Automator.Clamped())
}

// Stats is a point in time view of the engine's counters.
type Stats struct {
	Snapshot            string         `json:"snapshot"`
	Playing             bool           `json:"playing"`
	Position            clock.Position `json:"position"`
	BPM                 float64        `json:"bpm"`
	Buffers             uint64         `json:"buffers"`
	Installs            uint64         `json:"installs"`
	LiveDelivered       uint64         `json:"live-delivered"`
	LiveDropped         uint64         `json:"live-dropped"`
	LiveStale           uint64         `json:"live-stale"`
	CommandsDropped     uint64         `json:"commands-dropped"`
	StaleCommands       uint64         `json:"stale-commands"`
	DeviceEventsDropped uint64         `json:"device-events-dropped"`
	SilencedBuffers     uint64         `json:"silenced-buffers"`
	ClampedWrites       uint64         `json:"clamped-writes"`
}

func (e *Engine) Stats() Stats {
	c := &e.stats
	st := Stats{
		Playing:             c.playing.Load(),
		BPM:                 math.Float64frombits(c.bpm.Load()),
		Buffers:             c.buffers.Load(),
		Installs:            c.installs.Load(),
		LiveDelivered:       c.liveDelivered.Load(),
		LiveDropped:         c.liveDropped.Load(),
		LiveStale:           c.liveStale.Load(),
		CommandsDropped:     c.commandsDropped.Load(),
		StaleCommands:       c.staleCommands.Load(),
		DeviceEventsDropped: c.deviceDropped.Load(),
		SilencedBuffers:     c.silenced.Load(),
		ClampedWrites:       c.clamped.Load() + c.autoClamped.Load(),
	}
	if s := e.installed.Load(); s != nil {
		st.Snapshot = s.ID.String()
		st.Position = s.Clock.Signature().Position(math.Float64frombits(c.tick.Load()))
		st.DeviceEventsDropped += s.Graph.DroppedEvents()
		st.SilencedBuffers += s.Graph.Silenced()
		st.ClampedWrites += s.Automator.Clamped()
	}
	return st
}

// Monitor logs changes in the fault counters every interval until ctx is
// done.
func (e *Engine) Monitor(ctx context.Context, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	prev := e.Stats()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		cur := e.Stats()
		if cur.Snapshot != prev.Snapshot {
			logger.Info("snapshot installed", "id", cur.Snapshot)
		}
		report := func(name string, now, before uint64) {
			if now > before {
				logger.Warn(name, "count", now-before, "total", now)
			}
		}
		report("live events dropped", cur.LiveDropped, prev.LiveDropped)
		report("live events discarded without a project", cur.LiveStale, prev.LiveStale)
		report("commands dropped", cur.CommandsDropped, prev.CommandsDropped)
		report("stale commands", cur.StaleCommands, prev.StaleCommands)
		report("device events dropped", cur.DeviceEventsDropped, prev.DeviceEventsDropped)
		report("buffers silenced", cur.SilencedBuffers, prev.SilencedBuffers)
		logger.Debug("engine", "position", cur.Position.String(), "playing", cur.Playing,
			"buffers", cur.Buffers, "clamped", cur.ClampedWrites)
		prev = cur
	}
}
