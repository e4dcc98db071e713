package automation

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/mrdg/groove/audio"
	"github.com/mrdg/groove/clock"
	"golang.org/x/exp/slices"
)

// Trip binds paths to a device parameter from StartMeasure on. Paths play
// back to back.
type Trip struct {
	ID           string
	Paths        []*Path
	StartMeasure int
	Device       string
	Param        string
}

func (t *Trip) Validate() error {
	if len(t.Paths) == 0 {
		return fmt.Errorf("trip %s: no paths", t.ID)
	}
	if t.StartMeasure < 0 {
		return fmt.Errorf("trip %s: negative start measure %d", t.ID, t.StartMeasure)
	}
	for i, p := range t.Paths[:len(t.Paths)-1] {
		if !p.Quantized() {
			return fmt.Errorf("trip %s: flat path %s at position %d must be the last path", t.ID, p.ID, i)
		}
	}
	return nil
}

const eps = 1e-6

// Value evaluates the trip at tick. A flat path is indexed by n, the number of
// updates since it started. active is false before the start measure.
func (t *Trip) Value(sig clock.Signature, tick float64, n int) (v float64, active bool) {
	p, local, ok := t.locate(sig, tick)
	if !ok {
		return 0, false
	}
	if !p.Quantized() {
		return p.ValueAt(float64(n)), true
	}
	return p.ValueAt(local / p.NoteValue.Ticks()), true
}

// locate returns the path playing at tick and the ticks since it started.
func (t *Trip) locate(sig clock.Signature, tick float64) (p *Path, local float64, ok bool) {
	local = tick - float64(t.StartMeasure)*sig.TicksPerMeasure()
	if local < -eps || len(t.Paths) == 0 {
		return nil, 0, false
	}
	local = math.Max(local, 0)
	for i, p := range t.Paths {
		if !p.Quantized() || i == len(t.Paths)-1 || local < p.Ticks()-eps {
			return p, local, true
		}
		local -= p.Ticks()
	}
	return nil, 0, false
}

type binding struct {
	trip  *Trip
	param *audio.Param
	// updates applied since the trip's flat path started
	updates int
}

// Automator applies a set of trips to their target parameters. Apply and Seek
// must be called from one goroutine.
type Automator struct {
	sig      clock.Signature
	bindings []binding
	clamped  atomic.Uint64
}

// Resolver looks up the parameter a trip writes to.
type Resolver interface {
	Param(device, name string) (*audio.Param, error)
}

// New resolves the targets of trips. Trips are applied in ascending id
// order, so when several target the same parameter the last one wins.
func New(trips []*Trip, sig clock.Signature, params Resolver) (*Automator, error) {
	a := &Automator{sig: sig}
	for _, t := range trips {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		p, err := params.Param(t.Device, t.Param)
		if err != nil {
			return nil, fmt.Errorf("trip %s: %w", t.ID, err)
		}
		a.bindings = append(a.bindings, binding{trip: t, param: p})
	}
	slices.SortStableFunc(a.bindings, func(x, y binding) bool {
		return x.trip.ID < y.trip.ID
	})
	return a, nil
}

// Apply writes the value of every active trip at the start of the span
// [start, end) to its target. Flat paths move one step per span in which
// the transport moves, whatever the tempo.
func (a *Automator) Apply(start, end float64) {
	for i := range a.bindings {
		b := &a.bindings[i]
		p, local, ok := b.trip.locate(a.sig, start)
		if !ok {
			b.updates = 0
			continue
		}
		var v float64
		if p.Quantized() {
			b.updates = 0
			v = p.ValueAt(local / p.NoteValue.Ticks())
		} else {
			v = p.ValueAt(float64(b.updates))
			if end > start {
				b.updates++
			}
		}
		if b.param.SetNormalized(v) {
			a.clamped.Add(1)
		}
	}
}

// Seek positions the flat path counters at tick, as if the transport had
// rolled there in updates of bufferTicks each.
func (a *Automator) Seek(tick, bufferTicks float64) {
	for i := range a.bindings {
		b := &a.bindings[i]
		b.updates = 0
		p, local, ok := b.trip.locate(a.sig, tick)
		if ok && !p.Quantized() && bufferTicks > 0 {
			b.updates = int(math.Floor(local/bufferTicks + eps))
		}
	}
}

// Clamped returns the number of writes that were clamped to a parameter's
// range.
func (a *Automator) Clamped() uint64 { return a.clamped.Load() }

// Trips returns the ids of the bound trips in application order.
func (a *Automator) Trips() []string {
	ids := make([]string, len(a.bindings))
	for i, b := range a.bindings {
		ids[i] = b.trip.ID
	}
	return ids
}
