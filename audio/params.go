package audio

import (
	"fmt"
	"math"
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

// Param is a named device parameter with a valid range. Values are stored
// atomically so they can be read from any goroutine while the audio thread
// writes them.
type Param struct {
	name     string
	min, max float64
	bits     atomic.Uint64
}

func (p *Param) Name() string                { return p.name }
func (p *Param) Range() (min, max float64)   { return p.min, p.max }
func (p *Param) Value() float64              { return math.Float64frombits(p.bits.Load()) }
func (p *Param) Int() int                    { return int(math.Round(p.Value())) }
func (p *Param) String() string              { return fmt.Sprintf("%s=%g", p.name, p.Value()) }
func (p *Param) store(v float64)             { p.bits.Store(math.Float64bits(v)) }
func (p *Param) span() float64               { return p.max - p.min }
func (p *Param) normalize(v float64) float64 { return (v - p.min) / p.span() }

// Set stores v clamped to the parameter range and reports whether it had to
// be clamped. NaN leaves the value unchanged and counts as clamped.
func (p *Param) Set(v float64) (clamped bool) {
	if math.IsNaN(v) {
		return true
	}
	c := clamp(v, p.min, p.max)
	p.store(c)
	return c != v
}

// SetNormalized maps v from [0, 1] onto the parameter range.
func (p *Param) SetNormalized(v float64) (clamped bool) {
	if math.IsNaN(v) {
		return true
	}
	c := clamp(v, 0, 1)
	p.store(p.min + c*p.span())
	return c != v
}

// Normalized returns the value mapped onto [0, 1].
func (p *Param) Normalized() float64 {
	if p.span() == 0 {
		return 0
	}
	return p.normalize(p.Value())
}

// Params is the parameter registry of a device. All parameters must be
// registered before the device is shared with the audio thread.
type Params struct {
	list   []*Param
	byName map[string]*Param
}

func NewParams() *Params {
	return &Params{byName: make(map[string]*Param)}
}

// Register adds a parameter with the range [min, max]. init is clamped into
// the range.
func (p *Params) Register(name string, min, max, init float64) (*Param, error) {
	if _, ok := p.byName[name]; ok {
		return nil, fmt.Errorf("duplicate parameter %s", name)
	}
	if !(min <= max) {
		return nil, fmt.Errorf("parameter %s: bad range %v - %v", name, min, max)
	}
	param := &Param{name: name, min: min, max: max}
	param.store(clamp(init, min, max))
	p.list = append(p.list, param)
	p.byName[name] = param
	return param, nil
}

func (p *Params) MustRegister(name string, min, max, init float64) *Param {
	param, err := p.Register(name, min, max, init)
	if err != nil {
		panic(err)
	}
	return param
}

func (p *Params) Get(name string) (*Param, bool) {
	param, ok := p.byName[name]
	return param, ok
}

// Set updates the named parameter. Out of range values are clamped, not
// rejected; only unknown names are an error.
func (p *Params) Set(name string, v float64) (clamped bool, err error) {
	param, ok := p.byName[name]
	if !ok {
		return false, fmt.Errorf("unknown parameter %s", name)
	}
	return param.Set(v), nil
}

func (p *Params) Value(name string) (float64, error) {
	param, ok := p.byName[name]
	if !ok {
		return 0, fmt.Errorf("unknown parameter %s", name)
	}
	return param.Value(), nil
}

// All returns the parameters in registration order.
func (p *Params) All() []*Param {
	return p.list
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func dbToGain(db float64) float64 {
	return math.Pow(10, db/20.0)
}
