package audio

import "github.com/mrdg/groove/midi"

// effector processes one stereo frame at a time. update is called once per
// buffer to pick up parameter changes.
type effector interface {
	update()
	process(l, r float32) (float32, float32)
	reset()
}

// effectDevice adapts an effector to the Device interface. humidity blends
// the processed signal with the dry input: post*h + pre*(1-h).
type effectDevice struct {
	params   *Params
	humidity *Param
	fx       effector
}

func newEffect(params *Params, fx effector, settings Settings) (Device, error) {
	e := &effectDevice{
		params:   params,
		humidity: params.MustRegister("humidity", 0, 1, 1),
		fx:       fx,
	}
	if err := settings.apply(params); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *effectDevice) Params() *Params          { return e.params }
func (e *effectDevice) HandleEvent(_ midi.Event) {}
func (e *effectDevice) Reset()                   { e.fx.reset() }

func (e *effectDevice) Process(buf []float32, ctx *Context) {
	e.fx.update()
	wet := float32(e.humidity.Value())
	dry := 1 - wet
	for n := 0; n+1 < len(buf); n += 2 {
		l, r := e.fx.process(buf[n], buf[n+1])
		buf[n] = l*wet + buf[n]*dry
		buf[n+1] = r*wet + buf[n+1]*dry
	}
}

// gain scales the signal by its ceiling.
type gain struct {
	ceiling *Param
	g       float32
}

func newGain(cfg Config, settings Settings) (Device, error) {
	params := NewParams()
	return newEffect(params, &gain{ceiling: params.MustRegister("ceiling", 0, 1, 1)}, settings)
}

func (g *gain) update()                                 { g.g = float32(g.ceiling.Value()) }
func (g *gain) process(l, r float32) (float32, float32) { return l * g.g, r * g.g }
func (g *gain) reset()                                  {}

// limiter hard clips the signal to [min, max].
type limiter struct {
	min, max *Param
	lo, hi   float32
}

func newLimiter(cfg Config, settings Settings) (Device, error) {
	params := NewParams()
	fx := &limiter{
		min: params.MustRegister("min", -1, 0, -1),
		max: params.MustRegister("max", 0, 1, 1),
	}
	return newEffect(params, fx, settings)
}

func (l *limiter) update() {
	l.lo = float32(l.min.Value())
	l.hi = float32(l.max.Value())
}

func (l *limiter) process(left, right float32) (float32, float32) {
	return clamp(left, l.lo, l.hi), clamp(right, l.lo, l.hi)
}

func (l *limiter) reset() {}
