package audio

import (
	"fmt"
	"math"

	"github.com/mrdg/groove/midi"
)

const (
	lfoSine = iota
	lfoTriangle
	lfoSquare
	lfoSaw
)

// KeyTarget names the parameter a modulator drives: ["<device>", "<param>"].
const KeyTarget = "target"

// Modulator is a device that drives a parameter of another device. The
// graph binds the target before the first Process call.
type Modulator interface {
	Target() (device, param string)
	Bind(p *Param)
}

// LFO drives its target with a low frequency oscillator. The value is
// written once per buffer as a normalized position in the target's range:
// center + depth/2 * wave. The oscillator only runs while the transport
// does.
type LFO struct {
	params *Params
	rate   *Param
	depth  *Param
	center *Param
	wave   *Param

	device string
	param  string
	target *Param

	sampleRate float64
	phase      float64
}

func newLFO(cfg Config, settings Settings) (Device, error) {
	params := NewParams()
	l := &LFO{
		params:     params,
		rate:       params.MustRegister("rate", 0.01, 20, 1),
		depth:      params.MustRegister("depth", 0, 1, 0.5),
		center:     params.MustRegister("center", 0, 1, 0.5),
		wave:       params.MustRegister("wave", lfoSine, lfoSaw, lfoSine),
		sampleRate: float64(cfg.SampleRate),
	}
	target, ok := settings[KeyTarget].([]interface{})
	if !ok || len(target) != 2 {
		return nil, fmt.Errorf("%s: expected [device, param]", KeyTarget)
	}
	l.device, _ = target[0].(string)
	l.param, _ = target[1].(string)
	if l.device == "" || l.param == "" {
		return nil, fmt.Errorf("%s: expected [device, param], got %v", KeyTarget, target)
	}
	if err := settings.apply(params, KeyTarget); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LFO) Params() *Params                { return l.params }
func (l *LFO) HandleEvent(_ midi.Event)       {}
func (l *LFO) Target() (device, param string) { return l.device, l.param }
func (l *LFO) Bind(p *Param)                  { l.target = p }

func (l *LFO) Process(buf []float32, ctx *Context) {
	if l.target == nil || ctx.End <= ctx.Start {
		return
	}
	v := l.center.Value() + l.depth.Value()/2*l.shape(l.phase)
	l.target.SetNormalized(v)

	l.phase += l.rate.Value() * float64(ctx.Frames) / l.sampleRate
	l.phase -= math.Floor(l.phase)
}

// shape returns the waveform at phase in [0, 1), ranging over [-1, 1].
func (l *LFO) shape(phase float64) float64 {
	switch l.wave.Int() {
	case lfoTriangle:
		return 1 - 4*math.Abs(phase-0.5)
	case lfoSquare:
		if phase < 0.5 {
			return 1
		}
		return -1
	case lfoSaw:
		return 2*phase - 1
	}
	return math.Sin(2 * math.Pi * phase)
}

func (l *LFO) Reset() { l.phase = 0 }
