package audio

import "math"

type filterType int

const (
	lowPass filterType = iota
	highPass
	bandPass
)

// biquad is a second order filter based on
// https://www.w3.org/2011/audio/audio-eq-cookbook.html
type biquad struct {
	c0, c1, c2, c3, c4 float64

	// state
	y1, y2 float64 // y[n-1] y[n-2]

	// last inputs to calculate, so coefficients are only recomputed on change
	typ        filterType
	freq, q    float64
	sampleRate float64
}

func (f *biquad) lowPass(freq, q, sampleRate float64) {
	f.calculate(lowPass, freq, q, sampleRate)
}

func (f *biquad) calculate(typ filterType, freq, q, sampleRate float64) {
	if typ == f.typ && freq == f.freq && q == f.q && sampleRate == f.sampleRate {
		return
	}
	f.typ, f.freq, f.q, f.sampleRate = typ, freq, q, sampleRate

	if nyquist := sampleRate / 2; freq > nyquist*0.99 {
		freq = nyquist * 0.99
	}
	omega := 2 * math.Pi * freq / sampleRate
	cos := math.Cos(omega)
	sin := math.Sin(omega)
	alpha := sin / (2. * q)

	var b0, b1, b2 float64
	switch typ {
	case lowPass:
		b0 = (1 - cos) / 2
		b1 = 1 - cos
		b2 = b0
	case highPass:
		b0 = (1 + cos) / 2
		b1 = -(1 + cos)
		b2 = b0
	case bandPass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
	}
	a0 := 1 + alpha
	a1 := -2 * cos
	a2 := 1 - alpha

	f.c0 = b0 / a0
	f.c1 = b1 / a0
	f.c2 = b2 / a0
	f.c3 = a1 / a0
	f.c4 = a2 / a0
}

func (f *biquad) process(in float64) float64 {
	out := f.c0*in + f.y1
	f.y1 = f.c1*in - f.c3*out + f.y2
	f.y2 = f.c2*in - f.c4*out
	return out
}

func (f *biquad) processMono(buf []float64) {
	for n := range buf {
		buf[n] = f.process(buf[n])
	}
}

func (f *biquad) reset() {
	f.y1 = 0.
	f.y2 = 0.
}

// filterFX is a stereo biquad effect.
type filterFX struct {
	typ        filterType
	sampleRate float64
	cutoff     *Param
	q          *Param
	left       biquad
	right      biquad
}

func newFilter(typ filterType) Constructor {
	return func(cfg Config, settings Settings) (Device, error) {
		params := NewParams()
		fx := &filterFX{
			typ:        typ,
			sampleRate: float64(cfg.SampleRate),
			cutoff:     params.MustRegister("cutoff", 20, 20_000, 1000),
			q:          params.MustRegister("q", 0.1, 20, 0.707),
		}
		return newEffect(params, fx, settings)
	}
}

func (f *filterFX) update() {
	f.left.calculate(f.typ, f.cutoff.Value(), f.q.Value(), f.sampleRate)
	f.right.calculate(f.typ, f.cutoff.Value(), f.q.Value(), f.sampleRate)
}

func (f *filterFX) process(l, r float32) (float32, float32) {
	return float32(f.left.process(float64(l))), float32(f.right.process(float64(r)))
}

func (f *filterFX) reset() {
	f.left.reset()
	f.right.reset()
}
