package audio

// reverb is a Schroeder-style reverb with four comb filters and two allpass
// filters. Delay lines are allocated for the largest room so that changing
// the room size never allocates.
type reverb struct {
	room     *Param
	feedback *Param
	wet      *Param

	sampleRate int
	combs      [4]combFilter
	allpass    [2]allpassFilter
	mix        float32
}

type combFilter struct {
	buf []float32
	n   int
	pos int
	fb  float32
}

type allpassFilter struct {
	buf []float32
	n   int
	pos int
	fb  float32
}

var (
	combRatios    = [4]int{1000, 1117, 1271, 1437}
	allpassRatios = [2]int{347, 213}
)

func newReverb(cfg Config, settings Settings) (Device, error) {
	params := NewParams()
	r := &reverb{
		room:       params.MustRegister("room", 0, 1, 0.5),
		feedback:   params.MustRegister("feedback", 0, 0.95, 0.8),
		wet:        params.MustRegister("wet", 0, 1, 0.3),
		sampleRate: cfg.SampleRate,
	}
	maxBase := r.base(1)
	for i := range r.combs {
		r.combs[i].buf = make([]float32, maxBase*combRatios[i]/1000)
	}
	for i := range r.allpass {
		r.allpass[i].buf = make([]float32, maxInt(maxBase*allpassRatios[i]/1000, 1))
		r.allpass[i].fb = 0.5
	}
	return newEffect(params, r, settings)
}

func (r *reverb) base(room float64) int {
	base := int(float64(r.sampleRate) * room * 0.05)
	if base < 10 {
		base = 10
	}
	return base
}

func (r *reverb) update() {
	base := r.base(r.room.Value())
	fb := float32(r.feedback.Value())
	for i := range r.combs {
		c := &r.combs[i]
		c.n = minInt(base*combRatios[i]/1000, len(c.buf))
		if c.pos >= c.n {
			c.pos = 0
		}
		c.fb = fb
	}
	for i := range r.allpass {
		a := &r.allpass[i]
		a.n = minInt(maxInt(base*allpassRatios[i]/1000, 1), len(a.buf))
		if a.pos >= a.n {
			a.pos = 0
		}
	}
	r.mix = float32(r.wet.Value())
}

func (r *reverb) process(l, r2 float32) (float32, float32) {
	mono := (l + r2) * 0.5
	var out float32
	for i := range r.combs {
		out += r.combs[i].process(mono)
	}
	out *= 0.25
	for i := range r.allpass {
		out = r.allpass[i].process(out)
	}
	return l*(1-r.mix) + out*r.mix, r2*(1-r.mix) + out*r.mix
}

func (r *reverb) reset() {
	for i := range r.combs {
		clearFloats(r.combs[i].buf)
		r.combs[i].pos = 0
	}
	for i := range r.allpass {
		clearFloats(r.allpass[i].buf)
		r.allpass[i].pos = 0
	}
}

func (c *combFilter) process(in float32) float32 {
	out := c.buf[c.pos]
	c.buf[c.pos] = in + out*c.fb
	c.pos++
	if c.pos >= c.n {
		c.pos = 0
	}
	return out
}

func (a *allpassFilter) process(in float32) float32 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*a.fb
	a.pos++
	if a.pos >= a.n {
		a.pos = 0
	}
	return out
}

func clearFloats(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
