package audio

import "math"

const (
	maxChorusDelayMs = 50
	maxChorusDepthMs = 20
)

// chorus is a modulated delay line.
type chorus struct {
	time     *Param
	depth    *Param
	rate     *Param
	feedback *Param
	wet      *Param

	sampleRate float64
	bufL, bufR []float32
	size, pos  int
	base       float32
	mod        float32
	step       float64
	phase      float64
	fb, mix    float32
}

func newChorus(cfg Config, settings Settings) (Device, error) {
	params := NewParams()
	size := (maxChorusDelayMs+maxChorusDepthMs)*cfg.SampleRate/1000 + 2
	c := &chorus{
		time:       params.MustRegister("time", 1, maxChorusDelayMs, 15),
		depth:      params.MustRegister("depth", 0, maxChorusDepthMs, 3),
		rate:       params.MustRegister("rate", 0.01, 10, 0.5),
		feedback:   params.MustRegister("feedback", 0, 0.9, 0.2),
		wet:        params.MustRegister("wet", 0, 1, 0.5),
		sampleRate: float64(cfg.SampleRate),
		bufL:       make([]float32, size),
		bufR:       make([]float32, size),
		size:       size,
	}
	return newEffect(params, c, settings)
}

func (c *chorus) update() {
	c.base = float32(c.time.Value() * c.sampleRate / 1000.0)
	c.mod = float32(c.depth.Value() * c.sampleRate / 1000.0)
	c.step = 2.0 * math.Pi * c.rate.Value() / c.sampleRate
	c.fb = float32(c.feedback.Value())
	c.mix = float32(c.wet.Value())
}

func (c *chorus) process(l, r float32) (float32, float32) {
	mod := float32(math.Sin(c.phase)) * c.mod
	c.phase += c.step
	if c.phase > twoPi {
		c.phase -= twoPi
	}
	c.bufL[c.pos] = l
	c.bufR[c.pos] = r

	// read with fractional delay
	readPos := float32(c.pos) - (c.base + mod)
	for readPos < 0 {
		readPos += float32(c.size)
	}
	idx := int(readPos) % c.size
	frac := readPos - float32(int(readPos))
	idx2 := idx + 1
	if idx2 >= c.size {
		idx2 = 0
	}
	delL := c.bufL[idx]*(1-frac) + c.bufL[idx2]*frac
	delR := c.bufR[idx]*(1-frac) + c.bufR[idx2]*frac

	c.bufL[c.pos] += delL * c.fb
	c.bufR[c.pos] += delR * c.fb

	c.pos++
	if c.pos >= c.size {
		c.pos = 0
	}
	return l*(1-c.mix) + delL*c.mix, r*(1-c.mix) + delR*c.mix
}

func (c *chorus) reset() {
	clearFloats(c.bufL)
	clearFloats(c.bufR)
	c.pos = 0
	c.phase = 0
}
