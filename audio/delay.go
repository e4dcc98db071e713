package audio

const maxDelayMs = 2000

// delay is a stereo delay with feedback and cross-channel mixing.
type delay struct {
	time     *Param
	feedback *Param
	cross    *Param
	wet      *Param

	sampleRate int
	bufL, bufR []float32
	n, pos     int
	fb, x, mix float32
}

func newDelay(cfg Config, settings Settings) (Device, error) {
	params := NewParams()
	size := maxDelayMs * cfg.SampleRate / 1000
	d := &delay{
		time:       params.MustRegister("time", 1, maxDelayMs, 375),
		feedback:   params.MustRegister("feedback", 0, 0.95, 0.4),
		cross:      params.MustRegister("cross", 0, 1, 0.3),
		wet:        params.MustRegister("wet", 0, 1, 0.3),
		sampleRate: cfg.SampleRate,
		bufL:       make([]float32, size),
		bufR:       make([]float32, size),
	}
	return newEffect(params, d, settings)
}

func (d *delay) update() {
	n := int(d.time.Value() * float64(d.sampleRate) / 1000.0)
	d.n = clamp(n, 1, len(d.bufL))
	if d.pos >= d.n {
		d.pos = 0
	}
	d.fb = float32(d.feedback.Value())
	d.x = float32(d.cross.Value())
	d.mix = float32(d.wet.Value())
}

func (d *delay) process(l, r float32) (float32, float32) {
	delL := d.bufL[d.pos]
	delR := d.bufR[d.pos]
	fbL := delL*d.fb*(1-d.x) + delR*d.fb*d.x
	fbR := delR*d.fb*(1-d.x) + delL*d.fb*d.x
	d.bufL[d.pos] = l + fbL
	d.bufR[d.pos] = r + fbR
	d.pos++
	if d.pos >= d.n {
		d.pos = 0
	}
	return l*(1-d.mix) + delL*d.mix, r*(1-d.mix) + delR*d.mix
}

func (d *delay) reset() {
	clearFloats(d.bufL)
	clearFloats(d.bufR)
	d.pos = 0
}
