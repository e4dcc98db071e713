package audio

import "math"

// compressor is a feed-forward compressor with a peak envelope follower per
// channel.
type compressor struct {
	threshold *Param
	ratio     *Param
	attack    *Param
	release   *Param
	makeup    *Param

	sampleRate float64
	thresh     float32
	slope      float64
	att, rel   float32
	gain       float32
	envL, envR float32
}

func newCompressor(cfg Config, settings Settings) (Device, error) {
	params := NewParams()
	c := &compressor{
		threshold:  params.MustRegister("threshold", -60, 0, -20),
		ratio:      params.MustRegister("ratio", 1, 20, 4),
		attack:     params.MustRegister("attack", 0.1, 200, 10),
		release:    params.MustRegister("release", 1, 2000, 100),
		makeup:     params.MustRegister("makeup", 0, 24, 0),
		sampleRate: float64(cfg.SampleRate),
	}
	return newEffect(params, c, settings)
}

func (c *compressor) coefficient(ms float64) float32 {
	return float32(1.0 - math.Exp(-1.0/(ms*c.sampleRate/1000.0)))
}

func (c *compressor) update() {
	c.thresh = float32(dbToGain(c.threshold.Value()))
	c.slope = 1.0/c.ratio.Value() - 1
	c.att = c.coefficient(c.attack.Value())
	c.rel = c.coefficient(c.release.Value())
	c.gain = float32(dbToGain(c.makeup.Value()))
}

func (c *compressor) follow(env, in float32) float32 {
	abs := float32(math.Abs(float64(in)))
	if abs > env {
		return env + c.att*(abs-env)
	}
	return env + c.rel*(abs-env)
}

func (c *compressor) process(l, r float32) (float32, float32) {
	c.envL = c.follow(c.envL, l)
	c.envR = c.follow(c.envR, r)
	return l * c.reduction(c.envL) * c.gain, r * c.reduction(c.envR) * c.gain
}

func (c *compressor) reduction(env float32) float32 {
	if env <= c.thresh || c.thresh <= 0 {
		return 1.0
	}
	over := env / c.thresh
	return float32(math.Pow(float64(over), c.slope))
}

func (c *compressor) reset() {
	c.envL = 0
	c.envR = 0
}

// distortion is a tanh waveshaper followed by an optional one pole low pass.
type distortion struct {
	drive *Param
	level *Param
	tone  *Param

	sampleRate float64
	pre, post  float32
	alpha      float32
	lpL, lpR   float32
}

func newDistortion(cfg Config, settings Settings) (Device, error) {
	params := NewParams()
	d := &distortion{
		drive:      params.MustRegister("drive", 1, 50, 4),
		level:      params.MustRegister("level", 0, 2, 0.5),
		tone:       params.MustRegister("tone", 0, 20_000, 0),
		sampleRate: float64(cfg.SampleRate),
	}
	return newEffect(params, d, settings)
}

func (d *distortion) update() {
	d.pre = float32(d.drive.Value())
	d.post = float32(d.level.Value())
	d.alpha = 0
	if cutoff := d.tone.Value(); cutoff > 0 && cutoff < d.sampleRate/2 {
		rc := 1.0 / (2.0 * math.Pi * cutoff)
		dt := 1.0 / d.sampleRate
		d.alpha = float32(dt / (rc + dt))
	}
}

func (d *distortion) process(l, r float32) (float32, float32) {
	l = float32(math.Tanh(float64(l*d.pre))) * d.post
	r = float32(math.Tanh(float64(r*d.pre))) * d.post
	if d.alpha > 0 {
		d.lpL += d.alpha * (l - d.lpL)
		d.lpR += d.alpha * (r - d.lpR)
		l, r = d.lpL, d.lpR
	}
	return l, r
}

func (d *distortion) reset() {
	d.lpL = 0
	d.lpR = 0
}
