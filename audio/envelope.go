package audio

type stage int

const (
	stageIdle stage = iota
	stageAttack
	stageDecay
	stageSustain
	stageRelease
)

// adsr is an envelope shape. Stage lengths are in seconds; sustain is a
// level in 0..1.
type adsr struct {
	attack, decay, sustain, release float64
}

// envelope is a linear ADSR generator, advanced one sample at a time.
type envelope struct {
	sampleRate float64
	shape      adsr

	stage stage
	level float64
	// per sample change of level in the current stage
	slope float64
}

func (e *envelope) noteOn(shape adsr) {
	e.shape = shape
	e.level = 0
	e.enter(stageAttack)
}

func (e *envelope) noteOff() {
	if e.stage != stageIdle {
		e.enter(stageRelease)
	}
}

// enter switches to s, skipping stages of zero length.
func (e *envelope) enter(s stage) {
	e.stage = s
	switch s {
	case stageAttack:
		if n := e.samples(e.shape.attack); n > 0 {
			e.slope = (1 - e.level) / n
			return
		}
		e.level = 1
		e.enter(stageDecay)
	case stageDecay:
		if n := e.samples(e.shape.decay); n > 0 && e.level > e.shape.sustain {
			e.slope = (e.shape.sustain - e.level) / n
			return
		}
		e.level = e.shape.sustain
		e.enter(stageSustain)
	case stageSustain:
		e.slope = 0
		if e.shape.sustain <= 0 {
			e.enter(stageIdle)
		}
	case stageRelease:
		if n := e.samples(e.shape.release); n > 0 && e.level > 0 {
			e.slope = -e.level / n
			return
		}
		e.enter(stageIdle)
	case stageIdle:
		e.level = 0
		e.slope = 0
	}
}

func (e *envelope) samples(seconds float64) float64 {
	return seconds * e.sampleRate
}

// next returns the current level and advances by one sample.
func (e *envelope) next() float64 {
	v := e.level
	e.level += e.slope
	switch {
	case e.stage == stageAttack && e.level >= 1:
		e.level = 1
		e.enter(stageDecay)
	case e.stage == stageDecay && e.level <= e.shape.sustain:
		e.level = e.shape.sustain
		e.enter(stageSustain)
	case e.stage == stageRelease && e.level <= 0:
		e.enter(stageIdle)
	}
	return v
}

func (e *envelope) apply(buf []float64) {
	for n := range buf {
		buf[n] *= e.next()
	}
}

func (e *envelope) idle() bool { return e.stage == stageIdle }

func (e *envelope) reset() {
	e.enter(stageIdle)
}
