package audio

import (
	"fmt"
	"math"
)

const (
	propCutoff     = "cutoff"
	propEnvAttack  = "env.attack"
	propEnvDecay   = "env.decay"
	propEnvSustain = "env.sustain"
	propEnvRelease = "env.release"
	propOsc1Wave   = "osc1.wave"
	propOsc2Wave   = "osc2.wave"
)

const (
	waveSine = iota
	waveSaw
	waveSquare
	waveOff
)

var waveforms = []string{"sine", "saw", "square", "off"}

func parseWaveform(s string) (float64, error) {
	for i, name := range waveforms {
		if name == s {
			return float64(i), nil
		}
	}
	return 0, fmt.Errorf("not a valid waveform type: %v", s)
}

// Synth is a subtractive synthesizer with two oscillators, a low pass filter
// and an ADSR envelope per voice.
func Synth(params *Params, cfg Config) *VoicePool {
	var (
		cutoff     = params.MustRegister(propCutoff, 20, 20_000, 1000)
		envAttack  = params.MustRegister(propEnvAttack, 0.0005, 15, 0.01)
		envDecay   = params.MustRegister(propEnvDecay, 0.0005, 15, 0.5)
		envSustain = params.MustRegister(propEnvSustain, 0, 1, 1)
		envRelease = params.MustRegister(propEnvRelease, 0.0005, 15, 0.1)
		osc1Wave   = params.MustRegister(propOsc1Wave, 0, waveOff, waveSaw)
		osc2Wave   = params.MustRegister(propOsc2Wave, 0, waveOff, waveSquare)
	)
	sampleRate := float64(cfg.SampleRate)
	voices := make([]Voice, numVoices)
	for n := range voices {
		voices[n] = &synthVoice{
			sampleRate: sampleRate,
			cutoff:     cutoff,
			envAttack:  envAttack,
			envDecay:   envDecay,
			envSustain: envSustain,
			envRelease: envRelease,
			osc1Wave:   osc1Wave,
			osc2Wave:   osc2Wave,
			state:      stateFree,
			osc1:       &osc{},
			osc2:       &osc{},
			filter:     &biquad{},
			env:        &envelope{sampleRate: sampleRate},
			buf:        make([]float64, cfg.BufferSize),
		}
	}
	return NewVoicePool(params, voices, cfg.BufferSize)
}

func newSynth(cfg Config, settings Settings) (Device, error) {
	params := NewParams()
	synth := Synth(params, cfg)

	settings = copySettings(settings)
	if name, ok := settings["preset"]; ok {
		s, ok := name.(string)
		if !ok {
			return nil, fmt.Errorf("preset: not a string: %v", name)
		}
		if err := LoadPreset(s, params); err != nil {
			return nil, err
		}
	}
	for _, key := range []string{propOsc1Wave, propOsc2Wave} {
		if s, ok := settings[key].(string); ok {
			v, err := parseWaveform(s)
			if err != nil {
				return nil, err
			}
			settings[key] = v
		}
	}
	if err := settings.apply(params, "preset"); err != nil {
		return nil, err
	}
	return synth, nil
}

func copySettings(s Settings) Settings {
	c := make(Settings, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

type synthVoice struct {
	sampleRate float64
	buf        []float64
	cutoff     *Param
	envAttack  *Param
	envDecay   *Param
	envSustain *Param
	envRelease *Param
	osc1Wave   *Param
	osc2Wave   *Param
	osc1       *osc
	osc2       *osc
	filter     *biquad
	env        *envelope
	state      voiceState
	pitch      int
	gain       float64
}

func (v *synthVoice) NoteOn(pitch, velocity int) {
	freq := midiToFreq(pitch)
	v.pitch = pitch
	v.gain = float64(velocity) / 127
	v.env.noteOn(adsr{
		attack:  v.envAttack.Value(),
		decay:   v.envDecay.Value(),
		sustain: v.envSustain.Value(),
		release: v.envRelease.Value(),
	})
	v.state = stateActive

	phaseDelta := freq * twoPi / v.sampleRate
	v.osc1.setWaveform(v.osc1Wave.Int())
	v.osc1.phaseDelta = phaseDelta
	v.osc2.setWaveform(v.osc2Wave.Int())
	v.osc2.phaseDelta = phaseDelta
}

func (v *synthVoice) NoteOff() {
	if v.state == stateActive {
		v.state = stateReleased
		v.env.noteOff()
	}
}

func (v *synthVoice) Reset() {
	v.pitch = 0
	v.filter.reset()
	v.osc1.phase = 0
	v.osc1.phaseDelta = 0
	v.osc2.phase = 0
	v.osc2.phaseDelta = 0
	v.env.reset()
	v.state = stateFree
}

func (v *synthVoice) Process(buf []float64) {
	v.filter.lowPass(v.cutoff.Value(), 1, v.sampleRate)
	tmp := v.buf[0:len(buf)]
	v.osc1.process(tmp)
	v.osc2.process(tmp)
	v.filter.processMono(tmp)
	v.env.apply(tmp)
	for n := range tmp {
		buf[n] += 0.1 * v.gain * tmp[n]
		tmp[n] = 0
	}
	if v.env.idle() {
		v.Reset()
	}
}

func (v *synthVoice) State() voiceState { return v.state }
func (v *synthVoice) Pitch() int        { return v.pitch }

const twoPi = 2 * math.Pi

type osc struct {
	wave       int
	phase      float64
	phaseDelta float64
}

func (o *osc) process(buf []float64) {
	for n := range buf {
		buf[n] += o.sample()
		o.phase += o.phaseDelta
		if o.phase >= twoPi {
			o.phase -= twoPi
		}
	}
}

func (o *osc) sample() float64 {
	switch o.wave {
	case waveSine:
		return math.Sin(o.phase)
	case waveSaw:
		return (2.0 * o.phase / twoPi) - 1.
	case waveSquare:
		if o.phase <= math.Pi {
			return 1.0
		}
		return -1.0
	}
	return 0
}

func (o *osc) setWaveform(wave int) {
	o.wave = wave
}

func midiToFreq(note int) float64 {
	return math.Pow(2, float64(note-69)/12.0) * 440
}
