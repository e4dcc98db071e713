package audio

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/youpy/go-wav"
)

// Sample is a mono sound loaded into memory.
type Sample struct {
	buf  []float64
	file string
}

func (s *Sample) Len() int { return len(s.buf) }

// LoadSample reads the first channel of a WAV file.
func LoadSample(file string) (*Sample, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	snd := Sample{file: file}
	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	// integer PCM spans [-2^(bits-1), 2^(bits-1)); 8 bit data is unsigned
	bits := int(format.BitsPerSample)
	scale := math.Ldexp(1, bits-1)
	for {
		samples, err := r.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		for _, sample := range samples {
			v := float64(sample.Values[0])
			if bits == 8 {
				v -= 128
			}
			snd.buf = append(snd.buf, v/scale)
		}
	}
	return &snd, nil
}

// SampleMap assigns samples to MIDI pitches.
type SampleMap [128]*Sample

// Sampler plays one-shot samples. Note-offs are ignored, a sample always
// plays to its end unless the envelope decays first.
func Sampler(params *Params, cfg Config, sounds *SampleMap) *VoicePool {
	var (
		envAttack = params.MustRegister(propEnvAttack, 0.0005, 15, 0.0005)
		envDecay  = params.MustRegister(propEnvDecay, 0.0005, 15, 5.0)
	)
	voices := make([]Voice, numVoices)
	for n := range voices {
		voices[n] = &samplerVoice{
			state:     stateFree,
			sounds:    sounds,
			envAttack: envAttack,
			envDecay:  envDecay,
			env:       &envelope{sampleRate: float64(cfg.SampleRate)},
		}
	}
	return NewVoicePool(params, voices, cfg.BufferSize)
}

func newSampler(cfg Config, settings Settings) (Device, error) {
	var sounds SampleMap
	if files, ok := settings["files"]; ok {
		m, ok := files.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("files: expected an object mapping pitches to files")
		}
		for key, v := range m {
			pitch, err := strconv.Atoi(key)
			if err != nil || pitch < 0 || pitch > 127 {
				return nil, fmt.Errorf("files: not a valid pitch: %q", key)
			}
			file, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("files: not a file name: %v", v)
			}
			snd, err := LoadSample(cfg.path(file))
			if err != nil {
				return nil, err
			}
			sounds[pitch] = snd
		}
	}
	params := NewParams()
	sampler := Sampler(params, cfg, &sounds)
	if err := settings.apply(params, "files"); err != nil {
		return nil, err
	}
	return sampler, nil
}

type samplerVoice struct {
	sounds    *SampleMap
	envAttack *Param
	envDecay  *Param
	state     voiceState
	env       *envelope
	buf       []float64
	pos       int
	pitch     int
	gain      float64
}

func (v *samplerVoice) NoteOn(pitch, velocity int) {
	snd := v.sounds[pitch]
	if snd == nil {
		return
	}
	v.buf = snd.buf
	v.pos = 0
	v.gain = float64(velocity) / 127
	v.state = stateActive
	v.env.noteOn(adsr{attack: v.envAttack.Value(), decay: v.envDecay.Value()})
	v.pitch = pitch
}

func (v *samplerVoice) NoteOff() {}

func (v *samplerVoice) Process(buf []float64) {
	n := len(buf)
	if remaining := len(v.buf) - v.pos; remaining < n {
		n = remaining
	}
	for i := range buf[:n] {
		buf[i] += v.buf[v.pos] * v.env.next() * v.gain
		v.pos++
	}
	if v.pos >= len(v.buf) || v.env.idle() {
		v.Reset()
	}
}

func (v *samplerVoice) Reset() {
	v.buf = nil
	v.pos = 0
	v.state = stateFree
	v.pitch = 0
	v.env.reset()
}

func (v *samplerVoice) State() voiceState { return v.state }
func (v *samplerVoice) Pitch() int        { return v.pitch }
