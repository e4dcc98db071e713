package audio

import "fmt"

type preset map[string]float64

var presets = map[string]preset{
	"lame-bass": {
		"level":       3.,
		"env.decay":   0.1,
		"env.sustain": 0.,
		"osc1.wave":   waveSaw,
		"osc2.wave":   waveSaw,
		"cutoff":      900.0,
	},
	"soft-pad": {
		"level":       -6.,
		"env.attack":  0.8,
		"env.decay":   1.5,
		"env.sustain": 0.7,
		"env.release": 2.,
		"osc1.wave":   waveSine,
		"osc2.wave":   waveSaw,
		"cutoff":      2400.0,
	},
	"pluck": {
		"env.attack":  0.001,
		"env.decay":   0.25,
		"env.sustain": 0.,
		"env.release": 0.05,
		"osc1.wave":   waveSquare,
		"osc2.wave":   waveOff,
		"cutoff":      3000.0,
	},
}

// LoadPreset applies the named preset to params.
func LoadPreset(name string, params *Params) error {
	p, ok := presets[name]
	if !ok {
		return fmt.Errorf("unknown preset: %v", name)
	}
	for k, v := range p {
		if _, err := params.Set(k, v); err != nil {
			return fmt.Errorf("preset %s: %w", name, err)
		}
	}
	return nil
}
