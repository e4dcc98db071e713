package audio

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/mrdg/groove/midi"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Role is the place a device takes in the signal graph.
type Role int

const (
	Instrument Role = iota
	Effect
	Controller
)

var roleNames = [...]string{"instrument", "effect", "controller"}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return roleNames[r]
}

func ParseRole(s string) (Role, error) {
	for i, name := range roleNames {
		if name == s {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("unknown device role: %q", s)
}

// Context describes the buffer that is being rendered.
type Context struct {
	Frames int
	// Start and End delimit the tick span covered by the buffer. They are
	// equal while the transport is paused.
	Start, End    float64
	TicksPerFrame float64
	// Out receives events emitted by the device being processed.
	Out EventSink
}

// Offset returns the frame offset of tick within the buffer.
func (c *Context) Offset(tick float64) int {
	if c.TicksPerFrame <= 0 || tick <= c.Start {
		return 0
	}
	n := int(math.Floor((tick-c.Start)/c.TicksPerFrame + 1e-9))
	if n >= c.Frames {
		n = c.Frames - 1
	}
	return n
}

type EventSink interface {
	Send(ev midi.Event)
}

// Device is a node in the signal graph.
type Device interface {
	Params() *Params
	// HandleEvent receives note events for the buffer about to be processed.
	HandleEvent(ev midi.Event)
	// Process renders one interleaved stereo buffer in place. On entry buf
	// holds the sum of the device's upstream outputs.
	Process(buf []float32, ctx *Context)
	// Reset drops all internal state such as sounding voices and delay lines.
	Reset()
}

// Config carries the settings shared by all devices of a project.
type Config struct {
	SampleRate int
	BufferSize int
	// Dir resolves relative file names in device settings.
	Dir string
}

func (c Config) path(name string) string {
	if filepath.IsAbs(name) || c.Dir == "" {
		return name
	}
	return filepath.Join(c.Dir, name)
}

// Settings holds the decoded parameter object of a device declaration.
type Settings map[string]interface{}

type Constructor func(cfg Config, settings Settings) (Device, error)

type kind struct {
	role Role
	new  Constructor
}

var kinds = map[string]kind{
	"synth":            {Instrument, newSynth},
	"sampler":          {Instrument, newSampler},
	"gain":             {Effect, newGain},
	"limiter":          {Effect, newLimiter},
	"reverb":           {Effect, newReverb},
	"delay":            {Effect, newDelay},
	"compressor":       {Effect, newCompressor},
	"distortion":       {Effect, newDistortion},
	"chorus":           {Effect, newChorus},
	"filter-low-pass":  {Effect, newFilter(lowPass)},
	"filter-high-pass": {Effect, newFilter(highPass)},
	"filter-band-pass": {Effect, newFilter(bandPass)},
	"arpeggiator":      {Controller, newArpeggiator},
	"lfo":              {Controller, newLFO},
}

// Register adds a device kind. It is not safe to call concurrently with New.
func Register(name string, role Role, fn Constructor) {
	if _, ok := kinds[name]; ok {
		panic("audio: kind registered twice: " + name)
	}
	kinds[name] = kind{role, fn}
}

// New builds a device of the named kind.
func New(role Role, name string, cfg Config, settings Settings) (Device, error) {
	k, ok := kinds[name]
	if !ok {
		return nil, fmt.Errorf("unknown device kind %q", name)
	}
	if k.role != role {
		return nil, fmt.Errorf("%s is not an %v", name, role)
	}
	if cfg.SampleRate <= 0 || cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("bad device config: %+v", cfg)
	}
	return k.new(cfg, settings)
}

// Kinds returns the sorted names of the kinds registered for role.
func Kinds(role Role) []string {
	var names []string
	for _, name := range maps.Keys(kinds) {
		if kinds[name].role == role {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// apply sets initial parameter values from settings. Keys listed in skip
// are handled by the caller.
func (s Settings) apply(params *Params, skip ...string) error {
	for key, v := range s {
		if slices.Contains(skip, key) {
			continue
		}
		f, ok := v.(float64)
		if !ok {
			return fmt.Errorf("parameter %s: value is not a number: %v", key, v)
		}
		if _, err := params.Set(key, f); err != nil {
			return err
		}
	}
	return nil
}
