// Package config holds the runtime settings of the groove command.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/mrdg/groove/engine"
)

type Config struct {
	SampleRate       int    `json:"sample-rate"`
	BufferSize       int    `json:"buffer-size"`
	LiveQueueSize    int    `json:"live-queue-size"`
	CommandQueueSize int    `json:"command-queue-size"`
	MidiInput        string `json:"midi-input"`
	HTTPAddr         string `json:"http-addr"`
	LogLevel         string `json:"log-level"`
}

func Default() Config {
	return Config{
		SampleRate:       44100,
		BufferSize:       512,
		LiveQueueSize:    256,
		CommandQueueSize: 64,
		LogLevel:         "info",
	}
}

// Path returns the default location of the settings file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "groove", "config.json"), nil
}

// Load reads the settings file at path on top of the defaults. A missing
// file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fault.Wrap(err, fmsg.With("read settings"))
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fault.Wrap(err,
			fmsg.WithDesc("decode settings", fmt.Sprintf("%s is not a valid settings file.", path)),
			ftag.With(ftag.InvalidArgument))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fault.Wrap(err, fmsg.With(path), ftag.With(ftag.InvalidArgument))
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample-rate must be positive, got %d", c.SampleRate)
	case c.BufferSize <= 0:
		return fmt.Errorf("buffer-size must be positive, got %d", c.BufferSize)
	case c.LiveQueueSize <= 0:
		return fmt.Errorf("live-queue-size must be positive, got %d", c.LiveQueueSize)
	case c.CommandQueueSize <= 0:
		return fmt.Errorf("command-queue-size must be positive, got %d", c.CommandQueueSize)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("log-level: %w", err)
	}
	return level, nil
}

// Engine returns the engine settings for a project stored in dir.
func (c Config) Engine(dir string) engine.Config {
	return engine.Config{
		SampleRate:       c.SampleRate,
		BufferSize:       c.BufferSize,
		LiveQueueSize:    c.LiveQueueSize,
		CommandQueueSize: c.CommandQueueSize,
		Dir:              dir,
	}
}
