// Package cmd implements the groove command line.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/mrdg/groove/config"
	"github.com/mrdg/groove/engine"
	"github.com/mrdg/groove/project"
	"github.com/spf13/cobra"
)

var (
	configPath string
	sampleRate int
	bufferSize int
	logLevel   string

	settings config.Config
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "groove",
	Short: "Pattern sequencer and audio engine",
	Long: `groove plays projects of instruments, effects and controllers wired
into a device graph, driven by note patterns and parameter automation.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "settings file (default is groove/config.json in the user config dir)")
	flags.IntVar(&sampleRate, "sample-rate", 0, "output sample rate in Hz")
	flags.IntVar(&bufferSize, "buffer-size", 0, "frames rendered per buffer")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if issue := fmsg.GetIssue(err); issue != "" {
			fmt.Fprintln(os.Stderr, issue)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes bad input from missing files for scripts.
func exitCode(err error) int {
	switch ftag.Get(err) {
	case ftag.InvalidArgument:
		return 2
	case ftag.NotFound:
		return 3
	}
	return 1
}

// setup loads the settings file, applies flag overrides and configures the
// logger. It runs before every subcommand.
func setup(cmd *cobra.Command) error {
	path := configPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("sample-rate") {
		cfg.SampleRate = sampleRate
	}
	if flags.Changed("buffer-size") {
		cfg.BufferSize = bufferSize
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	settings = cfg
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// openProject loads the document at path and builds a snapshot of it.
// Samples referenced by the project resolve relative to its directory.
func openProject(path string) (*project.Document, *engine.Snapshot, engine.Config, error) {
	cfg := settings.Engine(filepath.Dir(path))
	doc, err := project.Load(path)
	if err != nil {
		return nil, nil, cfg, err
	}
	snap, err := engine.Build(doc, cfg)
	if err != nil {
		return nil, nil, cfg, fmt.Errorf("%s: %w", path, err)
	}
	return doc, snap, cfg, nil
}
