package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/mrdg/groove/audio"
	"github.com/mrdg/groove/control"
	"github.com/mrdg/groove/engine"
	"github.com/mrdg/groove/midi"
	"github.com/spf13/cobra"
)

var (
	playRun      string
	playMidiIn   string
	playHTTPAddr string
	playDebounce time.Duration
)

func init() {
	flags := playCmd.Flags()
	flags.StringVar(&playRun, "run", "", "file of commands to run before the prompt opens")
	flags.StringVar(&playMidiIn, "midi-in", "", "MIDI input port to play live notes from")
	flags.StringVar(&playHTTPAddr, "http", "", "address to serve the control API on, e.g. localhost:7070")
	flags.DurationVar(&playDebounce, "debounce", 150*time.Millisecond, "delay before pattern edits are rebuilt")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play <project>",
	Short: "Plays a project and opens a command prompt",
	Long: `Plays a project on the default audio output. Commands typed at the prompt
control the transport, change device parameters and edit patterns while the
project keeps playing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("midi-in") {
			settings.MidiInput = playMidiIn
		}
		if cmd.Flags().Changed("http") {
			settings.HTTPAddr = playHTTPAddr
		}
		return play(cmd.Context(), args[0])
	},
}

func play(ctx context.Context, path string) error {
	doc, snap, cfg, err := openProject(path)
	if err != nil {
		return err
	}
	script, err := readCommands(playRun)
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}
	eng.Install(snap)

	sink, err := audio.NewSink(eng, cfg.SampleRate, cfg.BufferSize)
	if err != nil {
		return fmt.Errorf("open audio output: %w", err)
	}
	if err := sink.Start(); err != nil {
		return fmt.Errorf("start audio output: %w", err)
	}
	defer sink.Stop()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()
	go eng.Monitor(ctx, logger, 5*time.Second)

	if settings.MidiInput != "" {
		stop, err := midi.Listen(settings.MidiInput, eng.SubmitEvent, logger)
		if err != nil {
			return err
		}
		defer midi.Close()
		defer stop()
	}

	if settings.HTTPAddr != "" {
		srv := &http.Server{Addr: settings.HTTPAddr, Handler: control.Handler(eng, logger)}
		go func() {
			logger.Info("serving control api", "addr", settings.HTTPAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("control api stopped", "err", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	s := &session{
		engine: eng,
		editor: engine.NewEditor(eng, doc, playDebounce, logger),
		path:   path,
	}
	for _, line := range script {
		result, err := s.eval(line)
		if err != nil {
			return fmt.Errorf("%s: %w", playRun, err)
		}
		if result != "" {
			fmt.Println(result)
		}
	}

	done := make(chan error, 1)
	go func() { done <- repl(s) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return nil
	}
}

// readCommands returns the non-empty lines of the file at path. Lines
// starting with # are comments.
func readCommands(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var commands []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		commands = append(commands, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return commands, nil
}
