package cmd

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/mrdg/groove/audio"
	"github.com/mrdg/groove/engine"
	"github.com/spf13/cobra"
)

var (
	renderOut      string
	renderTail     time.Duration
	renderMeasures int
)

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "out.wav", "output file")
	renderCmd.Flags().IntVar(&renderMeasures, "measures", 0, "number of measures to render (default is the whole arrangement)")
	renderCmd.Flags().DurationVar(&renderTail, "tail", 2*time.Second, "silence rendered after the last step, for effect tails")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render <project>",
	Short: "Renders a project to a WAV file",
	Long: `Renders a project from start to end, plus a tail, faster than real time
and writes the result as 16 bit stereo PCM.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, snap, cfg, err := openProject(args[0])
		if err != nil {
			return err
		}
		f, err := os.Create(renderOut)
		if err != nil {
			return err
		}
		defer f.Close()

		start := time.Now()
		length := snap.Length()
		if renderMeasures > 0 {
			length = float64(renderMeasures) * snap.Clock.TicksPerMeasure()
		}
		frames, err := bounce(f, snap, cfg, length, renderTail)
		if err != nil {
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Info("rendered project",
			"file", renderOut,
			"frames", frames,
			"length", time.Duration(float64(frames)/float64(cfg.SampleRate)*float64(time.Second)),
			"took", time.Since(start))
		return nil
	},
}

// bounce plays length ticks of snap on a private engine, followed by tail,
// and writes every buffer to w as WAV. It returns the number of frames
// written.
func bounce(w io.Writer, snap *engine.Snapshot, cfg engine.Config, length float64, tail time.Duration) (int, error) {
	eng, err := engine.New(cfg)
	if err != nil {
		return 0, err
	}
	frames := int(math.Ceil(length/snap.Clock.TicksPerFrame()-1e-6)) +
		int(tail.Seconds()*float64(cfg.SampleRate))

	eng.Install(snap)
	eng.Play()

	out := audio.NewWAVWriter(w, frames, cfg.SampleRate)
	buf := make([]float32, 2*cfg.BufferSize)
	for left := frames; left > 0; {
		n := cfg.BufferSize
		if left < n {
			n = left
		}
		eng.Render(buf[:2*n])
		if err := out.Write(buf[:2*n]); err != nil {
			return 0, fmt.Errorf("write wav: %w", err)
		}
		left -= n
	}
	if st := eng.Stats(); st.SilencedBuffers > 0 {
		logger.Warn("buffers silenced while rendering", "count", st.SilencedBuffers)
	}
	return frames, nil
}
