package cmd

import (
	"os"

	"github.com/mrdg/groove/engine"
	"github.com/mrdg/groove/midi"
	"github.com/spf13/cobra"
)

var exportOut string

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "out.mid", "output file")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <project>",
	Short: "Exports the sequenced notes as a MIDI file",
	Long: `Writes the notes of every track as a Standard MIDI File, one track per
MIDI channel. Automation and controllers are not part of the export.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, snap, _, err := openProject(args[0])
		if err != nil {
			return err
		}
		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}
		defer f.Close()
		s := song(snap)
		if err := midi.WriteSMF(f, s); err != nil {
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Info("exported project", "file", exportOut, "events", len(s.Events))
		return nil
	},
}

// song collects every sequenced event of snap, including the releases at
// the very end.
func song(snap *engine.Snapshot) midi.Song {
	length := snap.Length()
	sig := snap.Clock.Signature()
	return midi.Song{
		BPM:         snap.Clock.BPM(),
		Numerator:   uint8(sig.Num),
		Denominator: uint8(sig.Den),
		Events:      snap.Sequencer.Collect(0, length+1, nil),
		Length:      length,
	}
}
