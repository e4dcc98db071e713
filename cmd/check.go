package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mrdg/groove/engine"
	"github.com/mrdg/groove/project"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check <project>",
	Short: "Validates a project",
	Long: `Loads and compiles a project without playing it, then prints the order
in which its devices are processed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, snap, _, err := openProject(args[0])
		var loadErr *project.LoadError
		if errors.As(err, &loadErr) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", loadErr.Kind, loadErr.Entity)
		}
		if err != nil {
			return err
		}
		summarize(cmd.OutOrStdout(), snap)
		return nil
	},
}

func summarize(w io.Writer, snap *engine.Snapshot) {
	fmt.Fprintf(w, "order:     %s\n", strings.Join(snap.Graph.Order(), " → "))
	fmt.Fprintf(w, "terminals: %s\n", strings.Join(snap.Graph.Terminals(), ", "))
	sig := snap.Clock.Signature()
	fmt.Fprintf(w, "length:    %v (%v at %v bpm)\n",
		sig.Position(snap.Length()), sig, snap.Clock.BPM())
}
