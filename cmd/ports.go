package cmd

import (
	"fmt"

	"github.com/mrdg/groove/midi"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(portsCmd)
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Lists MIDI input ports",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		defer midi.Close()
		ports := midi.InPorts()
		if len(ports) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no midi inputs found")
			return
		}
		for _, name := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}
