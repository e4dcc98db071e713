package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mrdg/groove/clock"
	"github.com/mrdg/groove/project"
	"github.com/spf13/cobra"
)

var showColor bool

func init() {
	showCmd.Flags().BoolVar(&showColor, "color", true, "colorize output")
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show <project> [pattern...]",
	Short: "Prints patterns as step grids",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := project.Load(args[0])
		if err != nil {
			return err
		}
		return showPatterns(cmd.OutOrStdout(), doc, args[1:], showColor)
	},
}

// showPatterns draws the named patterns of doc, or all of them when ids is
// empty.
func showPatterns(w io.Writer, doc *project.Document, ids []string, color bool) error {
	patterns := doc.Patterns
	if len(ids) > 0 {
		patterns = nil
		for _, id := range ids {
			p, ok := doc.FindPattern(id)
			if !ok {
				return fmt.Errorf("unknown pattern: %s", id)
			}
			patterns = append(patterns, *p)
		}
	}
	g := grid{w: w, sig: doc.Clock.Signature(), color: color}
	for i, p := range patterns {
		if i > 0 {
			fmt.Fprintln(w)
		}
		g.pattern(p)
	}
	return nil
}

type grid struct {
	w     io.Writer
	sig   clock.Signature
	color bool
}

const spacePerStep = 4

func (g grid) pattern(p project.Pattern) {
	fmt.Fprintf(g.w, "%s %s\n", g.colorize(p.ID, colorGreen), p.NoteValue)
	if len(p.Notes) == 0 {
		return
	}
	steps := len(p.Notes[0]) / 2

	// beats are numbered within the measure
	stepTicks := p.NoteValue.Ticks()
	var beats string
	for i := 0; i < steps; i++ {
		pos := g.sig.Position(float64(i) * stepTicks)
		label := strings.Repeat(" ", spacePerStep)
		if pos.Tick == 0 && pos.Frac == 0 {
			label = numIcon(pos.Beat+1) + strings.Repeat(" ", spacePerStep-2)
		}
		beats += label
	}
	fmt.Fprintf(g.w, "      %s\n", beats)

	for r := range p.Notes {
		row := p.Notes[r]
		var cells string
		for i := 0; i+1 < len(row); i += 2 {
			cell := "⬜️"
			if row[i] > 0 && row[i+1] > 0 {
				cell = "⬛️"
			}
			cells += cell + "  "
		}
		fmt.Fprintf(g.w, "%s %s\n", g.colorize(fmt.Sprintf("%4d ", r+1), colorBlue), cells)
	}

	var numbers string
	for step := 1; step <= steps; step++ {
		space := spacePerStep - 2
		if step < 10 {
			space++
		}
		numbers += strconv.Itoa(step) + strings.Repeat(" ", space)
	}
	fmt.Fprintf(g.w, "      %s\n", g.colorize(numbers, colorMagenta))
}

func numIcon(n int) string {
	// https://www.unicode.org/emoji/charts/full-emoji-list.html#0030_fe0f_20e3
	return string([]byte{48 + byte(n%10), 239, 184, 143, 226, 131, 163})
}

const (
	colorBlack = iota + 30
	colorRed
	colorGreen
	colorYellow
	colorBlue
	colorMagenta
)

func (g grid) colorize(text string, color int) string {
	if !g.color {
		return text
	}
	return fmt.Sprintf("\033[%dm%s\033[0m", color, text)
}
