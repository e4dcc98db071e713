package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mrdg/groove/clock"
	"github.com/mrdg/groove/dub"
	"github.com/mrdg/groove/engine"
	"github.com/mrdg/groove/midi"
	"github.com/mrdg/groove/project"
)

// session evaluates prompt commands against a running engine.
type session struct {
	engine *engine.Engine
	editor *engine.Editor
	path   string
}

type command struct {
	name  string
	usage string
	run   func(*session, dub.Command) (string, error)
}

var commands []command

func init() {
	commands = []command{
		{"play", "play", transport((*engine.Engine).Play)},
		{"pause", "pause", transport((*engine.Engine).Pause)},
		{"stop", "stop", transport((*engine.Engine).Stop)},
		{"panic", "panic", transport((*engine.Engine).Panic)},
		{"seek", "seek <measure> [beat] [tick]", seekCommand},
		{"tempo", "tempo <bpm>", tempoCommand},
		{"set", "set <device> <param> <value>", setCommand},
		{"get", "get <device> <param>", getCommand},
		{"devices", "devices", devicesCommand},
		{"note", "note <channel> <pitch> [velocity]", noteCommand},
		{"off", "off <channel> <pitch>", offCommand},
		{"steps", "steps <pattern> <row> <pitch> <velocity> '<steps>", stepsCommand},
		{"clear", "clear <pattern> <row>", clearCommand},
		{"show", "show [pattern]", showCommand},
		{"stats", "stats", statsCommand},
		{"save", "save [file]", saveCommand},
		{"help", "help", helpCommand},
	}
}

func (s *session) eval(input string) (string, error) {
	cmd, err := dub.Parse(input)
	if err != nil {
		return "", err
	}
	logger.Debug("eval", "command", cmd.String())
	name := string(cmd.Name)
	for _, c := range commands {
		if name != c.name {
			continue
		}
		result, err := c.run(s, cmd)
		if err != nil {
			return result, fmt.Errorf("%s error: %w", c.name, err)
		}
		return result, nil
	}
	return "", fmt.Errorf("unknown command: %s", name)
}

func repl(s *session) error {
	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return nil
		}
		if err != nil {
			fmt.Println(err)
			continue
		}
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		if result, err := s.eval(line); err != nil {
			var syntaxErr *dub.SyntaxError
			if errors.As(err, &syntaxErr) {
				// point at the offending input below the prompt
				fmt.Println(strings.Repeat(" ", len("> ")+syntaxErr.Pos) + "^")
			}
			fmt.Println(err)
		} else if result != "" {
			fmt.Println(result)
		}
	}
}

func transport(fn func(*engine.Engine)) func(*session, dub.Command) (string, error) {
	return func(s *session, cmd dub.Command) (string, error) {
		if err := cmd.Scan(); err != nil {
			return "", err
		}
		fn(s.engine)
		return "", nil
	}
}

// seekCommand takes a one-based measure and beat.
func seekCommand(s *session, cmd dub.Command) (string, error) {
	measure, beat, tick := 1, 1, 0
	dst := []interface{}{&measure, &beat, &tick}
	if len(cmd.Args) > 0 && len(cmd.Args) <= len(dst) {
		dst = dst[:len(cmd.Args)]
	}
	if err := cmd.Scan(dst...); err != nil {
		return "", err
	}
	if measure < 1 || beat < 1 || tick < 0 {
		return "", fmt.Errorf("position out of range: %d:%d:%d", measure, beat, tick)
	}
	s.engine.Seek(clock.Position{Measure: measure - 1, Beat: beat - 1, Tick: tick})
	return "", nil
}

func tempoCommand(s *session, cmd dub.Command) (string, error) {
	var bpm float64
	if err := cmd.Scan(&bpm); err != nil {
		return "", err
	}
	return "", s.engine.SetTempo(bpm)
}

func setCommand(s *session, cmd dub.Command) (string, error) {
	var (
		device, param string
		value         float64
	)
	if err := cmd.Scan(&device, &param, &value); err != nil {
		return "", err
	}
	clamped, err := s.engine.SetParameter(device, param, value)
	if err != nil {
		return "", err
	}
	if clamped {
		p, _ := s.engine.Snapshot().Graph.Param(device, param)
		lo, hi := p.Range()
		return fmt.Sprintf("%v is out of range, clamped to [%g, %g]", value, lo, hi), nil
	}
	return "", nil
}

func getCommand(s *session, cmd dub.Command) (string, error) {
	var device, param string
	if err := cmd.Scan(&device, &param); err != nil {
		return "", err
	}
	v, err := s.engine.Parameter(device, param)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%g", v), nil
}

func devicesCommand(s *session, cmd dub.Command) (string, error) {
	if err := cmd.Scan(); err != nil {
		return "", err
	}
	snap := s.engine.Snapshot()
	if snap == nil {
		return "", engine.ErrNoProject
	}
	var b strings.Builder
	for i, n := range snap.Graph.Nodes() {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s (%s)", n.ID, n.Role)
		for _, p := range n.Device.Params().All() {
			lo, hi := p.Range()
			fmt.Fprintf(&b, "\n  %-16s %10.4g  [%g, %g]", p.Name(), p.Value(), lo, hi)
		}
	}
	return b.String(), nil
}

func noteCommand(s *session, cmd dub.Command) (string, error) {
	channel, pitch, velocity := 0, 0, 100
	dst := []interface{}{&channel, &pitch, &velocity}
	if len(cmd.Args) == 2 {
		dst = dst[:2]
	}
	if err := cmd.Scan(dst...); err != nil {
		return "", err
	}
	if err := checkNote(channel, pitch, velocity); err != nil {
		return "", err
	}
	s.engine.SubmitEvent(midi.On(uint8(channel), uint8(pitch), uint8(velocity)))
	return "", nil
}

func offCommand(s *session, cmd dub.Command) (string, error) {
	var channel, pitch int
	if err := cmd.Scan(&channel, &pitch); err != nil {
		return "", err
	}
	if err := checkNote(channel, pitch, 0); err != nil {
		return "", err
	}
	s.engine.SubmitEvent(midi.Off(uint8(channel), uint8(pitch)))
	return "", nil
}

func checkNote(channel, pitch, velocity int) error {
	switch {
	case channel < 0 || channel >= midi.NumChannels:
		return fmt.Errorf("channel out of range: %d", channel)
	case pitch < 0 || pitch > 127:
		return fmt.Errorf("pitch out of range: %d", pitch)
	case velocity < 0 || velocity > 127:
		return fmt.Errorf("velocity out of range: %d", velocity)
	}
	return nil
}

// stepsCommand writes a note to the steps of a pattern row selected by a
// step expression, repeated in every measure of the pattern. Unselected
// steps become rests. Row one past the last adds a row.
func stepsCommand(s *session, cmd dub.Command) (string, error) {
	var (
		id                   string
		row, pitch, velocity int
		expr                 dub.MatchExpr
	)
	if err := cmd.Scan(&id, &row, &pitch, &velocity, &expr); err != nil {
		return "", err
	}
	if err := checkNote(0, pitch, velocity); err != nil {
		return "", err
	}
	return "", s.editor.Edit(func(doc *project.Document) error {
		p, err := findRow(doc, id, row, true)
		if err != nil {
			return err
		}
		measure, err := dub.Steps(expr, doc.Clock.Signature(), p.NoteValue)
		if err != nil {
			return err
		}
		notes := p.Notes[row-1]
		if len(notes) == 0 {
			notes = make([]int, 2*len(measure))
		}
		for i := 0; i+1 < len(notes); i += 2 {
			if measure[(i/2)%len(measure)] {
				notes[i], notes[i+1] = pitch, velocity
			} else {
				notes[i], notes[i+1] = 0, 0
			}
		}
		p.Notes[row-1] = notes
		return nil
	})
}

func clearCommand(s *session, cmd dub.Command) (string, error) {
	var (
		id  string
		row int
	)
	if err := cmd.Scan(&id, &row); err != nil {
		return "", err
	}
	return "", s.editor.Edit(func(doc *project.Document) error {
		p, err := findRow(doc, id, row, false)
		if err != nil {
			return err
		}
		clear(p.Notes[row-1])
		return nil
	})
}

// findRow returns the pattern holding the one-based row. With grow set the
// row just past the last one is created, as long as the pattern has a
// row to take its length from.
func findRow(doc *project.Document, id string, row int, grow bool) (*project.Pattern, error) {
	p, ok := doc.FindPattern(id)
	if !ok {
		return nil, fmt.Errorf("unknown pattern: %s", id)
	}
	if grow && row == len(p.Notes)+1 {
		var n int
		if len(p.Notes) > 0 {
			n = len(p.Notes[0])
		}
		p.Notes = append(p.Notes, make([]int, n))
	}
	if row < 1 || row > len(p.Notes) {
		return nil, fmt.Errorf("pattern %s has no row %d", id, row)
	}
	return p, nil
}

func showCommand(s *session, cmd dub.Command) (string, error) {
	var ids []string
	if len(cmd.Args) > 0 {
		var id string
		if err := cmd.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	doc, err := s.editor.Document()
	if err != nil {
		return "", err
	}
	var b bytes.Buffer
	if err := showPatterns(&b, doc, ids, true); err != nil {
		return "", err
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

func statsCommand(s *session, cmd dub.Command) (string, error) {
	if err := cmd.Scan(); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(s.engine.Stats(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func saveCommand(s *session, cmd dub.Command) (string, error) {
	path := s.path
	if len(cmd.Args) > 0 {
		if err := cmd.Scan(&path); err != nil {
			return "", err
		}
	}
	if path == "" {
		return "", errors.New("no file name")
	}
	doc, err := s.editor.Document()
	if err != nil {
		return "", err
	}
	if err := project.Save(path, doc); err != nil {
		return "", err
	}
	return "saved " + path, nil
}

func helpCommand(s *session, cmd dub.Command) (string, error) {
	var b strings.Builder
	for i, c := range commands {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c.usage)
	}
	return b.String(), nil
}
