package sequence

import (
	"math"

	"github.com/mrdg/groove/midi"
)

// A track is walked boundary by boundary. Boundary b is the start of global
// step b; it releases the notes of step b-1 and starts the notes of step b.
// The boundary after the last step only releases.
type cursor struct {
	track *Track
	// first[i] is the global index of the first step of pattern i and
	// start[i] its position in ticks. Both have an extra entry for the end
	// of the track.
	first []int
	start []float64

	pattern  int
	boundary int
	// skipOffs suppresses the releases at the current boundary. It is set
	// after a seek, when the released notes started before the seek point.
	skipOffs bool
}

func newCursor(t *Track) *cursor {
	c := &cursor{
		track: t,
		first: make([]int, len(t.Patterns)+1),
		start: make([]float64, len(t.Patterns)+1),
	}
	for i, p := range t.Patterns {
		c.first[i+1] = c.first[i] + p.Len()
		c.start[i+1] = c.start[i] + float64(p.Len())*p.StepTicks()
	}
	return c
}

func (c *cursor) total() int        { return c.first[len(c.first)-1] }
func (c *cursor) length() float64   { return c.start[len(c.start)-1] }
func (c *cursor) done() bool        { return c.boundary > c.total() }
func (c *cursor) current() *Pattern { return c.track.Patterns[c.pattern] }

// tick returns the position of the current boundary.
func (c *cursor) tick() float64 {
	if c.boundary >= c.total() {
		return c.length()
	}
	p := c.current()
	return c.start[c.pattern] + float64(c.boundary-c.first[c.pattern])*p.StepTicks()
}

// step returns the pattern and step index of global step b.
func (c *cursor) step(b int) (*Pattern, int) {
	i := c.pattern
	for i > 0 && b < c.first[i] {
		i--
	}
	for b >= c.first[i+1] {
		i++
	}
	return c.track.Patterns[i], b - c.first[i]
}

func (c *cursor) emit(dst []midi.Event) []midi.Event {
	t := c.tick()
	ch := c.track.Channel
	if c.boundary > 0 && !c.skipOffs {
		p, i := c.step(c.boundary - 1)
		for _, row := range p.Rows {
			if s := row[i]; s.Pitch != 0 {
				ev := midi.Off(ch, s.Pitch)
				ev.Tick = t
				dst = append(dst, ev)
			}
		}
	}
	c.skipOffs = false
	if c.boundary < c.total() {
		p, i := c.step(c.boundary)
		for _, row := range p.Rows {
			if s := row[i]; s.Pitch != 0 {
				ev := midi.On(ch, s.Pitch, s.Velocity)
				ev.Tick = t
				dst = append(dst, ev)
			}
		}
	}
	return dst
}

func (c *cursor) next() {
	c.boundary++
	for c.pattern < len(c.track.Patterns)-1 && c.boundary >= c.first[c.pattern+1] {
		c.pattern++
	}
}

// seek moves the cursor to the first boundary at or after t.
func (c *cursor) seek(t float64) {
	c.pattern = 0
	c.boundary = 0
	c.skipOffs = false
	if c.total() == 0 {
		c.boundary = 1
		return
	}
	if t > c.length()+eps {
		c.boundary = c.total() + 1
		return
	}
	for c.pattern < len(c.track.Patterns)-1 && t > c.start[c.pattern+1]-eps {
		c.pattern++
	}
	p := c.current()
	i := int(math.Ceil((t-c.start[c.pattern])/p.StepTicks() - eps))
	if i < 0 {
		i = 0
	}
	c.boundary = c.first[c.pattern] + i
	if c.boundary > c.total() {
		c.boundary = c.total()
	}
	for c.pattern < len(c.track.Patterns)-1 && c.boundary >= c.first[c.pattern+1] {
		c.pattern++
	}
	c.skipOffs = c.boundary > 0
}

const eps = 1e-6

// Sequencer produces the events of a set of tracks lazily, one span of
// ticks at a time. It is not safe for concurrent use.
type Sequencer struct {
	cursors []*cursor
}

func New(tracks []*Track) *Sequencer {
	s := &Sequencer{}
	for _, t := range tracks {
		s.cursors = append(s.cursors, newCursor(t))
	}
	return s
}

// Length returns the end of the longest track in ticks.
func (s *Sequencer) Length() float64 {
	var n float64
	for _, c := range s.cursors {
		n = math.Max(n, c.length())
	}
	return n
}

// Collect appends the events positioned in [start, end) to dst, sorted by
// midi.Less. Spans must be requested in increasing order; call Seek to jump.
func (s *Sequencer) Collect(start, end float64, dst []midi.Event) []midi.Event {
	n := len(dst)
	for _, c := range s.cursors {
		for !c.done() && c.tick() < end-eps {
			if c.tick() >= start-eps {
				dst = c.emit(dst)
			}
			c.next()
		}
	}
	midi.Sort(dst[n:])
	return dst
}

// Seek repositions every track at t. Afterwards the sequencer produces all
// events at or after t, except releases of notes that started before t.
func (s *Sequencer) Seek(t float64) {
	for _, c := range s.cursors {
		c.seek(t)
	}
}
