package segment

import (
	"strings"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/vocab"
)

// State of the note segmenter.
type State int

const (
	Outside State = iota
	InsideNote
)

func (s State) String() string {
	switch s {
	case Outside:
		return "OUTSIDE"
	case InsideNote:
		return "INSIDE_NOTE"
	default:
		return "INVALID"
	}
}

// Transition names what Step did with a line.
type Transition int

const (
	Dropped    Transition = iota // junk line
	Ignored                      // ordinary line outside a note
	Started                      // header while OUTSIDE
	Preempted                    // header while INSIDE_NOTE; previous note flushed as-is
	Appended                     // ordinary line inside a note
	Terminated                   // terminator line; note emitted
)

// Machine is the segmenter state plus the lines of the note in progress.
type Machine struct {
	State  State
	Buffer []string
}

// Stats counts transitions over one Segment run.
type Stats struct {
	Lines      int
	Junk       int
	Headers    int
	Terminated int
	Preempted  int
	Trailing   int
}

// Emitted is the number of records a run with these stats produced.
func (s Stats) Emitted() int { return s.Terminated + s.Preempted + s.Trailing }

type NoteSegmenter struct {
	notes *vocab.Notes
}

func NewNoteSegmenter(v *vocab.Vocabulary) *NoteSegmenter {
	return &NoteSegmenter{notes: &v.Notes}
}

// IsHeader tolerates leading noise characters before the header grammar.
func (s *NoteSegmenter) IsHeader(line string) bool {
	return s.notes.HeaderMatch(line) != nil
}

func (s *NoteSegmenter) IsTerminator(line string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(line)), s.notes.TerminatorPrefix)
}

// Step is the transition function. It consumes m: callers must continue with
// the returned machine only.
func (s *NoteSegmenter) Step(m Machine, raw string) (Machine, *RawRecord, Transition) {
	line := strings.TrimSpace(raw)
	if IsJunk(line, s.notes.Junk) {
		return m, nil, Dropped
	}

	if s.IsHeader(line) {
		tr := Started
		if m.State == InsideNote {
			tr = Preempted
		}
		var out *RawRecord
		if len(m.Buffer) > 0 {
			out = flush(m.Buffer)
		}
		return Machine{State: InsideNote, Buffer: []string{line}}, out, tr
	}

	if m.State == Outside {
		return m, nil, Ignored
	}

	buf := append(m.Buffer, line)
	if s.IsTerminator(line) {
		return Machine{State: Outside}, flush(buf), Terminated
	}
	return Machine{State: InsideNote, Buffer: buf}, nil, Appended
}

// Finish flushes a note left open at end of stream.
func (s *NoteSegmenter) Finish(m Machine) *RawRecord {
	if len(m.Buffer) == 0 {
		return nil
	}
	return flush(m.Buffer)
}

// Segment runs the machine over text and returns one record per note.
func (s *NoteSegmenter) Segment(text string) ([]RawRecord, Stats) {
	var (
		m     Machine
		out   []RawRecord
		stats Stats
	)
	for _, line := range strings.Split(text, "\n") {
		stats.Lines++
		var rec *RawRecord
		var tr Transition
		m, rec, tr = s.Step(m, line)
		switch tr {
		case Dropped:
			stats.Junk++
		case Started:
			stats.Headers++
		case Preempted:
			stats.Headers++
			stats.Preempted++
		case Terminated:
			stats.Terminated++
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	if rec := s.Finish(m); rec != nil {
		out = append(out, *rec)
		stats.Trailing++
	}
	return out, stats
}

func flush(buf []string) *RawRecord {
	body := strings.TrimSpace(strings.Join(buf, "\n"))
	if body == "" {
		return nil
	}
	return &RawRecord{
		Date:   constants.UnknownValue,
		Header: buf[0],
		Body:   body,
		Parts:  []string{body},
	}
}
