// Package timeline folds per-document results into one date-keyed timeline
// and persists it.
package timeline

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/entity"
	"github.com/joseph-ayodele/clinical-timeline/internal/normalize"
)

// Timeline maps a date to the events recorded under it. Events keep the
// order in which they were appended; dates are listed chronologically.
type Timeline struct {
	order   []string
	events  map[string][]entity.Event
	skipped []string
}

func New() *Timeline {
	return &Timeline{events: make(map[string][]entity.Event)}
}

// Append files e under e.Date.
func (t *Timeline) Append(e entity.Event) {
	if _, ok := t.events[e.Date]; !ok {
		t.order = append(t.order, e.Date)
	}
	t.events[e.Date] = append(t.events[e.Date], e)
}

// Dates returns the date keys: parseable dates ascending, then unparseable
// keys in first-seen order, then UNKNOWN.
func (t *Timeline) Dates() []string {
	type key struct {
		date   string
		rank   int
		parsed int64
		seen   int
	}
	keys := make([]key, 0, len(t.order))
	for i, d := range t.order {
		k := key{date: d, rank: 1, seen: i}
		if d == constants.UnknownValue {
			k.rank = 2
		} else if ts, ok := normalize.ParseDate(d); ok {
			k.rank, k.parsed = 0, ts.Unix()
		}
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].rank != keys[j].rank {
			return keys[i].rank < keys[j].rank
		}
		if keys[i].rank == 0 && keys[i].parsed != keys[j].parsed {
			return keys[i].parsed < keys[j].parsed
		}
		return keys[i].seen < keys[j].seen
	})
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.date
	}
	return out
}

// Events returns the events of date in append order.
func (t *Timeline) Events(date string) []entity.Event {
	return t.events[date]
}

// Len counts all events.
func (t *Timeline) Len() int {
	n := 0
	for _, evs := range t.events {
		n += len(evs)
	}
	return n
}

// Skipped lists the source files Merge left out.
func (t *Timeline) Skipped() []string {
	return t.skipped
}

// MarshalJSON writes the timeline as an object with dates in Dates order.
func (t *Timeline) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, d := range t.Dates() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(d); err != nil {
			return nil, err
		}
		trimNewline(&buf)
		buf.WriteString(":[")
		for j, e := range t.events[d] {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := enc.Encode(e); err != nil {
				return nil, err
			}
			trimNewline(&buf)
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func trimNewline(buf *bytes.Buffer) {
	if n := buf.Len(); n > 0 && buf.Bytes()[n-1] == '\n' {
		buf.Truncate(n - 1)
	}
}
