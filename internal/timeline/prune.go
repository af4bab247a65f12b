package timeline

import (
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/joseph-ayodele/clinical-timeline/internal/entity"
)

// Rejected is one event the timeline schema would not accept.
type Rejected struct {
	Date       string
	SourceFile string
	Reason     string
}

// DropInvalid removes the events the timeline schema rejects, together with
// every event filed under a date key it rejects, and returns what it removed.
// A valid timeline is left untouched.
func (t *Timeline) DropInvalid(logger *slog.Logger) []Rejected {
	if logger == nil {
		logger = slog.Default()
	}
	raw, err := t.MarshalJSON()
	if err == nil && Validate(raw) == nil {
		return nil
	}

	var rejected []Rejected
	reject := func(date string, e entity.Event, reason string) {
		rejected = append(rejected, Rejected{Date: date, SourceFile: e.SourceFile, Reason: reason})
		logger.Warn("timeline.event.dropped",
			"date", date,
			"source_file", e.SourceFile,
			"record_type", string(e.RecordType),
			"reason", reason,
		)
	}

	for _, date := range slices.Clone(t.order) {
		events := t.events[date]
		if err := validateEvents(date, nil); err != nil {
			for _, e := range events {
				reject(date, e, err.Error())
			}
			t.remove(date)
			continue
		}
		kept := events[:0:0]
		for _, e := range events {
			if err := validateEvents(date, []entity.Event{e}); err != nil {
				reject(date, e, err.Error())
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			t.remove(date)
			continue
		}
		t.events[date] = kept
	}
	return rejected
}

func (t *Timeline) remove(date string) {
	delete(t.events, date)
	t.order = slices.DeleteFunc(t.order, func(d string) bool { return d == date })
}

func validateEvents(date string, events []entity.Event) error {
	if events == nil {
		events = []entity.Event{}
	}
	b, err := json.Marshal(map[string][]entity.Event{date: events})
	if err != nil {
		return err
	}
	return Validate(b)
}
