package timeline

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/entity"
	"github.com/joseph-ayodele/clinical-timeline/internal/normalize"
)

// Merge folds results, in slice order, into a fresh timeline. Results that
// carry an error sentinel or no data are skipped and logged. Every record is
// copied, so the timeline shares nothing with results.
func Merge(results []entity.DocumentResult, logger *slog.Logger) *Timeline {
	if logger == nil {
		logger = slog.Default()
	}
	tl := New()

	for _, r := range results {
		if r.Data.Failed() || r.Data.Empty() {
			logger.Info("timeline.skip",
				"source_file", r.SourceFile,
				"reason", r.Data.Error,
				"message", fmt.Sprintf("Skipping %s due to previous parsing error or empty data.", r.SourceFile),
			)
			tl.skipped = append(tl.skipped, r.SourceFile)
			continue
		}
		for _, key := range r.Data.Malformed {
			logger.Warn("timeline.malformed",
				"source_file", r.SourceFile,
				"date", key,
				"message", fmt.Sprintf("Warning: Data for %s on %s is not a list and was skipped.", r.SourceFile, key),
			)
		}

		for _, d := range r.Data.Dates {
			date := normalize.DateKey(d.Date)
			for _, n := range d.Notes {
				note := n.Clone()
				note.Date = date
				tl.Append(entity.Event{
					Date:       date,
					RecordType: constants.ClinicalNote,
					SourceFile: r.SourceFile,
					Note:       &note,
				})
			}
			for _, l := range d.Labs {
				lab := l.Clone()
				lab.Date = date
				tl.Append(entity.Event{
					Date:       date,
					RecordType: constants.LabResult,
					SourceFile: r.SourceFile,
					Lab:        &lab,
				})
			}
		}
	}

	logger.Info("timeline.merge.ok",
		"documents", len(results),
		"skipped", len(tl.skipped),
		"dates", len(tl.order),
		"events", tl.Len(),
	)
	return tl
}
