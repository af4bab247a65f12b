package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/common"
	"github.com/joseph-ayodele/clinical-timeline/internal/export"
	"github.com/joseph-ayodele/clinical-timeline/internal/timeline"
	"github.com/joseph-ayodele/clinical-timeline/internal/utils"
)

// BuildSummary reports the build-timeline stage.
type BuildSummary struct {
	Path      string
	XLSXPath  string
	Documents int
	Dates     int
	Events    int
	PerDate   map[string]int
	Skipped   []string
	Rejected  []timeline.Rejected
	Timeline  *timeline.Timeline
}

// BuildTimeline merges the persisted structured results, in file-name order,
// into the combined timeline and writes it (and the optional XLSX export).
func (p *Processor) BuildTimeline(ctx context.Context) (BuildSummary, error) {
	var sum BuildSummary
	ctx = p.Begin(ctx)
	logger := common.LoggerWith(ctx, p.logger)
	p.progressStep(StageBuild, 0)

	results, err := timeline.LoadResults(p.StructuredDir(), p.logger)
	if err != nil {
		return sum, fmt.Errorf("load structured results: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}

	tl := timeline.Merge(results, p.logger)
	sum.Rejected = tl.DropInvalid(logger)
	sum.Timeline = tl
	sum.Documents = len(results)
	sum.Skipped = tl.Skipped()
	sum.PerDate = map[string]int{}
	for _, d := range tl.Dates() {
		sum.PerDate[d] = len(tl.Events(d))
	}
	sum.Dates = len(sum.PerDate)
	sum.Events = tl.Len()

	sum.Path = p.TimelinePath()
	if err := timeline.WriteFile(sum.Path, tl); err != nil {
		return sum, fmt.Errorf("write timeline: %w", err)
	}

	if p.cfg.ExportXLSX {
		b, err := export.TimelineXLSX(tl)
		if err != nil {
			return sum, fmt.Errorf("export xlsx: %w", err)
		}
		sum.XLSXPath = filepath.Join(p.cfg.OutputDir, constants.TimelineXLSXName)
		if err := utils.WriteFileAtomic(sum.XLSXPath, b, 0o644); err != nil {
			return sum, fmt.Errorf("write xlsx: %w", err)
		}
	}

	if p.ledger != nil {
		if err := p.ledger.SaveTimeline(ctx, p.run.ID, tl); err != nil {
			logger.Warn("pipeline.ledger.timeline.failed", "error", err)
		}
	}
	p.run.Events = sum.Events
	p.progressStep(StageBuild, 1)

	logger.Info("pipeline.build.ok",
		"path", sum.Path,
		"documents", sum.Documents,
		"dates", sum.Dates,
		"events", sum.Events,
		"skipped", len(sum.Skipped),
		"rejected", len(sum.Rejected),
	)
	return sum, nil
}

func (p *Processor) progressStep(stage Stage, done int) {
	if p.progress != nil {
		p.progress(stage, done, 1)
	}
}
