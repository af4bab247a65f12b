package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/async"
	"github.com/joseph-ayodele/clinical-timeline/internal/common"
	"github.com/joseph-ayodele/clinical-timeline/internal/entity"
	"github.com/joseph-ayodele/clinical-timeline/internal/ingest"
	"github.com/joseph-ayodele/clinical-timeline/internal/recognize"
)

// ConvertSummary reports the convert stage.
type ConvertSummary struct {
	Scanned    int
	Copied     int
	Recognized int
	Failed     int
	Results    []recognize.Result
}

// FailedNames lists the inputs that produced no readable document.
func (s ConvertSummary) FailedNames() []string {
	var out []string
	for _, r := range s.Results {
		if !r.OK {
			out = append(out, r.Name)
		}
	}
	return out
}

// Convert writes one readable document per input PDF into the output
// directory, copying searchable inputs and recognizing the rest.
func (p *Processor) Convert(ctx context.Context) (ConvertSummary, error) {
	var sum ConvertSummary
	ctx = p.Begin(ctx)
	logger := common.LoggerWith(ctx, p.logger)

	docs, stats, err := ingest.ScanDirectory(p.cfg.InputDir, p.cfg.SkipHidden)
	if err != nil {
		return sum, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return sum, fmt.Errorf("create output dir: %w", err)
	}
	sum.Scanned = int(stats.Matched)
	logger.Info("pipeline.convert.start", "documents", len(docs))

	router := recognize.NewRouter(
		recognize.NewInspector(p.src, p.cfg.MinTextChars),
		p.recognizer, p.cfg.OutputDir, p.logger,
	)
	started := time.Now().UTC()
	results, err := async.Map(ctx, docs, func(ctx context.Context, _ int, d ingest.Document) recognize.Result {
		return router.Route(common.WithSourceFile(ctx, d.Name), d.Path)
	}, p.poolOptions(StageConvert)...)
	if err != nil {
		return sum, err
	}
	sum.Results = results

	for i, r := range results {
		job := &entity.DocumentJob{
			Stage:        string(StageConvert),
			SourceFile:   r.Name,
			ReadablePath: r.Path,
			ContentHash:  docs[i].HashHex,
			FileType:     constants.Unknown,
			Recognized:   r.Recognized,
			StartedAt:    started,
		}
		switch {
		case !r.OK:
			sum.Failed++
			job.Status = constants.JobStatusFailed
			job.ErrorMessage = &results[i].Err
		case r.Recognized:
			sum.Recognized++
			job.Status = constants.JobStatusRecognized
		default:
			sum.Copied++
			job.Status = constants.JobStatusConverted
		}
		now := time.Now().UTC()
		job.FinishedAt = &now
		p.record(ctx, job)
	}

	p.run.Documents = sum.Scanned
	p.run.Failed = sum.Failed
	logger.Info("pipeline.convert.ok",
		"scanned", sum.Scanned,
		"copied", sum.Copied,
		"recognized", sum.Recognized,
		"failed", sum.Failed,
	)
	return sum, nil
}
