package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/async"
	"github.com/joseph-ayodele/clinical-timeline/internal/common"
	"github.com/joseph-ayodele/clinical-timeline/internal/entity"
	"github.com/joseph-ayodele/clinical-timeline/internal/ingest"
	"github.com/joseph-ayodele/clinical-timeline/internal/parse"
	"github.com/joseph-ayodele/clinical-timeline/internal/timeline"
)

// ParseSummary reports the extract-and-parse stage.
type ParseSummary struct {
	Documents int
	ByClass   map[constants.DocumentClass]int
	Failed    int
	Results   []entity.DocumentResult
}

// ExtractAndParse classifies and parses every readable document in the
// output directory and persists one structured result per document,
// replacing the results of earlier runs.
func (p *Processor) ExtractAndParse(ctx context.Context) (ParseSummary, error) {
	sum := ParseSummary{ByClass: map[constants.DocumentClass]int{}}
	ctx = p.Begin(ctx)
	logger := common.LoggerWith(ctx, p.logger)

	docs, _, err := ingest.ScanDirectory(p.cfg.OutputDir, p.cfg.SkipHidden)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sum, fmt.Errorf("%w: output dir %q, run convert first", common.ErrNotFound, p.cfg.OutputDir)
		}
		return sum, err
	}
	dir := p.StructuredDir()
	if err := timeline.ClearResults(dir); err != nil {
		return sum, fmt.Errorf("clear structured results: %w", err)
	}
	logger.Info("pipeline.parse.start", "documents", len(docs))

	started := time.Now().UTC()
	results, err := async.Map(ctx, docs, func(ctx context.Context, _ int, d ingest.Document) entity.DocumentResult {
		return p.parseDocument(common.WithSourceFile(ctx, d.Name), d)
	}, p.poolOptions(StageParse)...)
	if err != nil {
		return sum, err
	}

	for i, r := range results {
		if _, err := timeline.SaveResult(dir, docs[i].Name, r); err != nil {
			return sum, fmt.Errorf("save structured result for %s: %w", docs[i].Name, err)
		}
		sum.ByClass[r.FileType]++
		if r.Data.Failed() && r.FileType.IsParsed() {
			sum.Failed++
		}
		p.record(ctx, documentJob(docs[i], r, started))
	}
	sum.Documents = len(results)
	sum.Results = results

	p.run.Documents = sum.Documents
	p.run.Failed = sum.Failed
	logger.Info("pipeline.parse.ok",
		"documents", sum.Documents,
		"labs", sum.ByClass[constants.LabResult],
		"notes", sum.ByClass[constants.ClinicalNote],
		"unknown", sum.ByClass[constants.Unknown],
		"failed", sum.Failed,
	)
	return sum, nil
}

// parseDocument never fails: read and parse errors, and panics inside a
// parser, become an error-sentinel result.
func (p *Processor) parseDocument(ctx context.Context, d ingest.Document) (res entity.DocumentResult) {
	logger := common.LoggerWith(ctx, p.logger)
	res.SourceFile = constants.OriginalName(d.Name)
	res.FileType = constants.Unknown

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("pipeline.parse.panic", "path", d.Path, "panic", rec)
			res.Data = entity.Failure(fmt.Sprintf("%s%v", constants.ParsingErrorPrefix, rec))
		}
	}()

	res.FileType = p.classifier.Classify(ctx, d.Path)
	parser, ok := parse.ForClass(res.FileType, p.vocab, p.logger)
	if !ok {
		logger.Warn("pipeline.parse.skipped", "path", d.Path, "file_type", string(res.FileType))
		res.Data = entity.Failure(constants.UnknownTypeError)
		return res
	}

	start := time.Now()
	pages, err := p.src.Pages(ctx, d.Path)
	if err == nil {
		res.Data, err = parser.Parse(ctx, pages)
	}
	if err != nil {
		logger.Error("pipeline.parse.failed", "path", d.Path, "file_type", string(res.FileType), "error", err)
		res.Data = entity.Failure(constants.ParsingErrorPrefix + err.Error())
		return res
	}
	logger.Info("pipeline.parse.document.ok",
		"file_type", string(res.FileType),
		"dates", len(res.Data.Dates),
		"records", res.Data.Records(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}

func documentJob(d ingest.Document, r entity.DocumentResult, started time.Time) *entity.DocumentJob {
	now := time.Now().UTC()
	job := &entity.DocumentJob{
		Stage:        string(StageParse),
		SourceFile:   r.SourceFile,
		ReadablePath: d.Path,
		ContentHash:  d.HashHex,
		FileType:     r.FileType,
		Recognized:   d.Name != r.SourceFile,
		Status:       constants.JobStatusParsed,
		Dates:        len(r.Data.Dates),
		Records:      r.Data.Records(),
		StartedAt:    started,
		FinishedAt:   &now,
	}
	switch {
	case !r.FileType.IsParsed():
		job.Status = constants.JobStatusSkipped
	case r.Data.Failed():
		job.Status = constants.JobStatusFailed
		msg := r.Data.Error
		job.ErrorMessage = &msg
	}
	return job
}
