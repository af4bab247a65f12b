// Package pipeline runs a batch through its three stages: convert inputs to
// readable documents, extract and parse each readable document, and build the
// combined timeline. Each stage reads only what the previous stage wrote to
// the output directory, so any stage can be re-run on its own.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/async"
	"github.com/joseph-ayodele/clinical-timeline/internal/classify"
	"github.com/joseph-ayodele/clinical-timeline/internal/common"
	"github.com/joseph-ayodele/clinical-timeline/internal/entity"
	"github.com/joseph-ayodele/clinical-timeline/internal/ocr"
	"github.com/joseph-ayodele/clinical-timeline/internal/timeline"
	"github.com/joseph-ayodele/clinical-timeline/internal/vocab"
)

// Stage names, used in logs, progress callbacks and the ledger.
type Stage string

const (
	StageConvert Stage = "convert"
	StageParse   Stage = "parse"
	StageBuild   Stage = "build"
)

// Ledger records runs and their documents. Implemented by repository.Store.
type Ledger interface {
	StartRun(ctx context.Context, run *entity.Run) error
	RecordDocument(ctx context.Context, job *entity.DocumentJob) error
	SaveTimeline(ctx context.Context, runID uuid.UUID, tl *timeline.Timeline) error
	FinishRun(ctx context.Context, run *entity.Run) error
}

// Config holds the batch settings.
type Config struct {
	InputDir     string
	OutputDir    string // defaults to <InputDir>/processed_pdfs
	Workers      int    // 1 runs every stage sequentially
	MinTextChars int
	SkipHidden   bool
	ExportXLSX   bool
}

// ConfigFrom maps the application configuration onto batch settings.
func ConfigFrom(c *common.Config) Config {
	return Config{
		InputDir:     c.Pipeline.InputDir,
		OutputDir:    c.ResolvedOutputDir(),
		Workers:      c.EffectiveWorkers(),
		MinTextChars: c.Pipeline.MinTextChars,
		SkipHidden:   true,
		ExportXLSX:   c.Pipeline.ExportXLSX,
	}
}

// ProgressFunc is told how many documents of a stage have finished.
type ProgressFunc func(stage Stage, done, total int)

type Option func(*Processor)

// WithLedger records every stage in l.
func WithLedger(l Ledger) Option {
	return func(p *Processor) { p.ledger = l }
}

func WithProgress(fn ProgressFunc) Option {
	return func(p *Processor) { p.progress = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Processor is not safe for concurrent use; run one batch at a time.
type Processor struct {
	cfg        Config
	src        ocr.TextSource
	recognizer ocr.Recognizer
	vocab      *vocab.Vocabulary
	classifier *classify.Classifier
	ledger     Ledger
	progress   ProgressFunc
	logger     *slog.Logger

	run *entity.Run
}

func NewProcessor(cfg Config, src ocr.TextSource, recognizer ocr.Recognizer, v *vocab.Vocabulary, opts ...Option) *Processor {
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(cfg.InputDir, constants.ProcessedDirName)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	p := &Processor{
		cfg:        cfg,
		src:        src,
		recognizer: recognizer,
		vocab:      v,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	p.classifier = classify.New(src, v, p.logger)
	return p
}

// OutputDir is where readable documents, structured results and the
// timeline are written.
func (p *Processor) OutputDir() string { return p.cfg.OutputDir }

// StructuredDir holds one structured result per readable document.
func (p *Processor) StructuredDir() string {
	return filepath.Join(p.cfg.OutputDir, constants.StructuredDirName)
}

// TimelinePath is the combined timeline artifact.
func (p *Processor) TimelinePath() string {
	return filepath.Join(p.cfg.OutputDir, constants.TimelineFileName)
}

// RunSummary aggregates the three stage summaries.
type RunSummary struct {
	RunID   uuid.UUID
	Convert ConvertSummary
	Parse   ParseSummary
	Build   BuildSummary
}

// Run executes convert, extract-and-parse and build-timeline in order.
// Document failures never fail the run; only setup errors (unreadable input
// directory, unwritable output) and cancellation do.
func (p *Processor) Run(ctx context.Context) (RunSummary, error) {
	var sum RunSummary
	ctx = p.Begin(ctx)
	sum.RunID = p.run.ID

	var err error
	defer func() { p.Finish(ctx, err) }()

	if sum.Convert, err = p.Convert(ctx); err != nil {
		return sum, err
	}
	if sum.Parse, err = p.ExtractAndParse(ctx); err != nil {
		return sum, err
	}
	sum.Build, err = p.BuildTimeline(ctx)
	return sum, err
}

// Begin starts a ledger run and tags ctx with its id. Stages call it
// implicitly; call it directly to group several stages under one run.
func (p *Processor) Begin(ctx context.Context) context.Context {
	if p.run == nil {
		p.run = &entity.Run{
			ID:        uuid.New(),
			InputDir:  p.cfg.InputDir,
			OutputDir: p.cfg.OutputDir,
			StartedAt: time.Now().UTC(),
			Status:    constants.JobStatusRunning,
		}
		if p.ledger != nil {
			if err := p.ledger.StartRun(ctx, p.run); err != nil {
				p.logger.Warn("pipeline.ledger.start.failed", "run_id", p.run.ID, "error", err)
			}
		}
		p.logger.Info("pipeline.run.start", "run_id", p.run.ID, "input_dir", p.cfg.InputDir, "output_dir", p.cfg.OutputDir, "workers", p.cfg.Workers)
	}
	if common.RunIDFromContext(ctx) == "" {
		ctx = common.WithRunID(ctx, p.run.ID.String())
	}
	return ctx
}

// Finish closes the current run. The next stage starts a new one.
func (p *Processor) Finish(ctx context.Context, runErr error) {
	if p.run == nil {
		return
	}
	now := time.Now().UTC()
	p.run.FinishedAt = &now
	p.run.Status = constants.JobStatusDone
	if runErr != nil {
		p.run.Status = constants.JobStatusFailed
	}
	if p.ledger != nil {
		if err := p.ledger.FinishRun(context.WithoutCancel(ctx), p.run); err != nil {
			p.logger.Warn("pipeline.ledger.finish.failed", "run_id", p.run.ID, "error", err)
		}
	}
	p.logger.Info("pipeline.run.finish",
		"run_id", p.run.ID,
		"status", p.run.Status,
		"documents", p.run.Documents,
		"failed", p.run.Failed,
		"events", p.run.Events,
		"duration_ms", now.Sub(p.run.StartedAt).Milliseconds(),
	)
	p.run = nil
}

func (p *Processor) poolOptions(stage Stage) []async.Option {
	opts := []async.Option{async.WithWorkers(p.cfg.Workers)}
	if p.progress != nil {
		opts = append(opts, async.WithProgress(func(done, total int) {
			p.progress(stage, done, total)
		}))
	}
	return opts
}

func (p *Processor) record(ctx context.Context, job *entity.DocumentJob) {
	if p.ledger == nil {
		return
	}
	job.RunID = p.run.ID
	if err := p.ledger.RecordDocument(ctx, job); err != nil {
		common.LoggerWith(ctx, p.logger).Warn("pipeline.ledger.record.failed", "source_file", job.SourceFile, "error", err)
	}
}
