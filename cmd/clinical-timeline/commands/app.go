package commands

import (
	"context"
	"os"

	"github.com/joseph-ayodele/clinical-timeline/cmd/clinical-timeline/ui"
	"github.com/joseph-ayodele/clinical-timeline/internal/common"
	"github.com/joseph-ayodele/clinical-timeline/internal/ocr"
	"github.com/joseph-ayodele/clinical-timeline/internal/pipeline"
	"github.com/joseph-ayodele/clinical-timeline/internal/repository"
	"github.com/joseph-ayodele/clinical-timeline/internal/vocab"
)

// newProcessor wires the batch processor from cfg. The returned cleanup
// closes the ledger, if one is configured.
func newProcessor(ctx context.Context) (*pipeline.Processor, func(), error) {
	v, err := vocab.Load(cfg.Pipeline.VocabPath)
	if err != nil {
		return nil, nil, err
	}

	src := ocr.NewFitzSource(logger)
	recognizer := ocr.NewOCRmyPDF(ocr.Config{
		OCRmyPDF: cfg.OCR.OCRmyPDF,
		Language: cfg.OCR.Language,
		PSM:      cfg.OCR.PSM,
		OEM:      cfg.OCR.OEM,
		Optimize: cfg.OCR.Optimize,
		Timeout:  cfg.OCR.Timeout,
	}, logger)

	popts := []pipeline.Option{pipeline.WithLogger(logger)}
	cleanup := func() {}

	store, err := openLedger(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store != nil {
		popts = append(popts, pipeline.WithLedger(store))
		cleanup = store.Close
	}

	if opts.progress {
		bars := ui.NewStageBars(os.Stderr)
		popts = append(popts, pipeline.WithProgress(func(stage pipeline.Stage, done, total int) {
			bars.Update(string(stage), done, total)
		}))
	}

	p := pipeline.NewProcessor(pipeline.ConfigFrom(cfg), src, recognizer, v, popts...)
	return p, cleanup, nil
}

// openLedger returns nil when no DSN is configured.
func openLedger(ctx context.Context) (*repository.Store, error) {
	if cfg.Database.DSN == "" {
		return nil, nil
	}
	store, err := repository.Open(ctx, repository.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return nil, common.WrapError(err, "open run ledger")
	}
	return store, nil
}
