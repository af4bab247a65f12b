package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/clinical-timeline/internal/common"
)

// Recognizer turns a scanned document into one with a text layer.
type Recognizer interface {
	Recognize(ctx context.Context, in, out string) error
}

type Config struct {
	OCRmyPDF string        // binary name or absolute path; if empty -> "ocrmypdf"
	Language string        // default "eng"
	PSM      int           // tesseract page segmentation mode, default 6 (uniform block of text)
	OEM      int           // tesseract engine mode, default 3
	Optimize int           // ocrmypdf optimization level, default 1
	Timeout  time.Duration // per document; 0 = no limit
}

// OCRmyPDF shells out to ocrmypdf. Pages that already carry text are skipped.
type OCRmyPDF struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewOCRmyPDF(cfg Config, logger *slog.Logger) *OCRmyPDF {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OCRmyPDF == "" {
		cfg.OCRmyPDF = "ocrmypdf"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.OEM <= 0 {
		cfg.OEM = 3
	}
	if cfg.Optimize < 0 {
		cfg.Optimize = 1
	}
	return &OCRmyPDF{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner.
func (o *OCRmyPDF) WithRunner(r Runner) *OCRmyPDF {
	o.runner = r
	return o
}

func (o *OCRmyPDF) Args(in, out string) []string {
	return []string{
		"--skip-text",
		"--tesseract-pagesegmode", strconv.Itoa(o.cfg.PSM),
		"--tesseract-oem", strconv.Itoa(o.cfg.OEM),
		"--optimize", strconv.Itoa(o.cfg.Optimize),
		"-l", o.cfg.Language,
		"--quiet",
		in, out,
	}
}

func (o *OCRmyPDF) Recognize(ctx context.Context, in, out string) error {
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	_, stderr, err := o.runner.Run(ctx, o.cfg.OCRmyPDF, o.Args(in, out)...)
	if err != nil {
		msg := strings.TrimSpace(tail(string(stderr), 512))
		if msg == "" {
			return fmt.Errorf("%w: %s: %v", common.ErrRecognition, o.cfg.OCRmyPDF, err)
		}
		return fmt.Errorf("%w: %s: %v: %s", common.ErrRecognition, o.cfg.OCRmyPDF, err, msg)
	}
	o.logger.Debug("ocr.recognize.ok", "in", in, "out", out, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
