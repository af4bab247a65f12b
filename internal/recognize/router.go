// Package recognize decides whether a document already carries a usable text
// layer and routes it either straight to the output area or through the
// external recognition engine.
package recognize

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/common"
	"github.com/joseph-ayodele/clinical-timeline/internal/ocr"
	"github.com/joseph-ayodele/clinical-timeline/internal/utils"
)

// DefaultMinTextChars is the trimmed text length a document must exceed to
// count as searchable.
const DefaultMinTextChars = 100

// Inspector checks the length of a document's text layer.
type Inspector struct {
	src      ocr.TextSource
	minChars int
}

func NewInspector(src ocr.TextSource, minChars int) *Inspector {
	if minChars < 0 {
		minChars = DefaultMinTextChars
	}
	return &Inspector{src: src, minChars: minChars}
}

// Searchable reports whether the concatenated, trimmed text of all pages is
// longer than the threshold.
func (p *Inspector) Searchable(ctx context.Context, path string) (bool, error) {
	pages, err := p.src.Pages(ctx, path)
	if err != nil {
		return false, err
	}
	text := strings.TrimSpace(ocr.JoinText(pages, ""))
	return utf8.RuneCountInString(text) > p.minChars, nil
}

// Result describes one routed document. On failure Path falls back to Source.
type Result struct {
	Source     string
	Name       string
	Path       string
	OK         bool
	Recognized bool
	Err        string
}

// Router writes one readable document per input into OutDir.
type Router struct {
	inspector  *Inspector
	recognizer ocr.Recognizer
	outDir     string
	logger     *slog.Logger
}

func NewRouter(inspector *Inspector, recognizer ocr.Recognizer, outDir string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{inspector: inspector, recognizer: recognizer, outDir: outDir, logger: logger}
}

// OutDir is where readable documents are written.
func (r *Router) OutDir() string { return r.outDir }

// Route never returns an error: every failure is logged and reported through
// Result.OK so sibling documents keep going.
func (r *Router) Route(ctx context.Context, path string) Result {
	start := time.Now()
	name := filepath.Base(path)
	res := Result{Source: path, Name: name, Path: path}
	logger := common.LoggerWith(ctx, r.logger).With("source_file", name)

	fail := func(event string, err error) Result {
		logger.Error(event, "path", path, "error", err)
		res.Err = err.Error()
		return res
	}

	if _, err := os.Stat(path); err != nil {
		return fail("router.missing", err)
	}
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return fail("router.mkdir.failed", err)
	}

	searchable, err := r.inspector.Searchable(ctx, path)
	if err != nil {
		logger.Warn("router.inspect.failed", "path", path, "error", err)
	}

	if searchable {
		dst := filepath.Join(r.outDir, name)
		if err := utils.CopyFile(path, dst); err != nil {
			return fail("router.copy.failed", err)
		}
		res.Path, res.OK = dst, true
		logger.Info("router.copy.ok", "dest", dst, "duration_ms", time.Since(start).Milliseconds())
		return res
	}

	dst := filepath.Join(r.outDir, constants.RecognizedPrefix+name)
	if err := r.recognizer.Recognize(ctx, path, dst); err != nil {
		return fail("router.recognize.failed", err)
	}
	res.Path, res.OK, res.Recognized = dst, true, true
	logger.Info("router.recognize.ok", "dest", dst, "duration_ms", time.Since(start).Milliseconds())
	return res
}
