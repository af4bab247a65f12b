// Package classify assigns a readable document to a document class from its
// first page.
package classify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/common"
	"github.com/joseph-ayodele/clinical-timeline/internal/ocr"
	"github.com/joseph-ayodele/clinical-timeline/internal/vocab"
)

type Classifier struct {
	src    ocr.TextSource
	rule   vocab.Classifier
	logger *slog.Logger
}

func New(src ocr.TextSource, v *vocab.Vocabulary, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{src: src, rule: v.Classifier, logger: logger}
}

// Classify is total: read failures yield constants.Unknown.
func (c *Classifier) Classify(ctx context.Context, path string) constants.DocumentClass {
	page, err := c.src.FirstPage(ctx, path)
	if err != nil {
		common.LoggerWith(ctx, c.logger).Error("classify.read.failed", "path", path, "error", err)
		return constants.Unknown
	}
	class := FromText(page.Text, c.rule)
	common.LoggerWith(ctx, c.logger).Debug("classify.ok", "path", path, "class", string(class))
	return class
}

// FromText looks for the lab keyword in the configured line of the first
// page. Blank lines count toward the index.
func FromText(firstPage string, rule vocab.Classifier) constants.DocumentClass {
	lines := strings.Split(strings.ToLower(firstPage), "\n")
	if rule.LineIndex < len(lines) && strings.Contains(lines[rule.LineIndex], rule.Keyword) {
		return constants.LabResult
	}
	return constants.ClinicalNote
}
