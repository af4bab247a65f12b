// Package parse turns the pages of one readable document into structured
// data grouped by date. There is one parser per document class; both are
// stateless after construction and safe for concurrent use.
package parse

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/common"
	"github.com/joseph-ayodele/clinical-timeline/internal/entity"
	"github.com/joseph-ayodele/clinical-timeline/internal/normalize"
	"github.com/joseph-ayodele/clinical-timeline/internal/ocr"
	"github.com/joseph-ayodele/clinical-timeline/internal/segment"
	"github.com/joseph-ayodele/clinical-timeline/internal/vocab"
)

// Parser builds the structured data of one document.
type Parser interface {
	Parse(ctx context.Context, pages []ocr.Page) (entity.StructuredData, error)
}

// ForClass returns the parser for class, or false for classes that are not
// parsed.
func ForClass(class constants.DocumentClass, v *vocab.Vocabulary, logger *slog.Logger) (Parser, bool) {
	switch class {
	case constants.ClinicalNote:
		return NewNoteParser(v, logger), true
	case constants.LabResult:
		return NewLabParser(v, logger), true
	default:
		return nil, false
	}
}

// NoteParser handles clinical-note documents.
type NoteParser struct {
	notes  *vocab.Notes
	seg    *segment.NoteSegmenter
	norm   *normalize.Normalizer
	logger *slog.Logger
}

func NewNoteParser(v *vocab.Vocabulary, logger *slog.Logger) *NoteParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteParser{
		notes:  &v.Notes,
		seg:    segment.NewNoteSegmenter(v),
		norm:   normalize.New(v),
		logger: logger,
	}
}

// Parse segments the cleaned text into notes and files each enriched note
// under its authored date.
func (p *NoteParser) Parse(ctx context.Context, pages []ocr.Page) (entity.StructuredData, error) {
	text := CleanNotePages(pages, p.notes)
	records, stats := p.seg.Segment(text)

	var out entity.StructuredData
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return entity.StructuredData{}, err
		}
		note := p.norm.Note(r.Body)
		out.AddNote(note.Date, note)
	}

	common.LoggerWith(ctx, p.logger).Debug("parse.notes.ok",
		"pages", len(pages),
		"lines", stats.Lines,
		"junk_lines", stats.Junk,
		"headers", stats.Headers,
		"terminated", stats.Terminated,
		"preempted", stats.Preempted,
		"trailing", stats.Trailing,
		"dates", len(out.Dates),
	)
	return out, nil
}

// LabParser handles lab-report documents.
type LabParser struct {
	labs   *vocab.Labs
	seg    *segment.LabSegmenter
	norm   *normalize.Normalizer
	logger *slog.Logger
}

func NewLabParser(v *vocab.Vocabulary, logger *slog.Logger) *LabParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &LabParser{
		labs:   &v.Labs,
		seg:    segment.NewLabSegmenter(v),
		norm:   normalize.New(v),
		logger: logger,
	}
}

// Parse splits the cleaned text at stamps and collects every test of a date
// into one record. A test that reappears later on the same date, after a
// different test, is joined to the first occurrence with the merge delimiter.
func (p *LabParser) Parse(ctx context.Context, pages []ocr.Page) (entity.StructuredData, error) {
	text := CleanLabPages(pages, p.labs)
	records := p.seg.Segment(text)

	var out entity.StructuredData
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return entity.StructuredData{}, err
		}
		lab := out.Lab(normalize.DateKey(r.Date))
		lab.Tests = lab.Tests.AppendSep(r.Name, p.norm.LabDetails(r.Parts), p.labs.MergeDelimiter)
	}

	common.LoggerWith(ctx, p.logger).Debug("parse.labs.ok",
		"pages", len(pages),
		"tests", len(records),
		"dates", len(out.Dates),
	)
	return out, nil
}
