package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Page is one page of recovered text.
type Page struct {
	Index int
	Text  string
}

// TextSource reads the text layer of a machine-readable document.
type TextSource interface {
	Pages(ctx context.Context, path string) ([]Page, error)
	FirstPage(ctx context.Context, path string) (Page, error)
}

// JoinText concatenates page text in page order with sep between pages.
func JoinText(pages []Page, sep string) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, sep)
}

// FitzSource reads PDF text layers through MuPDF.
type FitzSource struct {
	logger *slog.Logger
}

func NewFitzSource(logger *slog.Logger) *FitzSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FitzSource{logger: logger}
}

func (s *FitzSource) Pages(ctx context.Context, path string) ([]Page, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %q: %w", path, err)
	}
	defer s.close(doc, path)

	n := doc.NumPage()
	pages := make([]Page, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		txt, err := doc.Text(i)
		if err != nil {
			return nil, fmt.Errorf("read page %d of %q: %w", i+1, path, err)
		}
		pages = append(pages, Page{Index: i, Text: NormalizePage(txt)})
	}
	s.logger.Debug("ocr.text_layer.ok", "path", path, "pages", n)
	return pages, nil
}

func (s *FitzSource) FirstPage(ctx context.Context, path string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	doc, err := fitz.New(path)
	if err != nil {
		return Page{}, fmt.Errorf("open pdf %q: %w", path, err)
	}
	defer s.close(doc, path)

	if doc.NumPage() == 0 {
		return Page{}, fmt.Errorf("pdf %q has no pages", path)
	}
	txt, err := doc.Text(0)
	if err != nil {
		return Page{}, fmt.Errorf("read first page of %q: %w", path, err)
	}
	return Page{Index: 0, Text: NormalizePage(txt)}, nil
}

func (s *FitzSource) close(doc *fitz.Document, path string) {
	if err := doc.Close(); err != nil {
		s.logger.Warn("ocr.close.failed", "path", path, "error", err)
	}
}
