package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/ocr"
	"github.com/joseph-ayodele/clinical-timeline/internal/vocab"
)

type stubSource struct {
	first ocr.Page
	err   error
}

func (s stubSource) Pages(context.Context, string) ([]ocr.Page, error) {
	return []ocr.Page{s.first}, s.err
}

func (s stubSource) FirstPage(context.Context, string) (ocr.Page, error) {
	return s.first, s.err
}

func TestFromText(t *testing.T) {
	rule := vocab.MustDefault().Classifier

	tests := []struct {
		name string
		text string
		want constants.DocumentClass
	}{
		{"lab keyword on second line", "National Cancer Centre\nPATIENT RESULTS - Cumulative\n...", constants.LabResult},
		{"keyword on first line only", "Patient Results\nsomething else", constants.ClinicalNote},
		{"keyword on third line", "a\nb\npatient results", constants.ClinicalNote},
		{"note", "DMO Consult [Charted Location: Ward 5]\nAuthored: 1-Jan-2024", constants.ClinicalNote},
		{"single line", "patient results", constants.ClinicalNote},
		{"empty", "", constants.ClinicalNote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromText(tt.text, rule))
		})
	}
}

func TestClassify(t *testing.T) {
	v := vocab.MustDefault()
	ctx := context.Background()

	lab := New(stubSource{first: ocr.Page{Text: "SGH\nPatient Results\n"}}, v, nil)
	assert.Equal(t, constants.LabResult, lab.Classify(ctx, "lab.pdf"))

	broken := New(stubSource{err: errors.New("encrypted")}, v, nil)
	assert.Equal(t, constants.Unknown, broken.Classify(ctx, "locked.pdf"))
}
