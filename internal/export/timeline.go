// Package export renders a timeline as an XLSX workbook.
package export

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/entity"
	"github.com/joseph-ayodele/clinical-timeline/internal/timeline"
)

const (
	TimelineSheet = "Timeline"
	SummarySheet  = "Summary"

	// Excel rejects cell text longer than this.
	maxCellChars = 32767
)

var timelineHeaders = []string{
	"Date",
	"Record Type",
	"Source File",
	"Section Type",
	"Doctor",
	"Subsection / Test",
	"Text",
	"Allergies",
}

// TimelineXLSX returns a workbook with one row per note subsection or lab
// test, in timeline order, plus a per-date summary sheet.
func TimelineXLSX(tl *timeline.Timeline) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", TimelineSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, err
	}
	if index, err := f.GetSheetIndex(TimelineSheet); err == nil {
		f.SetActiveSheet(index)
	}

	if err := writeRow(f, TimelineSheet, 1, toAny(timelineHeaders)); err != nil {
		return nil, err
	}
	row := 2
	for _, date := range tl.Dates() {
		for _, ev := range tl.Events(date) {
			for _, cells := range eventRows(date, ev) {
				if err := writeRow(f, TimelineSheet, row, cells); err != nil {
					return nil, err
				}
				row++
			}
		}
	}

	if err := writeRow(f, SummarySheet, 1, []any{"Date", "Events"}); err != nil {
		return nil, err
	}
	for i, date := range tl.Dates() {
		if err := writeRow(f, SummarySheet, i+2, []any{date, len(tl.Events(date))}); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(TimelineSheet, "A", "B", 16) // date, type
	_ = f.SetColWidth(TimelineSheet, "C", "C", 32) // source
	_ = f.SetColWidth(TimelineSheet, "D", "F", 24)
	_ = f.SetColWidth(TimelineSheet, "G", "G", 80) // text
	_ = f.SetColWidth(TimelineSheet, "H", "H", 24)
	_ = f.SetColWidth(SummarySheet, "A", "B", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func eventRows(date string, ev entity.Event) [][]any {
	base := []any{date, string(ev.RecordType), ev.SourceFile}
	var rows [][]any
	switch {
	case ev.Lab != nil:
		for _, t := range ev.Lab.Tests {
			rows = append(rows, append(clone(base), "", "", t.Label, truncate(t.Text), ""))
		}
	case ev.Note != nil:
		n := ev.Note
		allergies := ""
		if n.Allergies != nil {
			allergies = *n.Allergies
		}
		for _, s := range n.Text {
			rows = append(rows, append(clone(base), n.SectionType, n.Doctor, s.Label, truncate(s.Text), allergies))
		}
		if len(n.Text) == 0 {
			rows = append(rows, append(clone(base), n.SectionType, n.Doctor, constants.GeneralSubsection, "", allergies))
		}
	}
	return rows
}

func writeRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxCellChars {
		return s
	}
	r := []rune(s)
	return string(r[:maxCellChars-1]) + "…"
}

func clone(in []any) []any {
	return append(make([]any, 0, len(in)+5), in...)
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
