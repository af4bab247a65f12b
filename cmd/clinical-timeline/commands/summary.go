package commands

import (
	"fmt"
	"sort"

	"github.com/joseph-ayodele/clinical-timeline/cmd/clinical-timeline/ui"
	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/pipeline"
)

func printConvert(p *pipeline.Processor, s pipeline.ConvertSummary) {
	ui.Section("Convert")
	ui.KeyValue("Output", p.OutputDir())
	ui.KeyValue("Scanned", s.Scanned)
	ui.KeyValue("Copied", s.Copied)
	ui.KeyValue("Recognized", s.Recognized)
	if s.Failed > 0 {
		ui.Warning("%d document(s) could not be made readable:\n%s", s.Failed, ui.FormatList(s.FailedNames()))
		return
	}
	ui.Success("%d readable document(s)", s.Copied+s.Recognized)
}

func printParse(p *pipeline.Processor, s pipeline.ParseSummary) {
	ui.Section("Parse")
	ui.KeyValue("Results", p.StructuredDir())
	ui.KeyValue("Documents", s.Documents)
	for _, class := range []constants.DocumentClass{constants.ClinicalNote, constants.LabResult, constants.Unknown} {
		ui.KeyValue(string(class), s.ByClass[class])
	}
	if s.Failed > 0 {
		var names []string
		for _, r := range s.Results {
			if r.Data.Failed() {
				names = append(names, fmt.Sprintf("%s: %s", r.SourceFile, r.Data.Error))
			}
		}
		ui.Warning("%d document(s) failed:\n%s", s.Failed, ui.FormatList(names))
		return
	}
	ui.Success("parsed %d document(s)", s.Documents)
}

func printBuild(s pipeline.BuildSummary) {
	ui.Section("Timeline")
	ui.KeyValue("Timeline", s.Path)
	if s.XLSXPath != "" {
		ui.KeyValue("Workbook", s.XLSXPath)
	}
	ui.KeyValue("Documents", s.Documents)
	ui.KeyValue("Dates", s.Dates)
	ui.KeyValue("Events", s.Events)

	if s.Timeline != nil && len(s.PerDate) > 0 {
		rows := make([][]string, 0, len(s.PerDate))
		for _, d := range s.Timeline.Dates() {
			rows = append(rows, []string{d, fmt.Sprint(s.PerDate[d])})
		}
		ui.Print("\n")
		ui.Table([]string{"DATE", "EVENTS"}, rows)
	}
	if len(s.Rejected) > 0 {
		lines := make([]string, 0, len(s.Rejected))
		for _, r := range s.Rejected {
			lines = append(lines, fmt.Sprintf("%s (%s)", r.SourceFile, r.Date))
		}
		ui.Warning("%d event(s) failed the timeline schema and were dropped:\n%s", len(s.Rejected), ui.FormatList(lines))
	}
	if len(s.Skipped) > 0 {
		skipped := append([]string(nil), s.Skipped...)
		sort.Strings(skipped)
		ui.Warning("%d document(s) left out:\n%s", len(skipped), ui.FormatList(skipped))
		return
	}
	ui.Success("%d event(s) across %d date(s)", s.Events, s.Dates)
}

func printRun(p *pipeline.Processor, s pipeline.RunSummary) {
	ui.KeyValue("Run", s.RunID)
	if s.Convert.Scanned > 0 || len(s.Convert.Results) > 0 {
		printConvert(p, s.Convert)
	}
	if s.Parse.ByClass != nil {
		printParse(p, s.Parse)
	}
	if s.Build.Path != "" {
		printBuild(s.Build)
	}
}
