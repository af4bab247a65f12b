package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/common"
	"github.com/joseph-ayodele/clinical-timeline/internal/entity"
	"github.com/joseph-ayodele/clinical-timeline/internal/ocr"
	"github.com/joseph-ayodele/clinical-timeline/internal/timeline"
	"github.com/joseph-ayodele/clinical-timeline/internal/vocab"
)

const (
	labText = "SINGAPORE GENERAL HOSPITAL\nPatient Results\n" +
		"20-Jun-2025 08:00\nGlucose\n5.4 mmol/L\n" +
		"20-Jun-2025 08:05\nSodium\n140 mmol/L\n" +
		"Page: 1"
	noteText = "DMO Consult [Charted Location: Ward 5]\n" +
		"Authored: 20-Jun-2025\n" +
		"Presenting Complaint: chest pain\n" +
		"Last Updated: 20-Jun-2025 10:00 by Tan Ah Kow (Doctor)"
	scannedNoteText = "DMO Correspondence Note [Charted Location: Clinic B]\n" +
		"Authored: 1-Jul-2025\n" +
		"Letter to GP regarding follow up\n" +
		"Last Updated: 1-Jul-2025 09:00 by Lim Bee Hoon (Doctor)"
)

// fakeSource serves page text by file name. Recognized copies (OCR_ prefix)
// read from the recognized map.
type fakeSource struct {
	text       map[string]string
	recognized map[string]string
	noFirst    map[string]bool
	panicIn    string
}

func (f *fakeSource) Pages(_ context.Context, path string) ([]ocr.Page, error) {
	if f.panicIn != "" && filepath.Dir(path) == f.panicIn && filepath.Base(path) == "panic.pdf" {
		panic("corrupt xref table")
	}
	page, err := f.page(path)
	if err != nil {
		return nil, err
	}
	return []ocr.Page{page}, nil
}

func (f *fakeSource) FirstPage(_ context.Context, path string) (ocr.Page, error) {
	if f.noFirst[filepath.Base(path)] {
		return ocr.Page{}, errors.New("cannot open")
	}
	return f.page(path)
}

func (f *fakeSource) page(path string) (ocr.Page, error) {
	name := filepath.Base(path)
	if orig, ok := strings.CutPrefix(name, constants.RecognizedPrefix); ok {
		return ocr.Page{Text: f.recognized[orig]}, nil
	}
	txt, ok := f.text[name]
	if !ok {
		return ocr.Page{}, errors.New("no such document")
	}
	return ocr.Page{Text: txt}, nil
}

type fakeRecognizer struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeRecognizer) Recognize(_ context.Context, in, out string) error {
	f.mu.Lock()
	f.calls = append(f.calls, filepath.Base(in))
	f.mu.Unlock()
	if f.fail[filepath.Base(in)] {
		return common.ErrRecognition
	}
	return os.WriteFile(out, []byte("%PDF recognized"), 0o644)
}

type fakeLedger struct {
	runs     []*entity.Run
	finished []*entity.Run
	docs     []entity.DocumentJob
	events   map[uuid.UUID]int
}

func (l *fakeLedger) StartRun(_ context.Context, run *entity.Run) error {
	l.runs = append(l.runs, run)
	return nil
}

func (l *fakeLedger) RecordDocument(_ context.Context, job *entity.DocumentJob) error {
	l.docs = append(l.docs, *job)
	return nil
}

func (l *fakeLedger) SaveTimeline(_ context.Context, runID uuid.UUID, tl *timeline.Timeline) error {
	if l.events == nil {
		l.events = map[uuid.UUID]int{}
	}
	l.events[runID] = tl.Len()
	return nil
}

func (l *fakeLedger) FinishRun(_ context.Context, run *entity.Run) error {
	cp := *run
	l.finished = append(l.finished, &cp)
	return nil
}

func setupBatch(t *testing.T) (string, *fakeSource, *fakeRecognizer) {
	t.Helper()
	in := t.TempDir()
	for _, name := range []string{"labs.pdf", "notes.pdf", "scan.pdf", "broken.pdf", "unreadable.pdf", "panic.pdf", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(in, name), []byte("%PDF "+name), 0o644))
	}
	src := &fakeSource{
		text: map[string]string{
			"labs.pdf":       labText,
			"notes.pdf":      noteText,
			"scan.pdf":       "",
			"broken.pdf":     "  ",
			"unreadable.pdf": noteText,
			"panic.pdf":      noteText,
		},
		recognized: map[string]string{"scan.pdf": scannedNoteText},
		noFirst:    map[string]bool{"unreadable.pdf": true},
	}
	rec := &fakeRecognizer{fail: map[string]bool{"broken.pdf": true}}
	return in, src, rec
}

func newTestProcessor(t *testing.T, in, out string, workers int, src *fakeSource, rec *fakeRecognizer, opts ...Option) *Processor {
	t.Helper()
	src.panicIn = out
	cfg := Config{InputDir: in, OutputDir: out, Workers: workers, MinTextChars: 100, SkipHidden: true, ExportXLSX: true}
	return NewProcessor(cfg, src, rec, vocab.MustDefault(), opts...)
}

func TestProcessor_Run(t *testing.T) {
	in, src, rec := setupBatch(t)
	out := filepath.Join(t.TempDir(), "processed")
	ledger := &fakeLedger{}

	var mu sync.Mutex
	progress := map[Stage]int{}
	p := newTestProcessor(t, in, out, 3, src, rec,
		WithLedger(ledger),
		WithProgress(func(stage Stage, done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if done == total {
				progress[stage]++
			}
		}),
	)

	sum, err := p.Run(context.Background())
	require.NoError(t, err)

	// convert
	assert.Equal(t, 6, sum.Convert.Scanned)
	assert.Equal(t, 4, sum.Convert.Copied)
	assert.Equal(t, 1, sum.Convert.Recognized)
	assert.Equal(t, 1, sum.Convert.Failed)
	assert.Equal(t, []string{"broken.pdf"}, sum.Convert.FailedNames())
	assert.ElementsMatch(t, []string{"scan.pdf", "broken.pdf"}, rec.calls)
	assert.FileExists(t, filepath.Join(out, "OCR_scan.pdf"))
	assert.FileExists(t, filepath.Join(out, "labs.pdf"))
	assert.NoFileExists(t, filepath.Join(out, "broken.pdf"))

	// parse
	assert.Equal(t, 5, sum.Parse.Documents)
	assert.Equal(t, 3, sum.Parse.ByClass[constants.ClinicalNote])
	assert.Equal(t, 1, sum.Parse.ByClass[constants.LabResult])
	assert.Equal(t, 1, sum.Parse.ByClass[constants.Unknown])
	assert.Equal(t, 1, sum.Parse.Failed)

	byName := map[string]entity.DocumentResult{}
	for _, r := range sum.Parse.Results {
		byName[r.SourceFile] = r
	}
	assert.Equal(t, constants.UnknownTypeError, byName["unreadable.pdf"].Data.Error)
	assert.Equal(t, constants.ParsingErrorPrefix+"corrupt xref table", byName["panic.pdf"].Data.Error)
	assert.Equal(t, constants.ClinicalNote, byName["scan.pdf"].FileType)
	assert.FileExists(t, filepath.Join(out, constants.StructuredDirName, "OCR_scan.pdf.json"))

	// build
	assert.Equal(t, 5, sum.Build.Documents)
	assert.Equal(t, 3, sum.Build.Events)
	assert.Equal(t, map[string]int{"20-Jun-2025": 2, "01-Jul-2025": 1}, sum.Build.PerDate)
	assert.Equal(t, []string{"panic.pdf", "unreadable.pdf"}, sum.Build.Skipped)
	assert.Empty(t, sum.Build.Rejected)
	assert.FileExists(t, sum.Build.XLSXPath)

	tl := sum.Build.Timeline
	assert.Equal(t, []string{"20-Jun-2025", "01-Jul-2025"}, tl.Dates())
	june := tl.Events("20-Jun-2025")
	require.Len(t, june, 2)
	assert.Equal(t, "labs.pdf", june[0].SourceFile)
	assert.Equal(t, "notes.pdf", june[1].SourceFile)
	assert.Equal(t, "scan.pdf", tl.Events("01-Jul-2025")[0].SourceFile)
	assert.Equal(t, "Lim Bee Hoon", tl.Events("01-Jul-2025")[0].Note.Doctor)

	data, err := os.ReadFile(p.TimelinePath())
	require.NoError(t, err)
	require.NoError(t, timeline.Validate(data))

	// ledger
	require.Len(t, ledger.runs, 1)
	require.Len(t, ledger.finished, 1)
	assert.Equal(t, sum.RunID, ledger.runs[0].ID)
	assert.Equal(t, constants.JobStatusDone, ledger.finished[0].Status)
	assert.Equal(t, 3, ledger.finished[0].Events)
	assert.Equal(t, 3, ledger.events[sum.RunID])
	assert.Len(t, ledger.docs, 11)
	for _, d := range ledger.docs {
		assert.Equal(t, sum.RunID, d.RunID)
	}

	assert.Equal(t, map[Stage]int{StageConvert: 1, StageParse: 1, StageBuild: 1}, progress)
}

func TestProcessor_SequentialMatchesParallel(t *testing.T) {
	in, src, rec := setupBatch(t)
	ctx := context.Background()

	outputs := make([][]byte, 0, 2)
	for _, workers := range []int{1, 8} {
		out := filepath.Join(t.TempDir(), "processed")
		p := newTestProcessor(t, in, out, workers, src, rec)
		_, err := p.Run(ctx)
		require.NoError(t, err)
		b, err := os.ReadFile(p.TimelinePath())
		require.NoError(t, err)
		outputs = append(outputs, b)
	}
	assert.Equal(t, string(outputs[0]), string(outputs[1]))
}

func TestProcessor_StagesRerunIndependently(t *testing.T) {
	in, src, rec := setupBatch(t)
	out := filepath.Join(t.TempDir(), "processed")
	p := newTestProcessor(t, in, out, 2, src, rec)
	ctx := context.Background()

	_, err := p.Convert(ctx)
	require.NoError(t, err)
	first, err := p.ExtractAndParse(ctx)
	require.NoError(t, err)
	p.Finish(ctx, nil)

	// a second parse replaces, not appends
	second, err := p.ExtractAndParse(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Documents, second.Documents)

	b1, err := p.BuildTimeline(ctx)
	require.NoError(t, err)
	b2, err := p.BuildTimeline(ctx)
	require.NoError(t, err)
	p.Finish(ctx, nil)
	assert.Equal(t, b1.Events, b2.Events)
	assert.Equal(t, 3, b2.Events)
}

func TestProcessor_ParseWithoutConvert(t *testing.T) {
	in, src, rec := setupBatch(t)
	p := newTestProcessor(t, in, filepath.Join(t.TempDir(), "missing"), 1, src, rec)
	_, err := p.ExtractAndParse(context.Background())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestProcessor_MissingInputDir(t *testing.T) {
	_, src, rec := setupBatch(t)
	p := newTestProcessor(t, filepath.Join(t.TempDir(), "nope"), t.TempDir(), 1, src, rec)
	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestProcessor_DefaultOutputDir(t *testing.T) {
	p := NewProcessor(Config{InputDir: "records"}, &fakeSource{}, &fakeRecognizer{}, vocab.MustDefault())
	assert.Equal(t, filepath.Join("records", constants.ProcessedDirName), p.OutputDir())
	assert.Equal(t, filepath.Join("records", constants.ProcessedDirName, constants.TimelineFileName), p.TimelinePath())
}
