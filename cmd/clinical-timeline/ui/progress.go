// Package ui renders progress and summaries for the command line.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
)

// ProgressBar wraps a progressbar instance for deterministic progress display.
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a new progress bar with the given total and description.
func NewProgressBar(w io.Writer, total int64, description string) *ProgressBar {
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &ProgressBar{bar: bar}
}

func (p *ProgressBar) Set(current int64) {
	_ = p.bar.Set64(current)
}

func (p *ProgressBar) Finish() {
	_ = p.bar.Finish()
}

// StageBars keeps one bar per pipeline stage, created on the stage's first
// update.
type StageBars struct {
	mu   sync.Mutex
	w    io.Writer
	bars map[string]*ProgressBar
}

func NewStageBars(w io.Writer) *StageBars {
	if w == nil {
		w = os.Stderr
	}
	return &StageBars{w: w, bars: map[string]*ProgressBar{}}
}

func (s *StageBars) Update(stage string, done, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bar, ok := s.bars[stage]
	if !ok {
		bar = NewProgressBar(s.w, int64(total), fmt.Sprintf("%-8s", stage))
		s.bars[stage] = bar
	}
	bar.Set(int64(done))
	if done >= total {
		bar.Finish()
		delete(s.bars, stage)
	}
}

// Spinner wraps a spinner instance for indeterminate progress display.
type Spinner struct {
	spinner *spinner.Spinner
}

func NewSpinner(message string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr
	return &Spinner{spinner: s}
}

func (s *Spinner) Start() { s.spinner.Start() }

func (s *Spinner) Stop() { s.spinner.Stop() }

func (s *Spinner) UpdateMessage(message string) {
	s.spinner.Suffix = " " + message
}
