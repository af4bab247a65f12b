package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

var out io.Writer = os.Stdout

// Init disables color when noColor is set.
func Init(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

// SetOutput redirects summaries, mainly for tests.
func SetOutput(w io.Writer) { out = w }

var (
	successMark = color.New(color.FgGreen).SprintFunc()
	warnMark    = color.New(color.FgYellow).SprintFunc()
	errorMark   = color.New(color.FgRed).SprintFunc()
	bold        = color.New(color.Bold).SprintFunc()
)

// Table displays data in a formatted table.
func Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))

	separator := make([]string, len(headers))
	for i := range separator {
		separator[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(w, strings.Join(separator, "\t"))

	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

// Section displays a section header.
func Section(title string) {
	fmt.Fprintf(out, "\n%s\n%s\n", bold(title), strings.Repeat("=", len(title)))
}

func KeyValue(key string, value any) {
	fmt.Fprintf(out, "  %-18s %v\n", key+":", value)
}

func Success(format string, args ...any) {
	fmt.Fprintf(out, "%s %s\n", successMark("✓"), fmt.Sprintf(format, args...))
}

func Warning(format string, args ...any) {
	fmt.Fprintf(out, "%s %s\n", warnMark("⚠"), fmt.Sprintf(format, args...))
}

func Error(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorMark("✗"), fmt.Sprintf(format, args...))
}

// FormatList formats a list of items as bullets.
func FormatList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "    • " + item
	}
	return strings.Join(lines, "\n")
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	d = d.Round(time.Second)
	minutes := d / time.Minute
	seconds := (d - minutes*time.Minute) / time.Second
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// Print writes raw text to the summary output.
func Print(s string) { fmt.Fprint(out, s) }
