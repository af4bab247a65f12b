// Package commands implements the clinical-timeline command tree.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/joseph-ayodele/clinical-timeline/cmd/clinical-timeline/ui"
	"github.com/joseph-ayodele/clinical-timeline/internal/common"
)

type options struct {
	envFile   string
	inputDir  string
	outputDir string
	parallel  bool
	workers   int
	vocabPath string
	dbURL     string
	xlsx      bool
	logLevel  string
	logFormat string
	progress  bool
	noColor   bool
}

var (
	opts options

	// set by PersistentPreRunE
	cfg    *common.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "clinical-timeline",
	Short: "Build a date-keyed patient timeline from scanned clinical PDFs",
	Long: `clinical-timeline turns a directory of clinical PDFs (lab reports and clinical
notes, scanned or searchable) into one combined, date-keyed timeline.

The batch runs in three stages, each re-runnable on its own against the same
output directory:

  convert  copy searchable PDFs, recognize scanned ones
  parse    classify and parse every readable PDF into structured results
  build    merge the structured results into the combined timeline`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	bindFlags(rootCmd.PersistentFlags(), &opts)
}

func bindFlags(pf *pflag.FlagSet, o *options) {
	pf.StringVar(&o.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.StringVarP(&o.inputDir, "input", "i", "", "input directory of PDFs (TIMELINE_INPUT_DIR)")
	pf.StringVarP(&o.outputDir, "output", "o", "", "output directory (TIMELINE_OUTPUT_DIR, default <input>/processed_pdfs)")
	pf.BoolVarP(&o.parallel, "parallel", "p", false, "process documents on a worker pool (TIMELINE_PARALLEL)")
	pf.IntVarP(&o.workers, "workers", "w", 0, "worker pool size when --parallel is set (TIMELINE_WORKERS, default CPU count)")
	pf.StringVar(&o.vocabPath, "vocab", "", "pattern vocabulary YAML (TIMELINE_VOCAB_PATH, default embedded)")
	pf.StringVar(&o.dbURL, "db", "", "run ledger DSN: a SQLite path or postgres:// URL (DB_URL)")
	pf.BoolVar(&o.xlsx, "xlsx", false, "also export the timeline as XLSX (TIMELINE_EXPORT_XLSX)")
	pf.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	pf.StringVar(&o.logFormat, "log-format", "", "json or text (LOG_FORMAT)")
	pf.BoolVar(&o.progress, "progress", false, "show per-stage progress bars on stderr")
	pf.BoolVar(&o.noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, args []string) error {
	if err := loadEnvFile(opts.envFile); err != nil {
		return err
	}
	cfg = common.LoadConfig()
	applyFlags(cmd.Flags(), opts, cfg)
	if len(args) == 1 && !cmd.Flags().Changed("input") {
		cfg.Pipeline.InputDir = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ui.Init(opts.noColor)
	logger = newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	return nil
}

// loadEnvFile loads path into the environment. A missing file is fine;
// variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// applyFlags overrides the environment configuration with the flags the
// user actually set.
func applyFlags(f *pflag.FlagSet, opts options, c *common.Config) {
	if f.Changed("input") {
		c.Pipeline.InputDir = opts.inputDir
	}
	if f.Changed("output") {
		c.Pipeline.OutputDir = opts.outputDir
	}
	if f.Changed("parallel") {
		c.Pipeline.Parallel = opts.parallel
	}
	if f.Changed("workers") {
		c.Pipeline.Workers = opts.workers
		if opts.workers > 1 && !f.Changed("parallel") {
			c.Pipeline.Parallel = true
		}
	}
	if f.Changed("vocab") {
		c.Pipeline.VocabPath = opts.vocabPath
	}
	if f.Changed("db") {
		c.Database.DSN = opts.dbURL
	}
	if f.Changed("xlsx") {
		c.Pipeline.ExportXLSX = opts.xlsx
	}
	if f.Changed("log-level") {
		c.Log.Level = opts.logLevel
	}
	if f.Changed("log-format") {
		c.Log.Format = opts.logFormat
	}
}

func newLogger(c common.LogConfig, w io.Writer) *slog.Logger {
	ho := &slog.HandlerOptions{Level: parseLevel(c.Level)}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, ho))
	}
	return slog.New(slog.NewJSONHandler(w, ho))
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
