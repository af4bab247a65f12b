package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/clinical-timeline/cmd/clinical-timeline/ui"
	"github.com/joseph-ayodele/clinical-timeline/internal/common"
	"github.com/joseph-ayodele/clinical-timeline/internal/ingest"
)

var (
	watchDebounce time.Duration
	watchNoInit   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [input-dir]",
	Short: "Re-run the whole batch whenever PDFs land in the input directory",
	Long: `watch keeps the input directory under observation and re-runs convert, parse
and build once new or changed PDFs have been quiet for the debounce interval.
Every batch rebuilds the timeline from the full input directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		p, cleanup, err := newProcessor(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		batches, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{cfg.Pipeline.InputDir},
			InitialScan: !watchNoInit,
			SkipHidden:  true,
			Debounce:    watchDebounce,
			Logger:      logger,
		})
		if err != nil {
			return common.NewAppError("WATCH_ERROR", fmt.Sprintf("watch %s: %v", cfg.Pipeline.InputDir, err), common.ErrInvalidInput)
		}

		spin := ui.NewSpinner(fmt.Sprintf("watching %s", cfg.Pipeline.InputDir))
		spin.Start()
		defer spin.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Warn("watch.error", "error", err)
			case batch, ok := <-batches:
				if !ok {
					return nil
				}
				spin.Stop()
				logger.Info("watch.batch", "files", len(batch), "first", filepath.Base(batch[0]))

				sum, err := p.Run(ctx)
				printRun(p, sum)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					ui.Error("run %s failed: %v", sum.RunID, err)
				}
				spin.UpdateMessage(fmt.Sprintf("watching %s (last run %s)", cfg.Pipeline.InputDir, time.Now().Format(time.Kitchen)))
				spin.Start()
			}
		}
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "quiet period before a batch runs")
	watchCmd.Flags().BoolVar(&watchNoInit, "no-initial", false, "skip the run over PDFs already present at startup")
	rootCmd.AddCommand(watchCmd)
}
