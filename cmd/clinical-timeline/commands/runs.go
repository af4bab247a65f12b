package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/clinical-timeline/cmd/clinical-timeline/ui"
	"github.com/joseph-ayodele/clinical-timeline/internal/common"
	"github.com/joseph-ayodele/clinical-timeline/internal/utils"
)

var (
	runsLimit int
	runsID    string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs from the run ledger",
	Long: `runs checks the run ledger and prints the most recent runs. With --run it
prints what happened to every document in that run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if cfg.Database.DSN == "" {
			return common.NewAppError("CONFIG_ERROR", "no run ledger configured; set DB_URL or --db", common.ErrInvalidInput)
		}
		store, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.HealthCheck(ctx, time.Second); err != nil {
			return err
		}

		if runsID != "" {
			id, err := uuid.Parse(runsID)
			if err != nil {
				return common.NewAppError("INVALID_RUN_ID", fmt.Sprintf("run id %q", runsID), common.ErrInvalidInput)
			}
			run, err := store.Run(ctx, id)
			if err != nil {
				return err
			}
			events, err := store.EventCount(ctx, id)
			if err != nil {
				return err
			}
			docs, err := store.Documents(ctx, id)
			if err != nil {
				return err
			}

			ui.Section("Run " + run.ID.String())
			ui.KeyValue("Status", run.Status)
			ui.KeyValue("Input", run.InputDir)
			ui.KeyValue("Output", run.OutputDir)
			ui.KeyValue("Started", run.StartedAt.Local().Format(time.DateTime))
			ui.KeyValue("Duration", runDuration(run.StartedAt, run.FinishedAt))
			ui.KeyValue("Stored events", events)
			ui.Print("\n")

			rows := make([][]string, 0, len(docs))
			for _, d := range docs {
				rows = append(rows, []string{d.Stage, d.SourceFile, string(d.FileType), string(d.Status), fmt.Sprint(d.Records), utils.StrOrEmpty(d.ErrorMessage)})
			}
			ui.Table([]string{"STAGE", "SOURCE", "TYPE", "STATUS", "RECORDS", "ERROR"}, rows)
			return nil
		}

		runs, err := store.Runs(ctx, runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			ui.Warning("no runs recorded")
			return nil
		}
		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{
				r.ID.String(),
				string(r.Status),
				r.StartedAt.Local().Format(time.DateTime),
				runDuration(r.StartedAt, r.FinishedAt),
				fmt.Sprint(r.Documents),
				fmt.Sprint(r.Failed),
				fmt.Sprint(r.Events),
			})
		}
		ui.Table([]string{"RUN", "STATUS", "STARTED", "DURATION", "DOCS", "FAILED", "EVENTS"}, rows)
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to list")
	runsCmd.Flags().StringVar(&runsID, "run", "", "show the documents of one run")
	rootCmd.AddCommand(runsCmd)
}

func runDuration(start time.Time, end *time.Time) string {
	if end == nil {
		return "-"
	}
	return ui.FormatDuration(end.Sub(start))
}
