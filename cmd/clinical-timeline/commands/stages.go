package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/clinical-timeline/internal/pipeline"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Copy searchable PDFs and recognize scanned ones into the output directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStage(cmd.Context(), func(ctx context.Context, p *pipeline.Processor) error {
			sum, err := p.Convert(ctx)
			if err != nil {
				return err
			}
			printConvert(p, sum)
			return nil
		})
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Classify and parse the readable PDFs into structured results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStage(cmd.Context(), func(ctx context.Context, p *pipeline.Processor) error {
			sum, err := p.ExtractAndParse(ctx)
			if err != nil {
				return err
			}
			printParse(p, sum)
			return nil
		})
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Merge the structured results into the combined patient timeline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStage(cmd.Context(), func(ctx context.Context, p *pipeline.Processor) error {
			sum, err := p.BuildTimeline(ctx)
			if err != nil {
				return err
			}
			printBuild(sum)
			return nil
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run [input-dir]",
	Short: "Run convert, parse and build in order",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, cleanup, err := newProcessor(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		sum, err := p.Run(cmd.Context())
		printRun(p, sum)
		return err
	},
}

func init() {
	rootCmd.AddCommand(convertCmd, parseCmd, buildCmd, runCmd)
}

// withStage runs one stage as its own ledger run.
func withStage(ctx context.Context, fn func(context.Context, *pipeline.Processor) error) (err error) {
	p, cleanup, err := newProcessor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx = p.Begin(ctx)
	defer func() { p.Finish(ctx, err) }()
	return fn(ctx, p)
}
