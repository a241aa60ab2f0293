package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/iapd-pipeline/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the IAPD brochure pipeline",
	Long: `Runs the six-stage pipeline once: acquire the daily feed, extract
firms, catalog brochures, download brochures, classify their content, and
merge everything into the dated and master CSV outputs.

Use --stage to resume from a specific stage, reading the prior stage's
output file from disk instead of recomputing it. Use --force-restart to
archive the existing Data/ directory before the run starts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "run"))

		stage, _ := cmd.Flags().GetString("stage")
		forceRestart, _ := cmd.Flags().GetBool("force-restart")
		if forceRestart {
			cfg.ForceRestart = true
		}

		runner := pipeline.New(cfg, log)
		summary, err := runner.Run(ctx, stage)
		if err != nil {
			return err
		}

		fmt.Printf("run %s complete: %d firms, %d brochures discovered (%d filtered), %d downloads (%d succeeded, %d failed, %d invalid), %d rows written, %d appended to master\n",
			summary.RunID,
			summary.FirmsExtracted,
			summary.BrochuresDiscovered,
			summary.BrochuresFiltered,
			summary.DownloadsAttempted,
			summary.DownloadsSucceeded,
			summary.DownloadsFailed,
			summary.DownloadsInvalid,
			summary.RowsWritten,
			summary.RowsAppended,
		)
		return nil
	},
}

func init() {
	runCmd.Flags().String("stage", "", "resume from a named stage (feed, firm, catalog, fetch, merge)")
	runCmd.Flags().Bool("force-restart", false, "archive the existing Data/ directory before running")
	rootCmd.AddCommand(runCmd)
}
