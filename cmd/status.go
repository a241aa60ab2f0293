package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/iapd-pipeline/internal/incremental"
	"github.com/sells-group/iapd-pipeline/internal/pipeline"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the master CSV's size and the last run's summary",
	Long:  "Prints the master output file's row count and max filing date, plus the JSON summary sidecar from the most recent run, if any.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		masterPath := cfg.BaselineFile
		if masterPath == "" {
			masterPath = filepath.Join(cfg.Paths.Output, "IAPD_Data.csv")
		}

		set, err := incremental.Load(ctx, zap.L(), masterPath)
		if err != nil {
			return err
		}

		fmt.Printf("master file: %s\n", masterPath)
		fmt.Printf("brochures recorded: %d\n", set.Len())
		fmt.Printf("max filing date: %s\n", orDash(set.MaxFilingDate()))

		summary, sidecarPath, err := latestRunSummary(cfg.Paths.Logs)
		if err != nil {
			return err
		}
		if summary == nil {
			fmt.Println("no run summary found")
			return nil
		}

		fmt.Printf("\nlast run: %s\n", sidecarPath)
		fmt.Printf("  run id:              %s\n", summary.RunID)
		fmt.Printf("  run date:            %s\n", summary.RunDate)
		fmt.Printf("  firms extracted:     %d\n", summary.FirmsExtracted)
		fmt.Printf("  brochures discovered: %d (%d filtered)\n", summary.BrochuresDiscovered, summary.BrochuresFiltered)
		fmt.Printf("  downloads:           %d attempted, %d succeeded, %d failed, %d invalid\n",
			summary.DownloadsAttempted, summary.DownloadsSucceeded, summary.DownloadsFailed, summary.DownloadsInvalid)
		fmt.Printf("  classifications:     %d run, %d skipped\n", summary.ClassificationsRun, summary.ClassificationsSkip)
		fmt.Printf("  rows:                %d written, %d appended to master\n", summary.RowsWritten, summary.RowsAppended)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// latestRunSummary finds and decodes the most recently dated run-summary
// sidecar under logsDir (run_summary_YYYYMMDD.json, sorted lexically since
// the date stamp is fixed-width). Returns a nil summary, not an error, if
// none exist yet.
func latestRunSummary(logsDir string) (*pipeline.RunSummary, string, error) {
	entries, err := os.ReadDir(logsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", eris.Wrapf(err, "status: read %s", logsDir)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "run_summary_") && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, "", nil
	}
	sort.Strings(names)
	latest := names[len(names)-1]
	path := filepath.Join(logsDir, latest)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", eris.Wrapf(err, "status: read %s", path)
	}

	var summary pipeline.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, "", eris.Wrapf(err, "status: parse %s", path)
	}

	return &summary, path, nil
}
