package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/iapd-pipeline/internal/brochure"
	"github.com/sells-group/iapd-pipeline/internal/csvio"
)

// stagesFrom returns the set of stages to run for a --stage resume
// request: the named stage and every stage after it in stageOrder. An
// empty or unrecognized startStage runs the whole pipeline.
func stagesFrom(startStage string) map[string]bool {
	run := make(map[string]bool, len(stageOrder))

	if startStage == "" {
		for _, s := range stageOrder {
			run[s] = true
		}
		return run
	}

	found := false
	for _, s := range stageOrder {
		if s == startStage {
			found = true
		}
		if found {
			run[s] = true
		}
	}
	if !found {
		for _, s := range stageOrder {
			run[s] = true
		}
	}
	return run
}

// archiveDataDir renames an existing data directory out of the way before
// a force_restart run, so the new run starts from an empty Data/ tree
// without losing the prior master CSV and downloads.
func archiveDataDir(dataDir string) error {
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return eris.Wrapf(err, "pipeline: stat %s", dataDir)
	}

	backup := fmt.Sprintf("%s.bak.%s", dataDir, time.Now().Format("20060102T150405"))
	if err := os.Rename(dataDir, backup); err != nil {
		return eris.Wrapf(err, "pipeline: archive %s to %s", dataDir, backup)
	}
	return nil
}

// stage3Status is the narrow slice of the stage-3 file tallyDownloadOutcomes
// needs, decoded via the shared csvutil-based reader.
type stage3Status struct {
	DownloadStatus string `csv:"downloadStatus"`
}

// tallyDownloadOutcomes reads the stage-3 with-status file and counts each
// download outcome into summary.
func tallyDownloadOutcomes(stage3Path string, summary *RunSummary) {
	rows, err := csvio.UnmarshalFile[stage3Status](stage3Path)
	if err != nil {
		return
	}

	summary.DownloadsAttempted = len(rows)
	for _, row := range rows {
		switch row.DownloadStatus {
		case brochure.StatusSuccess:
			summary.DownloadsSucceeded++
		case brochure.StatusInvalidURL:
			summary.DownloadsInvalid++
		case brochure.StatusNoURL, brochure.StatusSkipped:
			// Neither attempted against the network nor a failure; excluded
			// from both succeeded and failed counts.
			summary.DownloadsAttempted--
		default: // StatusFailed and any other non-success status
			summary.DownloadsFailed++
		}
	}
}

// writeSummary marshals summary to JSON and writes it to the run-summary
// sidecar under logsDir, named by the run's date stamp.
func writeSummary(logsDir, dateStamp string, summary *RunSummary) error {
	path := filepath.Join(logsDir, fmt.Sprintf("run_summary_%s.json", dateStamp))

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal run summary")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "pipeline: write run summary %s", path)
	}
	return nil
}
