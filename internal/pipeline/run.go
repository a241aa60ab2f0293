// Package pipeline wires components A through F into the six-stage IAPD
// run (spec.md §4), in the fixed order FeedAcquirer → FirmExtractor →
// BrochureCatalog → BrochureFetcher → BrochureClassifier (invoked inside
// OutputMerger) → OutputMerger.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/iapd-pipeline/internal/brochure"
	"github.com/sells-group/iapd-pipeline/internal/classify"
	"github.com/sells-group/iapd-pipeline/internal/config"
	"github.com/sells-group/iapd-pipeline/internal/feed"
	"github.com/sells-group/iapd-pipeline/internal/firm"
	"github.com/sells-group/iapd-pipeline/internal/httpclient"
	"github.com/sells-group/iapd-pipeline/internal/incremental"
	"github.com/sells-group/iapd-pipeline/internal/merge"
	"github.com/sells-group/iapd-pipeline/internal/pipelineerr"
	"github.com/sells-group/iapd-pipeline/internal/ratelimit"
	"github.com/sells-group/iapd-pipeline/internal/retry"
	"github.com/sells-group/iapd-pipeline/internal/textextract"
)

// Stage names accepted by the --stage resume flag. A stage runs every
// stage from itself onward, reusing the intermediate files earlier
// stages already produced for this run date.
const (
	StageFeed    = "feed"
	StageFirm    = "firm"
	StageCatalog = "catalog"
	StageFetch   = "fetch"
	StageMerge   = "merge"
)

var stageOrder = []string{StageFeed, StageFirm, StageCatalog, StageFetch, StageMerge}

// RunSummary is the JSON-serializable result of one pipeline run,
// surfaced both in logs and the Data/Logs run-summary sidecar (this
// module's supplement to spec.md's stats-are-logged-only baseline, so
// `iapd status` has something durable to read).
type RunSummary struct {
	RunID               string `json:"run_id"`
	RunDate             string `json:"run_date"`
	FirmsExtracted      int    `json:"firms_extracted"`
	BrochuresDiscovered int    `json:"brochures_discovered"`
	BrochuresFiltered   int    `json:"brochures_filtered"`
	DownloadsAttempted  int    `json:"downloads_attempted"`
	DownloadsSucceeded  int    `json:"downloads_succeeded"`
	DownloadsFailed     int    `json:"downloads_failed"`
	DownloadsInvalid    int    `json:"downloads_invalid"`
	ClassificationsRun  int    `json:"classifications_run"`
	ClassificationsSkip int    `json:"classifications_skipped"`
	RowsWritten         int    `json:"rows_written"`
	RowsAppended        int    `json:"rows_appended"`
}

// Runner orchestrates one end-to-end pipeline invocation.
type Runner struct {
	cfg *config.Config
	log *zap.Logger
}

// New builds a Runner.
func New(cfg *config.Config, log *zap.Logger) *Runner {
	return &Runner{cfg: cfg, log: log}
}

// Run executes stages from startStage (inclusive) through the end. An
// empty startStage runs the whole pipeline. force_restart archives the
// existing Data/ directory before anything else runs.
func (r *Runner) Run(ctx context.Context, startStage string) (*RunSummary, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, eris.Wrapf(pipelineerr.ErrConfiguration, "pipeline: invalid configuration: %v", err)
	}

	runID := uuid.New().String()
	r.log = r.log.With(zap.String("run_id", runID))

	if r.cfg.ForceRestart {
		if err := archiveDataDir(r.cfg.Paths.DataDir); err != nil {
			return nil, eris.Wrap(err, "pipeline: force_restart archive")
		}
	}

	for _, dir := range []string{r.cfg.Paths.FirmFiles, r.cfg.Paths.Input, r.cfg.Paths.Output, r.cfg.Paths.Downloads, r.cfg.Paths.Logs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "pipeline: mkdir %s", dir)
		}
	}

	runDate := time.Now()
	dateStamp := runDate.Format("20060102")
	dateAdded := runDate.Format("01/02/2006")

	client := httpclient.New(httpclient.Options{UserAgent: r.cfg.UserAgent, Timeout: time.Duration(r.cfg.HTTPTimeoutSecs) * time.Second})
	retryer := retry.NewExecutor()
	buckets := ratelimit.NewBuckets(r.cfg.APIRateLimit, r.cfg.DownloadRateLimit)

	masterPath := r.cfg.BaselineFile
	if masterPath == "" {
		masterPath = filepath.Join(r.cfg.Paths.Output, "IAPD_Data.csv")
	}

	stage1Path := filepath.Join(r.cfg.Paths.Output, fmt.Sprintf("IA_FIRM_SEC_DATA_%s.csv", dateStamp))
	stage2Path := filepath.Join(r.cfg.Paths.Output, fmt.Sprintf("FilesToDownload_%s.csv", dateStamp))
	stage3Path := filepath.Join(r.cfg.Paths.Output, fmt.Sprintf("FilesToDownload_%s_with_status.csv", dateStamp))
	datedPath := filepath.Join(r.cfg.Paths.Output, fmt.Sprintf("IAPD_Data_%s.csv", dateStamp))

	summary := &RunSummary{RunID: runID, RunDate: dateAdded}
	run := stagesFrom(startStage)

	// expectedXMLPath is where the feed stage saves today's decompressed
	// feed. A resumed run starting at StageFirm or later assumes a prior
	// invocation already populated it under this same name.
	expectedXMLPath := filepath.Join(r.cfg.Paths.FirmFiles, fmt.Sprintf("IA_FIRM_SEC_Feed_%s.xml", runDate.Format("01_02_2006")))

	if run[StageFeed] {
		acquirer := feed.New(client, retryer, r.log, r.cfg.Paths.FirmFiles)
		xmlPath, err := acquirer.Acquire(ctx)
		if err != nil {
			return summary, err
		}
		r.log.Info("pipeline: feed acquired", zap.String("path", xmlPath))
		expectedXMLPath = xmlPath
	}

	if run[StageFirm] {
		if _, statErr := os.Stat(expectedXMLPath); statErr != nil {
			return summary, eris.Wrapf(pipelineerr.ErrConfiguration, "pipeline: resumed at %s but feed file %s is missing", StageFirm, expectedXMLPath)
		}
		records, err := firm.Extract(ctx, r.log, expectedXMLPath, r.cfg.IndexLimit)
		if err != nil {
			return summary, eris.Wrap(err, "pipeline: firm extraction")
		}
		if err := firm.WriteStage1(stage1Path, dateAdded, records); err != nil {
			return summary, err
		}
		summary.FirmsExtracted = len(records)
	}

	var existing *incremental.Set
	if run[StageCatalog] {
		var err error
		if r.cfg.Incremental {
			existing, err = incremental.Load(ctx, r.log, masterPath)
			if err != nil {
				return summary, err
			}
		} else {
			existing, err = incremental.Load(ctx, r.log, filepath.Join(os.TempDir(), "nonexistent-baseline.csv"))
			if err != nil {
				return summary, err
			}
		}

		catalog := brochure.NewCatalog(client, retryer, buckets.API, r.log)
		stats, err := catalog.Run(ctx, stage1Path, stage2Path, existing)
		if err != nil {
			return summary, err
		}
		summary.BrochuresDiscovered = stats.BrochuresEmitted
		summary.BrochuresFiltered = stats.BrochuresFiltered
	}

	if run[StageFetch] {
		fetcher := brochure.NewFetcher(client, retryer, buckets.Download, r.log, r.cfg.Paths.Downloads)
		if err := fetcher.Run(ctx, stage2Path, stage3Path); err != nil {
			return summary, err
		}
		tallyDownloadOutcomes(stage3Path, summary)
	}

	if run[StageMerge] {
		classifier := classify.New(classify.DefaultCatalog(), textextract.NewPDFExtractor())
		merger := merge.New(classifier, r.cfg.Paths.Downloads, r.log)
		stats, err := merger.Run(dateAdded, stage1Path, stage3Path, datedPath, masterPath)
		if err != nil {
			return summary, err
		}
		summary.RowsWritten = stats.RowsWritten
		summary.RowsAppended = stats.RowsAppended
		summary.ClassificationsRun = stats.Classifications
		summary.ClassificationsSkip = stats.Skipped
	}

	if err := writeSummary(r.cfg.Paths.Logs, dateStamp, summary); err != nil {
		r.log.Warn("pipeline: write run summary sidecar failed", zap.Error(err))
	}

	return summary, nil
}
