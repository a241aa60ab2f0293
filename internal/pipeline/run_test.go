package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/iapd-pipeline/internal/brochure"
	"github.com/sells-group/iapd-pipeline/internal/config"
	"github.com/sells-group/iapd-pipeline/internal/csvio"
)

func TestStagesFromEmptyRunsEverything(t *testing.T) {
	run := stagesFrom("")
	for _, s := range stageOrder {
		assert.True(t, run[s], "expected stage %s to run", s)
	}
}

func TestStagesFromResumesFromMiddle(t *testing.T) {
	run := stagesFrom(StageCatalog)
	assert.False(t, run[StageFeed])
	assert.False(t, run[StageFirm])
	assert.True(t, run[StageCatalog])
	assert.True(t, run[StageFetch])
	assert.True(t, run[StageMerge])
}

func TestStagesFromUnknownNameRunsEverything(t *testing.T) {
	run := stagesFrom("not-a-real-stage")
	for _, s := range stageOrder {
		assert.True(t, run[s])
	}
}

func TestArchiveDataDirRenamesExisting(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "Data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "marker.txt"), []byte("x"), 0o644))

	require.NoError(t, archiveDataDir(dataDir))

	_, err := os.Stat(dataDir)
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if e.Name() != "Data" && e.IsDir() {
			found = true
		}
	}
	assert.True(t, found, "expected a backup directory to be created")
}

func TestArchiveDataDirNoOpWhenMissing(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, archiveDataDir(filepath.Join(dir, "does-not-exist")))
}

func TestTallyDownloadOutcomesCountsStatuses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stage3.csv")

	header := []string{"firmId", "firmName", "brochureVersionId", "brochureName", "dateSubmitted", "dateConfirmed", "downloadStatus", "fileName"}
	rows := [][]string{
		{"1", "A", "v1", "n", "d1", "d2", brochure.StatusSuccess, "f1.pdf"},
		{"2", "B", "v2", "n", "d1", "d2", brochure.StatusFailed, ""},
		{"3", "C", "v3", "n", "d1", "d2", brochure.StatusInvalidURL, ""},
		{"4", "D", "v4", "n", "d1", "d2", brochure.StatusNoURL, ""},
	}

	w, err := csvio.Create(path, header)
	require.NoError(t, err)
	for _, row := range rows {
		require.NoError(t, w.WriteRow(row))
	}
	require.NoError(t, w.Close())

	summary := &RunSummary{}
	tallyDownloadOutcomes(path, summary)

	assert.Equal(t, 3, summary.DownloadsAttempted)
	assert.Equal(t, 1, summary.DownloadsSucceeded)
	assert.Equal(t, 1, summary.DownloadsFailed)
	assert.Equal(t, 1, summary.DownloadsInvalid)
}

func TestWriteSummaryWritesJSONSidecar(t *testing.T) {
	dir := t.TempDir()
	summary := &RunSummary{RunDate: "04/03/2025", FirmsExtracted: 7}

	require.NoError(t, writeSummary(dir, "20250403", summary))

	data, err := os.ReadFile(filepath.Join(dir, "run_summary_20250403.json"))
	require.NoError(t, err)

	var decoded RunSummary
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 7, decoded.FirmsExtracted)
}

func TestRunFailsFastOnInvalidConfig(t *testing.T) {
	cfg := &config.Config{} // zero-value: fails Validate (zero rate limits, empty data dir)
	r := New(cfg, zap.NewNop())

	_, err := r.Run(context.Background(), "")
	assert.Error(t, err)
}

func TestRunResumingAtFirmStageRequiresExistingFeedFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		APIRateLimit:      2,
		DownloadRateLimit: 5,
		UserAgent:         "test",
		HTTPTimeoutSecs:   5,
		Paths: config.PathConfig{
			DataDir:   filepath.Join(dir, "Data"),
			FirmFiles: filepath.Join(dir, "Data", "FirmFiles"),
			Input:     filepath.Join(dir, "Data", "Input"),
			Output:    filepath.Join(dir, "Data", "Output"),
			Downloads: filepath.Join(dir, "Data", "Downloads"),
			Logs:      filepath.Join(dir, "Data", "Logs"),
		},
	}
	r := New(cfg, zap.NewNop())

	_, err := r.Run(context.Background(), StageFirm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed file")
}
