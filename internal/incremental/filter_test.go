package incremental

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/iapd-pipeline/internal/csvio"
)

func TestLoadMissingFileReturnsEmptySet(t *testing.T) {
	set, err := Load(context.Background(), zap.NewNop(), filepath.Join(t.TempDir(), "missing.csv"))
	require.NoError(t, err)
	assert.False(t, set.Contains("anything"))
	assert.Equal(t, "", set.MaxFilingDate())
}

func TestLoadCollectsVersionIDsAndMaxFilingDate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master.csv")

	w, err := csvio.Create(path, []string{"Filing Date", "brochureVersionId"})
	require.NoError(t, err)
	require.NoError(t, w.WriteRow([]string{"01/02/2024", "v1"}))
	require.NoError(t, w.WriteRow([]string{"03/04/2024", "v2"}))
	require.NoError(t, w.Close())

	set, err := Load(context.Background(), zap.NewNop(), path)
	require.NoError(t, err)
	assert.True(t, set.Contains("v1"))
	assert.True(t, set.Contains("v2"))
	assert.False(t, set.Contains("v3"))
	assert.Equal(t, "03/04/2024", set.MaxFilingDate())
	assert.Equal(t, 2, set.Len())
}

func TestLoadMaxFilingDateComparesChronologicallyNotLexically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master.csv")

	w, err := csvio.Create(path, []string{"Filing Date", "brochureVersionId"})
	require.NoError(t, err)
	// "12/01/2024" sorts after "01/15/2025" lexically but is earlier in time.
	require.NoError(t, w.WriteRow([]string{"12/01/2024", "v1"}))
	require.NoError(t, w.WriteRow([]string{"01/15/2025", "v2"}))
	require.NoError(t, w.Close())

	set, err := Load(context.Background(), zap.NewNop(), path)
	require.NoError(t, err)
	assert.Equal(t, "01/15/2025", set.MaxFilingDate())
}

func TestLoadMissingColumnWarnsAndReturnsEmptySet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master.csv")

	w, err := csvio.Create(path, []string{"Filing Date", "Business Name"})
	require.NoError(t, err)
	require.NoError(t, w.WriteRow([]string{"01/02/2024", "Acme"}))
	require.NoError(t, w.Close())

	set, err := Load(context.Background(), zap.NewNop(), path)
	require.NoError(t, err)
	assert.False(t, set.Contains("v1"))
}
