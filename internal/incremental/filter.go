// Package incremental implements component I (IncrementalFilter): the
// deny-list of brochure_version_id values already present in the master
// output, consulted by BrochureCatalog to skip already-downloaded
// brochures on subsequent runs.
package incremental

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/iapd-pipeline/internal/csvio"
)

const versionIDColumn = "brochureVersionId"

// filingDateLayout is the master CSV's "Filing Date" column format
// (MM/DD/YYYY, zero-padded, per spec.md §6).
const filingDateLayout = "01/02/2006"

// Set is an O(1)-lookup deny-list of brochure_version_id values.
type Set struct {
	ids              map[string]struct{}
	maxFilingDate    string
	maxFilingDateVal time.Time
}

// Contains reports whether id is already present in the master output.
func (s *Set) Contains(id string) bool {
	if s == nil || id == "" {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// MaxFilingDate returns the largest "Filing Date" value observed in the
// master file, or "" if none. Advisory only; never gates processing.
func (s *Set) MaxFilingDate() string {
	if s == nil {
		return ""
	}
	return s.maxFilingDate
}

// Len returns the number of distinct brochure_version_id values loaded
// from the master file, i.e. its row count.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// Load streams masterPath once and builds the Set. A missing file yields
// an empty, non-nil Set. A master file present but lacking the
// brochureVersionId column yields an empty Set and a logged warning.
func Load(ctx context.Context, log *zap.Logger, masterPath string) (*Set, error) {
	header, err := csvio.ReadHeader(masterPath)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return &Set{ids: map[string]struct{}{}}, nil
	}

	versionIdx := indexOf(header, versionIDColumn)
	filingDateIdx := indexOf(header, "Filing Date")

	if versionIdx < 0 {
		log.Warn("incremental: master file missing brochureVersionId column", zap.String("path", masterPath))
		return &Set{ids: map[string]struct{}{}}, nil
	}

	set := &Set{ids: map[string]struct{}{}}

	rowCh, errCh := csvio.StreamRows(ctx, masterPath)
	for row := range rowCh {
		if versionIdx < len(row) && row[versionIdx] != "" {
			set.ids[row[versionIdx]] = struct{}{}
		}
		if filingDateIdx >= 0 && filingDateIdx < len(row) && row[filingDateIdx] != "" {
			if t, perr := time.Parse(filingDateLayout, row[filingDateIdx]); perr == nil && t.After(set.maxFilingDateVal) {
				set.maxFilingDateVal = t
				set.maxFilingDate = row[filingDateIdx]
			}
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	log.Info("incremental: loaded master fingerprints", zap.Int("count", len(set.ids)))
	return set, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
