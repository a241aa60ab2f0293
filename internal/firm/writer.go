package firm

import (
	"github.com/sells-group/iapd-pipeline/internal/csvio"
)

// WriteStage1 writes the stage-1 CSV (spec.md §4.B) for a run, one row per
// Record with a non-empty CRD number, in the order records were extracted.
func WriteStage1(path, dateAdded string, records []Record) error {
	w, err := csvio.Create(path, Header)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.CRDNumber == "" {
			continue
		}
		if err := w.WriteRow(r.Row(dateAdded)); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

// ByCRD indexes records by CRD number for OutputMerger's firm lookup.
func ByCRD(records []Record) map[string]Record {
	m := make(map[string]Record, len(records))
	for _, r := range records {
		if r.CRDNumber == "" {
			continue
		}
		m[r.CRDNumber] = r
	}
	return m
}
