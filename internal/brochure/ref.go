// Package brochure implements components C (BrochureCatalog) and D
// (BrochureFetcher): discovering a firm's published Form ADV brochures via
// the adviserinfo search API and downloading each one to disk.
package brochure

// Ref is one surviving (firm, brochure) pair after the incremental filter,
// carried through stage-2 and stage-3.
type Ref struct {
	FirmID         string
	FirmName       string
	VersionID      string
	Name           string
	DateSubmitted  string
	DateConfirmed  string
	DownloadStatus string
	FileName       string
}

// Download status values, spec.md §4.D.
const (
	StatusSuccess    = "SUCCESS"
	StatusFailed     = "FAILED"
	StatusInvalidURL = "INVALID_URL"
	StatusNoURL      = "NO_URL"
	StatusSkipped    = "SKIPPED"
)

// Stage2Header is the column order for FilesToDownload_YYYYMMDD.csv.
var Stage2Header = []string{"firmId", "firmName", "brochureVersionId", "brochureName", "dateSubmitted", "dateConfirmed"}

// Stage3Header extends Stage2Header with the fetch outcome.
var Stage3Header = append(append([]string{}, Stage2Header...), "downloadStatus", "fileName")

// Stage2Row renders the stage-2 projection of r.
func (r Ref) Stage2Row() []string {
	return []string{r.FirmID, r.FirmName, r.VersionID, r.Name, r.DateSubmitted, r.DateConfirmed}
}

// Stage3Row renders the stage-3 projection of r.
func (r Ref) Stage3Row() []string {
	return append(r.Stage2Row(), r.DownloadStatus, r.FileName)
}
