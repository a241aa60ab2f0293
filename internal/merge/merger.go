package merge

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/iapd-pipeline/internal/classify"
	"github.com/sells-group/iapd-pipeline/internal/csvio"
	"github.com/sells-group/iapd-pipeline/internal/firm"
	"github.com/sells-group/iapd-pipeline/internal/pipelineerr"
)

// stage3Row decodes the stage-3 columns this package needs.
type stage3Row struct {
	FirmID         string `csv:"firmId"`
	VersionID      string `csv:"brochureVersionId"`
	BrochureName   string `csv:"brochureName"`
	DateSubmitted  string `csv:"dateSubmitted"`
	DateConfirmed  string `csv:"dateConfirmed"`
	DownloadStatus string `csv:"downloadStatus"`
	FileName       string `csv:"fileName"`
}

// Stats summarizes one Merger run.
type Stats struct {
	RowsWritten     int
	RowsAppended    int
	FirmsMissing    int
	Classifications int
	Skipped         int
}

// Merger implements OutputMerger (component F).
type Merger struct {
	classifier   *classify.Classifier
	downloadsDir string
	log          *zap.Logger
}

// New builds a Merger.
func New(classifier *classify.Classifier, downloadsDir string, log *zap.Logger) *Merger {
	return &Merger{classifier: classifier, downloadsDir: downloadsDir, log: log}
}

// Run loads stage1Path and stage3Path, joins and classifies SUCCESS rows,
// writes datedPath, and appends the new rows into masterPath (creating it
// verbatim if absent, never rewriting its header).
func (m *Merger) Run(dateAdded, stage1Path, stage3Path, datedPath, masterPath string) (Stats, error) {
	stage1Rows, err := csvio.UnmarshalFile[firmCSVRow](stage1Path)
	if err != nil {
		return Stats{}, err
	}
	firmRecords := make([]firm.Record, len(stage1Rows))
	for i, r := range stage1Rows {
		firmRecords[i] = r.toRecord()
	}
	firmsByCRD := firm.ByCRD(firmRecords)

	stage3Rows, err := csvio.UnmarshalFile[stage3Row](stage3Path)
	if err != nil {
		return Stats{}, err
	}

	w, err := csvio.Create(datedPath, Header)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, s3 := range stage3Rows {
		if s3.DownloadStatus != "SUCCESS" || s3.FileName == "" {
			continue
		}

		fr, ok := firmsByCRD[s3.FirmID]
		if !ok {
			stats.FirmsMissing++
			m.log.Warn("merge: firm missing for brochure row", zap.String("firm_id", s3.FirmID), zap.String("version_id", s3.VersionID))
			continue
		}

		analysis := m.classifier.Classify(filepath.Join(m.downloadsDir, s3.FileName))
		if analysis.Skipped {
			stats.Skipped++
			skipErr := &pipelineerr.ClassificationSkipped{VersionID: s3.VersionID, Reason: analysis.SkipReason}
			m.log.Warn("merge: classification skipped", zap.Error(skipErr))
		} else {
			stats.Classifications++
		}

		row := Row{
			Firm:          fr,
			DateAdded:     dateAdded,
			VersionID:     s3.VersionID,
			BrochureName:  s3.BrochureName,
			DateSubmitted: s3.DateSubmitted,
			DateConfirmed: s3.DateConfirmed,
			FileName:      s3.FileName,
			Analysis:      analysis,
		}

		if err := w.WriteRow(row.Render()); err != nil {
			_ = w.Close()
			return stats, err
		}
		stats.RowsWritten++
	}

	if err := w.Close(); err != nil {
		return stats, err
	}

	appended, err := appendToMaster(datedPath, masterPath)
	if err != nil {
		return stats, err
	}
	stats.RowsAppended = appended

	m.log.Info("merge: complete",
		zap.Int("rows_written", stats.RowsWritten),
		zap.Int("rows_appended", stats.RowsAppended),
		zap.Int("firms_missing", stats.FirmsMissing),
		zap.Int("classifications", stats.Classifications),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// appendToMaster copies datedPath verbatim if masterPath does not exist;
// otherwise it scans masterPath once for existing brochureVersionId values
// and appends only the dated rows not already present, under one coarse
// lock held for the duration of the append (spec.md §5's single
// cross-component lock).
var masterLock = make(chan struct{}, 1)

func appendToMaster(datedPath, masterPath string) (int, error) {
	masterLock <- struct{}{}
	defer func() { <-masterLock }()

	if _, err := os.Stat(masterPath); os.IsNotExist(err) {
		data, err := os.ReadFile(datedPath)
		if err != nil {
			return 0, eris.Wrapf(err, "merge: read %s", datedPath)
		}
		if err := os.WriteFile(masterPath, data, 0o644); err != nil {
			return 0, eris.Wrapf(err, "merge: write %s", masterPath)
		}
		rows, err := csvio.UnmarshalFile[stage3Row](datedPath)
		if err != nil {
			return 0, err
		}
		return len(rows), nil
	}

	existingHeader, err := csvio.ReadHeader(masterPath)
	if err != nil {
		return 0, err
	}
	versionIdx := indexOf(existingHeader, "brochureVersionId")

	existing := make(map[string]struct{})
	if versionIdx >= 0 {
		rowCh, errCh := csvio.StreamRows(context.Background(), masterPath)
		for row := range rowCh {
			if versionIdx < len(row) {
				existing[row[versionIdx]] = struct{}{}
			}
		}
		if err := <-errCh; err != nil {
			return 0, err
		}
	}

	datedHeader, err := csvio.ReadHeader(datedPath)
	if err != nil {
		return 0, err
	}
	datedVersionIdx := indexOf(datedHeader, "brochureVersionId")

	f, err := os.OpenFile(masterPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, eris.Wrapf(err, "merge: open %s for append", masterPath)
	}
	defer f.Close() //nolint:errcheck

	appendWriter := csvio.NewAppendWriter(f)

	rowCh, errCh := csvio.StreamRows(context.Background(), datedPath)
	appended := 0
	for row := range rowCh {
		if datedVersionIdx >= 0 && datedVersionIdx < len(row) {
			if _, dup := existing[row[datedVersionIdx]]; dup {
				continue
			}
		}
		if err := appendWriter.WriteRow(row); err != nil {
			return appended, err
		}
		appended++
	}
	if err := <-errCh; err != nil {
		return appended, err
	}
	if err := appendWriter.Close(); err != nil {
		return appended, err
	}

	return appended, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

type firmCSVRow struct {
	FirmCrdNb         string `csv:"FirmCrdNb"`
	SECRgmCD          string `csv:"SECRgmCD"`
	SECMb             string `csv:"SECMb"`
	BusinessName      string `csv:"Business Name"`
	LegalName         string `csv:"Legal Name"`
	Street1           string `csv:"Street 1"`
	Street2           string `csv:"Street 2"`
	City              string `csv:"City"`
	State             string `csv:"State"`
	Country           string `csv:"Country"`
	PostalCode        string `csv:"Postal Code"`
	Phone             string `csv:"Telephone #"`
	Fax               string `csv:"Fax #"`
	FirmType          string `csv:"Registration Firm Type"`
	RegistrationState string `csv:"Registration State"`
	RegistrationDate  string `csv:"Registration Date"`
	FilingDate        string `csv:"Filing Date"`
	FilingVersion     string `csv:"Filing Version"`
	TotalEmployees    string `csv:"Total Employees"`
	AUM               string `csv:"AUM"`
	TotalAccounts     string `csv:"Total Accounts"`
}

func (r firmCSVRow) toRecord() firm.Record {
	return firm.Record{
		CRDNumber:         r.FirmCrdNb,
		SECRegionCode:     r.SECRgmCD,
		SECMemberFlag:     r.SECMb,
		BusinessName:      r.BusinessName,
		LegalName:         r.LegalName,
		Street1:           r.Street1,
		Street2:           r.Street2,
		City:              r.City,
		State:             r.State,
		Country:           r.Country,
		PostalCode:        r.PostalCode,
		Phone:             r.Phone,
		Fax:               r.Fax,
		FirmType:          r.FirmType,
		RegistrationState: r.RegistrationState,
		RegistrationDate:  r.RegistrationDate,
		FilingDate:        r.FilingDate,
		FilingVersion:     r.FilingVersion,
		TotalEmployees:    r.TotalEmployees,
		AUM:               r.AUM,
		TotalAccounts:     r.TotalAccounts,
	}
}
