// Package pipelineerr defines the error taxonomy shared by every pipeline
// stage: the feed-level failures that abort a run, and the per-item
// failures that are recorded and swallowed so the run continues.
package pipelineerr

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Sentinel errors for the feed-level failures that abort a run. Wrapped
// with eris at the call site so errors.Is still matches through the chain.
var (
	// ErrFeedUnavailable means none of the 8 candidate daily-feed URLs
	// served a usable body.
	ErrFeedUnavailable = eris.New("feed unavailable: no candidate day served the daily feed")

	// ErrXMLParseFatal means the feed XML was structurally corrupt enough
	// that no firms could be extracted at all.
	ErrXMLParseFatal = eris.New("xml parse fatal: feed structure could not be read")

	// ErrConfiguration means the run configuration failed validation
	// before any stage executed.
	ErrConfiguration = eris.New("configuration invalid")
)

// ApiFailure records that a firm's brochure-catalog API call failed after
// retries. It never aborts the run — BrochureCatalog records zero
// brochures for the firm and continues.
type ApiFailure struct {
	CRDNumber string
	Cause     error
}

func (e *ApiFailure) Error() string {
	return fmt.Sprintf("api failure for CRD %s: %v", e.CRDNumber, e.Cause)
}

func (e *ApiFailure) Unwrap() error { return e.Cause }

// DownloadFailure records that a brochure PDF download failed after
// retries. BrochureFetcher records FAILED for the item and continues.
type DownloadFailure struct {
	VersionID string
	Cause     error
}

func (e *DownloadFailure) Error() string {
	return fmt.Sprintf("download failure for brochure version %s: %v", e.VersionID, e.Cause)
}

func (e *DownloadFailure) Unwrap() error { return e.Cause }

// PdfInvalid records that a downloaded body failed the PDF magic-byte
// check or was otherwise not a usable PDF.
type PdfInvalid struct {
	VersionID string
	Reason    string
}

func (e *PdfInvalid) Error() string {
	return fmt.Sprintf("invalid pdf for brochure version %s: %s", e.VersionID, e.Reason)
}

// ClassificationSkipped records that BrochureClassifier could not produce
// an analysis (file absent, status != SUCCESS, or extraction returned no
// usable text). It is joined into output with empty analysis fields, not
// dropped.
type ClassificationSkipped struct {
	VersionID string
	Reason    string
}

func (e *ClassificationSkipped) Error() string {
	return fmt.Sprintf("classification skipped for brochure version %s: %s", e.VersionID, e.Reason)
}
