// Package textextract provides the TextExtractor collaborator spec.md §1
// treats as an external primitive: "internal parsing is delegated." The
// default implementation calls github.com/ledongthuc/pdf in process.
package textextract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor returns the full text content of a PDF file as a single
// string. Implementations may return an empty string with no error for a
// file they cannot usefully extract text from; BrochureClassifier treats
// empty text the same as an extraction error (ClassificationSkipped).
type Extractor interface {
	Extract(path string) (string, error)
}

// maxExtractedChars bounds how much text a single brochure contributes;
// brochures run to hundreds of pages and the classifier only needs the
// text, not a faithful reproduction.
const maxExtractedChars = 2_000_000

// PDFExtractor is the default Extractor, grounded on the PDF text
// extraction idiom used elsewhere in the example pack for SEC filings.
type PDFExtractor struct{}

// NewPDFExtractor returns the default PDF-backed Extractor.
func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

// Extract opens path and concatenates the plain text of every page.
// Corrupt PDFs can panic deep inside third-party decompression code; that
// panic is recovered and surfaced as an error instead of crashing the run.
func (e *PDFExtractor) Extract(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("textextract: panic extracting %s: %v", path, r)
		}
	}()

	f, r, openErr := pdf.Open(path)
	if openErr != nil {
		return "", fmt.Errorf("textextract: open %s: %w", path, openErr)
	}
	defer f.Close() //nolint:errcheck

	var sb strings.Builder
	totalPages := r.NumPage()

	for i := 1; i <= totalPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")

		if sb.Len() > maxExtractedChars {
			break
		}
	}

	result := sb.String()
	if len(result) > maxExtractedChars {
		result = result[:maxExtractedChars]
	}

	return result, nil
}
