package brochure

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/iapd-pipeline/internal/csvio"
	"github.com/sells-group/iapd-pipeline/internal/httpclient"
	"github.com/sells-group/iapd-pipeline/internal/pipelineerr"
	"github.com/sells-group/iapd-pipeline/internal/ratelimit"
	"github.com/sells-group/iapd-pipeline/internal/retry"
)

const (
	brochureURLTmpl = "https://files.adviserinfo.sec.gov/IAPD/Content/Common/crd_iapd_Brochure.aspx?BRCHR_VRSN_ID=%s"
	minPDFSize      = 1024
	pdfMagic        = "%PDF-"

	// downloadWorkers bounds in-flight downloads; the shared download
	// rate limiter still governs actual network throughput, this just
	// lets that many goroutines queue on it concurrently instead of one
	// request waiting on the previous request's full round trip.
	downloadWorkers = 8
)

// Fetcher implements BrochureFetcher (component D).
type Fetcher struct {
	client    httpclient.Client
	retryer   *retry.Executor
	limiter   *ratelimit.Limiter
	log       *zap.Logger
	downloads string
}

// NewFetcher builds a Fetcher. downloadsDir is where PDFs are saved
// (spec.md §7's Data/Downloads/).
func NewFetcher(client httpclient.Client, retryer *retry.Executor, limiter *ratelimit.Limiter, log *zap.Logger, downloadsDir string) *Fetcher {
	return &Fetcher{client: client, retryer: retryer, limiter: limiter, log: log, downloads: downloadsDir}
}

// Run reads stage2Path, downloads every brochure, and writes stage3Path.
// A single download's failure never aborts the stage: stage-3 always has
// exactly one output row per stage-2 input row.
func (f *Fetcher) Run(ctx context.Context, stage2Path, stage3Path string) error {
	if err := os.MkdirAll(f.downloads, 0o755); err != nil {
		return eris.Wrap(err, "brochure: mkdir downloads dir")
	}

	refs, err := csvio.UnmarshalFile[stage2CSVRow](stage2Path)
	if err != nil {
		return err
	}

	w, err := csvio.Create(stage3Path, Stage3Header)
	if err != nil {
		return err
	}

	results := make([]Ref, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadWorkers)

	for i, row := range refs {
		i, row := i, row
		g.Go(func() error {
			ref := Ref{
				FirmID:        row.FirmID,
				FirmName:      row.FirmName,
				VersionID:     row.VersionID,
				Name:          row.Name,
				DateSubmitted: row.DateSubmitted,
				DateConfirmed: row.DateConfirmed,
			}
			results[i] = f.downloadOne(gctx, ref)
			return gctx.Err()
		})
	}
	// Per-download failures are recorded on the Ref itself (StatusFailed
	// etc.), never returned as an error, so g.Wait() only reports ctx
	// cancellation.
	if err := g.Wait(); err != nil {
		_ = w.Close()
		return err
	}

	for _, ref := range results {
		if err := w.WriteRow(ref.Stage3Row()); err != nil {
			_ = w.Close()
			return err
		}
	}

	return w.Close()
}

func (f *Fetcher) downloadOne(ctx context.Context, ref Ref) Ref {
	if ref.VersionID == "" {
		ref.DownloadStatus = StatusNoURL
		return ref
	}

	url := fmt.Sprintf(brochureURLTmpl, ref.VersionID)
	fileName := fmt.Sprintf("%s_%s.pdf", ref.FirmID, ref.VersionID)
	destPath := filepath.Join(f.downloads, fileName)

	var body []byte
	var httpErr *retry.HTTPError
	op := func(ctx context.Context) error {
		if err := f.limiter.Acquire(ctx); err != nil {
			return err
		}
		resp, err := f.client.Get(ctx, url)
		if resp != nil && resp.Body != nil {
			defer resp.Body.Close() //nolint:errcheck
		}
		if err != nil {
			if he, ok := err.(*retry.HTTPError); ok {
				httpErr = he
			}
			return err
		}
		b, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return readErr
		}
		body = b
		return nil
	}

	err := f.retryer.Run(ctx, op, retry.ClassifyHTTP, 4)
	switch {
	case err != nil && httpErr != nil && httpErr.StatusCode == 404:
		ref.DownloadStatus = StatusInvalidURL
		return ref
	case err != nil:
		dlErr := &pipelineerr.DownloadFailure{VersionID: ref.VersionID, Cause: err}
		f.log.Warn("brochure: download failed after retries", zap.Error(dlErr))
		ref.DownloadStatus = StatusFailed
		return ref
	}

	if !isValidPDF(body) {
		pdfErr := &pipelineerr.PdfInvalid{VersionID: ref.VersionID, Reason: "failed magic-byte/size check"}
		f.log.Warn("brochure: invalid pdf", zap.Error(pdfErr))
		ref.DownloadStatus = StatusInvalidURL
		return ref
	}

	if werr := os.WriteFile(destPath, body, 0o644); werr != nil {
		dlErr := &pipelineerr.DownloadFailure{VersionID: ref.VersionID, Cause: werr}
		f.log.Warn("brochure: write pdf failed", zap.String("path", destPath), zap.Error(dlErr))
		ref.DownloadStatus = StatusFailed
		return ref
	}

	ref.DownloadStatus = StatusSuccess
	ref.FileName = fileName
	return ref
}

func isValidPDF(body []byte) bool {
	return len(body) >= minPDFSize && len(body) >= len(pdfMagic) && string(body[:len(pdfMagic)]) == pdfMagic
}

type stage2CSVRow struct {
	FirmID        string `csv:"firmId"`
	FirmName      string `csv:"firmName"`
	VersionID     string `csv:"brochureVersionId"`
	Name          string `csv:"brochureName"`
	DateSubmitted string `csv:"dateSubmitted"`
	DateConfirmed string `csv:"dateConfirmed"`
}
