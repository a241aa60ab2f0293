// Package feed implements component A (FeedAcquirer): locating, downloading,
// and gunzipping the most recent daily IAPD XML feed.
package feed

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/iapd-pipeline/internal/httpclient"
	"github.com/sells-group/iapd-pipeline/internal/pipelineerr"
	"github.com/sells-group/iapd-pipeline/internal/retry"
)

const (
	baseURL     = "https://reports.adviserinfo.sec.gov/reports/CompilationReports"
	walkbackMax = 7 // today plus up to 7 prior days = 8 candidates total
)

// Acquirer downloads and decompresses the newest available daily feed.
type Acquirer struct {
	client  httpclient.Client
	retryer *retry.Executor
	log     *zap.Logger
	destDir string
	clock   func() time.Time
}

// New builds an Acquirer. destDir is the directory feed files are saved
// into (spec.md §7's Data/FirmFiles/).
func New(client httpclient.Client, retryer *retry.Executor, log *zap.Logger, destDir string) *Acquirer {
	return &Acquirer{client: client, retryer: retryer, log: log, destDir: destDir, clock: time.Now}
}

func candidateURL(day time.Time) string {
	return fmt.Sprintf("%s/IA_FIRM_SEC_Feed_%s.xml.gz", baseURL, day.Format("01_02_2006"))
}

// Acquire walks back from today up to walkbackMax days, downloading the
// first candidate that responds 200 with a nonempty body, then gunzips it
// to destDir. Returns pipelineerr.ErrFeedUnavailable if every candidate in
// the window 404s or fails after retry.
func (a *Acquirer) Acquire(ctx context.Context) (string, error) {
	today := a.clock()

	for offset := 0; offset <= walkbackMax; offset++ {
		day := today.AddDate(0, 0, -offset)
		url := candidateURL(day)

		gzPath, err := a.tryDownload(ctx, url, day)
		if err != nil {
			a.log.Debug("feed: candidate unavailable", zap.String("url", url), zap.Error(err))
			continue
		}

		xmlPath, err := a.gunzip(gzPath)
		if err != nil {
			return "", eris.Wrapf(err, "feed: gunzip %s", gzPath)
		}

		a.log.Info("feed: acquired", zap.String("url", url), zap.String("path", xmlPath))
		return xmlPath, nil
	}

	return "", pipelineerr.ErrFeedUnavailable
}

func (a *Acquirer) tryDownload(ctx context.Context, url string, day time.Time) (string, error) {
	destPath := filepath.Join(a.destDir, fmt.Sprintf("IA_FIRM_SEC_Feed_%s.xml.gz", day.Format("01_02_2006")))

	var resp *httpclient.Response
	op := func(ctx context.Context) error {
		r, err := a.client.Get(ctx, url)
		if r != nil {
			resp = r
		}
		return err
	}

	err := a.retryer.Run(ctx, op, retry.ClassifyHTTP, 3)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close() //nolint:errcheck
	}
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(a.destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "feed: mkdir dest dir")
	}

	f, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrapf(err, "feed: create %s", destPath)
	}
	defer f.Close() //nolint:errcheck

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return "", eris.Wrapf(err, "feed: write %s", destPath)
	}
	if n == 0 {
		return "", eris.New("feed: empty body")
	}

	return destPath, nil
}

func (a *Acquirer) gunzip(gzPath string) (string, error) {
	xmlPath := gzPath[:len(gzPath)-len(".gz")]

	in, err := os.Open(gzPath)
	if err != nil {
		return "", eris.Wrapf(err, "feed: open %s", gzPath)
	}
	defer in.Close() //nolint:errcheck

	gr, err := gzip.NewReader(in)
	if err != nil {
		return "", eris.Wrapf(err, "feed: gzip reader %s", gzPath)
	}
	defer gr.Close() //nolint:errcheck

	out, err := os.Create(xmlPath)
	if err != nil {
		return "", eris.Wrapf(err, "feed: create %s", xmlPath)
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, gr); err != nil {
		return "", eris.Wrapf(err, "feed: decompress into %s", xmlPath)
	}

	return xmlPath, nil
}
