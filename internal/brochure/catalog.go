package brochure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/iapd-pipeline/internal/csvio"
	"github.com/sells-group/iapd-pipeline/internal/httpclient"
	"github.com/sells-group/iapd-pipeline/internal/incremental"
	"github.com/sells-group/iapd-pipeline/internal/pipelineerr"
	"github.com/sells-group/iapd-pipeline/internal/ratelimit"
	"github.com/sells-group/iapd-pipeline/internal/retry"
)

const searchAPIURL = "https://api.adviserinfo.sec.gov/search/firm/%s?hl=true&nrows=12&query=&start=0&wt=json"

// catalogWorkers bounds in-flight firm lookups; the shared API rate
// limiter still governs actual request throughput.
const catalogWorkers = 8

// searchResponse is the firm-info JSON search response. The adviserinfo API
// nests results under hits.hits[]._source; brochures may also appear at a
// flat top-level "brochures" key on older endpoint variants, so both are
// checked (spec.md §6 leaves exact path to the implementer).
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source struct {
				IAPDBrochures []apiBrochure `json:"iabdBrochures"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Brochures []apiBrochure `json:"brochures"`
}

type apiBrochure struct {
	VersionID     string `json:"brochureVersionId"`
	Name          string `json:"brochureName"`
	DateSubmitted string `json:"dateSubmitted"`
	DateConfirmed string `json:"dateConfirmed"`
}

func (r searchResponse) brochures() []apiBrochure {
	for _, h := range r.Hits.Hits {
		if len(h.Source.IAPDBrochures) > 0 {
			return h.Source.IAPDBrochures
		}
	}
	return r.Brochures
}

// Stats summarizes one Catalog run; logged, not persisted (spec.md §4.C).
type Stats struct {
	FirmsProcessed     int
	FirmsWithBrochures int
	BrochuresEmitted   int
	BrochuresFiltered  int
}

// Catalog implements BrochureCatalog (component C).
type Catalog struct {
	client  httpclient.Client
	retryer *retry.Executor
	limiter *ratelimit.Limiter
	log     *zap.Logger
}

// NewCatalog builds a Catalog.
func NewCatalog(client httpclient.Client, retryer *retry.Executor, limiter *ratelimit.Limiter, log *zap.Logger) *Catalog {
	return &Catalog{client: client, retryer: retryer, limiter: limiter, log: log}
}

// Run reads stage1Path, queries the search API per firm, drops brochures
// already present in existing, and writes stage2Path.
func (c *Catalog) Run(ctx context.Context, stage1Path, stage2Path string, existing *incremental.Set) (Stats, error) {
	records, err := csvio.UnmarshalFile[firmCSVRow](stage1Path)
	if err != nil {
		return Stats{}, err
	}

	w, err := csvio.Create(stage2Path, Stage2Header)
	if err != nil {
		return Stats{}, err
	}

	type firmResult struct {
		refs     []Ref
		filtered int
	}
	results := make([]firmResult, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catalogWorkers)
	for i, rec := range records {
		i, rec := i, rec
		if rec.FirmCrdNb == "" {
			continue
		}
		g.Go(func() error {
			refs, filtered := c.fetchOne(gctx, rec.FirmCrdNb, rec.BusinessName, existing)
			results[i] = firmResult{refs: refs, filtered: filtered}
			return gctx.Err()
		})
	}
	// fetchOne never returns an error (API/JSON failures are logged and
	// treated as zero brochures), so g.Wait() only reports ctx cancellation.
	if err := g.Wait(); err != nil {
		_ = w.Close()
		return Stats{}, err
	}

	var stats Stats
	stats.FirmsProcessed = len(records)
	for _, res := range results {
		stats.BrochuresFiltered += res.filtered
		if len(res.refs) > 0 {
			stats.FirmsWithBrochures++
		}
		for _, ref := range res.refs {
			if err := w.WriteRow(ref.Stage2Row()); err != nil {
				_ = w.Close()
				return stats, err
			}
			stats.BrochuresEmitted++
		}
	}

	if err := w.Close(); err != nil {
		return stats, err
	}

	avg := 0.0
	if stats.FirmsProcessed > 0 {
		avg = float64(stats.BrochuresEmitted) / float64(stats.FirmsProcessed)
	}
	c.log.Info("brochure: catalog complete",
		zap.Int("firms_processed", stats.FirmsProcessed),
		zap.Int("firms_with_brochures", stats.FirmsWithBrochures),
		zap.Int("brochures_emitted", stats.BrochuresEmitted),
		zap.Int("brochures_filtered", stats.BrochuresFiltered),
		zap.Float64("avg_brochures_per_firm", avg),
	)

	return stats, nil
}

// fetchOne queries the search API for one firm and returns the surviving
// (non-filtered) brochure refs, plus the count of entries the incremental
// filter dropped. API and JSON failures are logged and treated as zero
// brochures; they never abort the stage.
func (c *Catalog) fetchOne(ctx context.Context, crd, firmName string, existing *incremental.Set) ([]Ref, int) {
	url := fmt.Sprintf(searchAPIURL, crd)

	var body []byte
	op := func(ctx context.Context) error {
		if err := c.limiter.Acquire(ctx); err != nil {
			return err
		}
		resp, err := c.client.Get(ctx, url)
		if resp != nil && resp.Body != nil {
			defer resp.Body.Close() //nolint:errcheck
		}
		if err != nil {
			return err
		}
		b, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return readErr
		}
		body = b
		return nil
	}

	if err := c.retryer.Run(ctx, op, retry.ClassifyHTTP, 4); err != nil {
		apiErr := &pipelineerr.ApiFailure{CRDNumber: crd, Cause: err}
		c.log.Warn("brochure: search API failed after retries", zap.Error(apiErr))
		return nil, 0
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		apiErr := &pipelineerr.ApiFailure{CRDNumber: crd, Cause: err}
		c.log.Warn("brochure: search API json parse failed", zap.Error(apiErr))
		return nil, 0
	}

	var refs []Ref
	filtered := 0
	for _, b := range parsed.brochures() {
		if existing.Contains(b.VersionID) {
			filtered++
			continue
		}
		refs = append(refs, Ref{
			FirmID:        crd,
			FirmName:      firmName,
			VersionID:     b.VersionID,
			Name:          b.Name,
			DateSubmitted: b.DateSubmitted,
			DateConfirmed: b.DateConfirmed,
		})
	}
	return refs, filtered
}

// firmCSVRow decodes the stage-1 columns this package needs.
type firmCSVRow struct {
	FirmCrdNb    string `csv:"FirmCrdNb"`
	BusinessName string `csv:"Business Name"`
}
