package feed

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/iapd-pipeline/internal/httpclient"
	"github.com/sells-group/iapd-pipeline/internal/pipelineerr"
	"github.com/sells-group/iapd-pipeline/internal/retry"
)

// fakeClient serves a canned response set keyed by exact URL, used instead
// of httpclient.New so tests don't depend on the real SEC host.
type fakeClient struct {
	byURL map[string]func() (*httpclient.Response, error)
}

func (f *fakeClient) Get(ctx context.Context, url string) (*httpclient.Response, error) {
	if fn, ok := f.byURL[url]; ok {
		return fn()
	}
	return nil, &retry.HTTPError{StatusCode: 404, URL: url}
}

func gzippedBody(t *testing.T, content string) *httpclient.Response {
	t.Helper()
	r, w := io.Pipe()
	go func() {
		gw := gzip.NewWriter(w)
		_, _ = gw.Write([]byte(content))
		_ = gw.Close()
		_ = w.Close()
	}()
	return &httpclient.Response{StatusCode: http.StatusOK, Body: r}
}

func TestAcquireFindsTodayOnFirstTry(t *testing.T) {
	dir := t.TempDir()
	today := time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)
	url := candidateURL(today)

	client := &fakeClient{byURL: map[string]func() (*httpclient.Response, error){
		url: func() (*httpclient.Response, error) { return gzippedBody(t, "<IAFirms/>"), nil },
	}}

	a := New(client, retry.NewExecutor(), zap.NewNop(), dir)
	a.clock = func() time.Time { return today }

	path, err := a.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".xml"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<IAFirms/>", string(data))
}

func TestAcquireWalksBackOnFailures(t *testing.T) {
	dir := t.TempDir()
	today := time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)
	goodDay := today.AddDate(0, 0, -2)
	url := candidateURL(goodDay)

	client := &fakeClient{byURL: map[string]func() (*httpclient.Response, error){
		url: func() (*httpclient.Response, error) { return gzippedBody(t, "<IAFirms>ok</IAFirms>"), nil },
	}}

	a := New(client, retry.NewExecutor(), zap.NewNop(), dir)
	a.clock = func() time.Time { return today }

	path, err := a.Acquire(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ok")
}

func TestAcquireFailsAfterWindowExhausted(t *testing.T) {
	dir := t.TempDir()
	today := time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)

	client := &fakeClient{byURL: map[string]func() (*httpclient.Response, error){}}

	a := New(client, retry.NewExecutor(), zap.NewNop(), dir)
	a.clock = func() time.Time { return today }

	_, err := a.Acquire(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, pipelineerr.ErrFeedUnavailable)
}

func TestCandidateURLFormat(t *testing.T) {
	day := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	url := candidateURL(day)
	assert.Equal(t, fmt.Sprintf("%s/IA_FIRM_SEC_Feed_12_01_2025.xml.gz", baseURL), url)
}

func TestAcquireAgainstRealHTTPServer(t *testing.T) {
	dir := t.TempDir()
	today := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "01_10_2025") {
			gw := gzip.NewWriter(w)
			_, _ = gw.Write([]byte("<IAFirms/>"))
			_ = gw.Close()
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := &redirectingClient{base: srv.URL}
	a := New(client, retry.NewExecutor(), zap.NewNop(), dir)
	a.clock = func() time.Time { return today }

	path, err := a.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".xml"))
}

// redirectingClient rewrites requests to hit a local httptest server while
// preserving the original path, so the real baseURL constant doesn't need
// to be reachable in tests.
type redirectingClient struct {
	base string
	real *httpclient.HTTPClient
}

func (c *redirectingClient) Get(ctx context.Context, url string) (*httpclient.Response, error) {
	suffix := url[strings.LastIndex(url, "/"):]
	if c.real == nil {
		c.real = httpclient.New(httpclient.Options{})
	}
	return c.real.Get(ctx, c.base+suffix)
}
