package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// HTTPError carries a status code so ClassifyHTTP can apply the spec's
// per-status rules without re-parsing error strings.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return http.StatusText(e.StatusCode) + " from " + e.URL
}

// ClassifyHTTP implements spec.md §4.H's classification rules:
// network timeouts, connection resets, 5xx, and 429 are Transient; 4xx
// other than 408/429 are Terminal (this includes 403, per spec.md §9
// point 3); unknown errors default to Transient.
func ClassifyHTTP(err error) Classification {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusRequestTimeout, httpErr.StatusCode == http.StatusTooManyRequests:
			return Transient
		case httpErr.StatusCode >= 500:
			return Transient
		case httpErr.StatusCode >= 400:
			return Terminal
		default:
			return Transient
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Transient
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}

	// Connection reset and similar transport faults surface as plain
	// *net.OpError / syscall errors, not net.Error with Timeout()==true;
	// treat unknown errors as Transient by default, as spec.md §4.H allows.
	return Transient
}
