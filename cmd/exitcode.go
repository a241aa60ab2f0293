package main

import (
	"errors"

	"github.com/sells-group/iapd-pipeline/internal/pipelineerr"
)

// exitCodeFor maps a pipeline error to the process exit code spec.md §6
// fixes. A nil err (never passed here, RunE only returns non-nil on
// failure) would map to exitOK.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	switch {
	case errors.Is(err, pipelineerr.ErrConfiguration):
		return exitConfiguration
	case errors.Is(err, pipelineerr.ErrFeedUnavailable):
		return exitFeedUnavail
	case errors.Is(err, pipelineerr.ErrXMLParseFatal):
		return exitFatalIO
	default:
		return exitFatalIO
	}
}
