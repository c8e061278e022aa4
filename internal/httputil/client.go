package httputil

import (
	"net/http"
	"time"
)

// ReadTimeout bounds a single feature-group read. The feature store returns
// the whole prediction table in one response, so a slow read is treated as an
// outage and the caller's fallback chain takes over well before the next
// hourly poll.
const ReadTimeout = 20 * time.Second

// NewClient returns an HTTP client configured for upstream table reads.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: ReadTimeout,
	}
}
