// -----------------------------------------------------------------------
// HTTP Client - shared outbound client construction
// -----------------------------------------------------------------------

package httpclient

import (
	"net/http"
	"time"
)

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewFetchClient creates the client used for document fetching. It
// follows redirects up to the default limit and enforces the caller's
// timeout on the whole exchange.
func NewFetchClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}
