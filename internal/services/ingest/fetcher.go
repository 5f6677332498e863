// -----------------------------------------------------------------------
// Content Fetcher - resolves inline or URL content with retry, URL
// guarding, and per-type sanitization
// -----------------------------------------------------------------------

package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/httpclient"
	"github.com/ternarybob/respondeo/internal/models"
)

// Fetcher resolves ingest content. URL content is fetched with
// exponential backoff on transport failures; inline content passes
// through (PDF inline content is base64).
type Fetcher struct {
	client  *http.Client
	backoff common.BackoffPolicy
	// validate guards fetch targets; tests swap it to reach loopback
	// servers
	validate func(string) error
	logger   arbor.ILogger
}

// NewFetcher creates a fetcher with the given retry budget
func NewFetcher(maxRetries int, logger arbor.ILogger) *Fetcher {
	policy := common.DefaultBackoffPolicy(maxRetries)
	policy.Retryable = retryableFetchError

	return &Fetcher{
		client:   httpclient.NewFetchClient(30 * time.Second),
		backoff:  policy,
		validate: ValidateURL,
		logger:   logger,
	}
}

// IsURL reports whether the content field is a fetch target
func IsURL(content string) bool {
	return strings.HasPrefix(content, "http://") || strings.HasPrefix(content, "https://")
}

// ValidateURL rejects non-http(s) schemes and private or loopback
// hosts, so ingest cannot be used to probe internal networks
func ValidateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %v", models.ErrValidation, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: only http and https URLs are allowed", models.ErrValidation)
	}

	host := parsed.Hostname()
	if host == "localhost" || host == "127.0.0.1" || host == "0.0.0.0" {
		return fmt.Errorf("%w: URL targets a blocked host", models.ErrValidation)
	}
	for _, prefix := range []string{"127.", "10.", "192.168.", "172.16."} {
		if strings.HasPrefix(host, prefix) {
			return fmt.Errorf("%w: URL targets a private address range", models.ErrValidation)
		}
	}
	return nil
}

// FetchText resolves text-bearing content (text, html, markdown)
func (f *Fetcher) FetchText(ctx context.Context, content string) (string, error) {
	if !IsURL(content) {
		f.logger.Debug().Int("content_length", len(content)).Msg("Using inline content")
		return content, nil
	}

	raw, err := f.fetchURL(ctx, content)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// FetchBytes resolves binary content. Inline content is base64.
func (f *Fetcher) FetchBytes(ctx context.Context, content string) ([]byte, error) {
	if IsURL(content) {
		return f.fetchURL(ctx, content)
	}

	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("%w: inline PDF content must be base64: %v", models.ErrValidation, err)
	}
	return decoded, nil
}

// fetchURL retrieves the URL body under the backoff policy
func (f *Fetcher) fetchURL(ctx context.Context, target string) ([]byte, error) {
	if err := f.validate(target); err != nil {
		return nil, err
	}

	var body []byte
	err := f.backoff.Retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrValidation, err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrFetch, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			err := fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, target)
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return fmt.Errorf("%w: %v", models.ErrFetch, err)
			}
			return err
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: reading body: %v", models.ErrFetch, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.logger.Info().Str("url", target).Int("content_length", len(body)).Msg("Fetched content")
	return body, nil
}

// retryableFetchError admits transport and upstream availability
// failures to the retry loop; validation and 4xx failures are final
func retryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, models.ErrFetch)
}

// SanitizeHTML removes script, style, and other non-content elements
// while keeping the markup the chunker needs for heading extraction
func SanitizeHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("%w: invalid HTML: %v", models.ErrValidation, err)
	}

	doc.Find("script, style, noscript, iframe").Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render sanitized HTML: %w", err)
	}
	return cleaned, nil
}
