package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/makeit3d/forge-gateway/internal/domain"
)

// HTTPFetcher implements domain.HTTPFetcher over a plain *http.Client with a
// single bounded retry on transient failures, grounded on the teacher's
// pervasive use of cenkalti/backoff/v4 for outbound HTTP calls (ai/real
// client). This sits in the Artifact Pipeline rather than a provider
// Driver: fetching a provider's output URL or uploading to the BlobStore is
// infrastructure I/O, not the provider business logic spec §4.1 forbids
// drivers from retrying.
type HTTPFetcher struct {
	hc *http.Client
}

// NewHTTPFetcher builds a fetcher; the timeout passed to Fetch bounds each
// individual attempt.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{hc: &http.Client{}}
}

// Fetch GETs url with up to one retry on network error or 5xx, per
// domain.HTTPFetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, string, error) {
	var data []byte
	var contentType string

	op := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("artifact: build fetch request: %w", err))
		}
		resp, err := f.hc.Do(req)
		if err != nil {
			return fmt.Errorf("artifact: %w: %v", domain.ErrArtifactFetch, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("artifact: %w: %v", domain.ErrArtifactFetch, err)
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("artifact: %w: status %d", domain.ErrArtifactFetch, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("artifact: %w: status %d", domain.ErrArtifactFetch, resp.StatusCode))
		}

		data = body
		contentType = resp.Header.Get("Content-Type")
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}
