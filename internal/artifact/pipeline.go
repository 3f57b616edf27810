package artifact

import (
	"fmt"
	"time"

	"github.com/makeit3d/forge-gateway/internal/domain"
)

// Pipeline implements domain.ArtifactPipeline: ingesting a Driver's output
// (inline bytes or a remote URL) into the BlobStore under the canonical
// path scheme, with a bounded retry on the fetch leg (via Fetcher, which
// wraps cenkalti/backoff/v4; see fetcher.go). Uploads are not retried.
type Pipeline struct {
	store   domain.BlobStore
	fetcher domain.HTTPFetcher
	// FetchTimeout bounds IngestFromURL's download of the provider artifact.
	FetchTimeout time.Duration
}

// NewPipeline builds an artifact Pipeline.
func NewPipeline(store domain.BlobStore, fetcher domain.HTTPFetcher, fetchTimeout time.Duration) *Pipeline {
	return &Pipeline{store: store, fetcher: fetcher, FetchTimeout: fetchTimeout}
}

// IngestInlineBytes uploads data directly to the canonical path and returns
// its durable URL, implementing domain.ArtifactPipeline.
func (p *Pipeline) IngestInlineBytes(ctx domain.Context, job domain.Job, data []byte, contentType, logicalName string) (string, error) {
	fileName := logicalName
	if fileName == "" {
		fileName = "output." + FileExtFromContentType(contentType)
	}
	path := CanonicalPath(job, fileName)

	if err := p.store.Upload(ctx, path, data, contentType); err != nil {
		return "", fmt.Errorf("artifact: ingest inline bytes: %w", err)
	}
	return p.resolveURL(ctx, path)
}

// IngestFromURL downloads sourceURL (the provider's artifact location),
// then re-uploads the bytes to the BlobStore under the canonical path,
// implementing domain.ArtifactPipeline.
func (p *Pipeline) IngestFromURL(ctx domain.Context, job domain.Job, sourceURL, logicalName string) (string, error) {
	data, contentType, err := p.fetcher.Fetch(ctx, sourceURL, p.FetchTimeout)
	if err != nil {
		return "", fmt.Errorf("artifact: ingest from url: %w", err)
	}
	return p.IngestInlineBytes(ctx, job, data, contentType, logicalName)
}

func (p *Pipeline) resolveURL(ctx domain.Context, path string) (string, error) {
	if p.store.IsPublic() {
		return p.store.PublicURL(path), nil
	}
	return p.store.SignedURL(ctx, path, 7*24*time.Hour)
}
