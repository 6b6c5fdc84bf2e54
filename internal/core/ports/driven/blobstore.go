package driven

import (
	"context"
	"time"
)

// BlobStore holds the uploaded original files.
type BlobStore interface {
	// Upload stores content under name, overwriting any previous blob,
	// and returns the blob URL. Implementations retry transient failures.
	Upload(ctx context.Context, name string, content []byte) (string, error)

	// Download retrieves a blob's content.
	Download(ctx context.Context, name string) ([]byte, error)

	// Delete removes a blob. A missing blob is treated as success.
	Delete(ctx context.Context, name string) error

	// SignedURL returns a time-limited read URL for a blob.
	SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error)
}
