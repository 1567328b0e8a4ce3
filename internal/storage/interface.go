package storage

import (
	"context"
	"io"
)

// ObjectStorage is the durable image host behind the persister.
type ObjectStorage interface {
	// EnsureBucket creates the backing bucket if it does not exist yet.
	EnsureBucket(ctx context.Context) error

	// Upload stores an object and returns nil on success.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// GetURL returns the stable public URL for an object.
	GetURL(key string) string

	// Delete removes an object.
	Delete(ctx context.Context, key string) error

	// Exists checks whether an object is present.
	Exists(ctx context.Context, key string) (bool, error)
}
