package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the interface for object storage operations.
// Keys are full object keys including any namespace prefix; see Keys for
// how the temporary and permanent namespaces are laid out.
type ObjectStorage interface {
	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download downloads an object from storage
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the URL for accessing an object
	GetURL(key string) string

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// EnsureBucket creates the backing bucket if it doesn't exist
	EnsureBucket(ctx context.Context) error
}

// Copier is implemented by backends with a server-side copy primitive.
// Callers that need copy semantics should type-assert and fall back to
// Download + Upload when the backend lacks it, to avoid double transfer
// only where the store can actually avoid it.
type Copier interface {
	Copy(ctx context.Context, srcKey, dstKey string) error
}
