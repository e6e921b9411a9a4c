// Package blobs fetches compiled engine plans from blob storage. Plans are
// opaque byte blobs addressed by object key; the engine layer consumes them
// from a local file path.
package blobs

import "context"

type Reader interface {
	// Download fetches the object at key into destPath. If no such
	// object exists it returns an error for which
	// errors.Is(err, os.ErrNotExist) is true.
	Download(ctx context.Context, key string, destPath string) error
}

type Store interface {
	Reader

	// Upload stores the file at sourcePath under key. Uploading a key
	// that already exists does nothing and returns no error.
	Upload(ctx context.Context, sourcePath string, key string) error
}
