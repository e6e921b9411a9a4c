package blobs

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Push uploads a local engine plan to a storage reference so other hosts
// can Fetch it. Supported references are gs://bucket/key and plain paths
// (stored via FileStore). A reference that already holds an object is left
// untouched.
func Push(ctx context.Context, sourcePath string, ref string) error {
	switch {
	case strings.HasPrefix(ref, "gs://"):
		bucket, object, ok := strings.Cut(strings.TrimPrefix(ref, "gs://"), "/")
		if !ok || object == "" {
			return fmt.Errorf("invalid GCS reference %q", ref)
		}
		store := &GCSStore{Bucket: bucket}
		return store.Upload(ctx, sourcePath, object)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return fmt.Errorf("cannot push to %q: http sources are read-only", ref)
	default:
		dir, key := filepath.Split(ref)
		if key == "" {
			return fmt.Errorf("invalid destination %q: missing file name", ref)
		}
		store := &FileStore{Dir: filepath.Clean(dir)}
		return store.Upload(ctx, sourcePath, key)
	}
}
