package blobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"
)

// Fetch resolves an engine plan reference to a local file path. A plain
// path is returned as-is; gs:// and http(s):// references are downloaded
// into cacheDir (keyed by a digest of the reference) and reused on later
// calls.
func Fetch(ctx context.Context, ref string, cacheDir string) (string, error) {
	log := klog.FromContext(ctx)

	var reader Reader
	var key string
	switch {
	case strings.HasPrefix(ref, "gs://"):
		bucket, object, ok := strings.Cut(strings.TrimPrefix(ref, "gs://"), "/")
		if !ok || object == "" {
			return "", fmt.Errorf("invalid GCS reference %q", ref)
		}
		reader = &GCSStore{Bucket: bucket}
		key = object
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("invalid URL %q: %w", ref, err)
		}
		key = strings.TrimPrefix(u.Path, "/")
		u.Path = ""
		reader = &HTTPReader{BaseURL: u}
	default:
		if _, err := os.Stat(ref); err != nil {
			return "", fmt.Errorf("engine plan %q: %w", ref, err)
		}
		return ref, nil
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", fmt.Errorf("creating cache directory %q: %w", cacheDir, err)
	}

	digest := sha256.Sum256([]byte(ref))
	localPath := filepath.Join(cacheDir, hex.EncodeToString(digest[:16]))
	if _, err := os.Stat(localPath); err == nil {
		log.Info("using cached engine plan", "ref", ref, "path", localPath)
		return localPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("checking cache for %q: %w", ref, err)
	}

	if err := reader.Download(ctx, key, localPath); err != nil {
		return "", err
	}
	return localPath, nil
}
