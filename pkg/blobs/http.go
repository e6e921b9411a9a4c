package blobs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"k8s.io/klog/v2"
)

// HTTPReader fetches engine plans from an HTTP blob server, typically an
// internal cache in front of object storage.
type HTTPReader struct {
	// BaseURL is the base URL of the blob server.
	BaseURL *url.URL
}

var _ Reader = (*HTTPReader)(nil)

func (h *HTTPReader) Download(ctx context.Context, key string, destPath string) error {
	u := h.BaseURL.JoinPath(key)
	return h.downloadToFile(ctx, u.String(), destPath)
}

func (h *HTTPReader) downloadToFile(ctx context.Context, url string, destPath string) error {
	log := klog.FromContext(ctx)

	log.Info("downloading engine plan", "url", url, "destination", destPath)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	startedAt := time.Now()

	httpClient := &http.Client{}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		if resp.StatusCode == 404 {
			return fmt.Errorf("engine plan not found: %w", os.ErrNotExist)
		}
		return fmt.Errorf("unexpected status downloading from upstream source: %v", resp.Status)
	}

	n, err := writeToFile(ctx, resp.Body, destPath)
	if err != nil {
		return fmt.Errorf("downloading from %q: %w", url, err)
	}

	log.Info("downloaded engine plan", "url", url, "bytes", n, "duration", time.Since(startedAt))

	return nil
}
