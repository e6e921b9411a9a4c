package blobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"k8s.io/klog/v2"
)

// FileStore stores engine plans under a local directory, for development
// and air-gapped hosts. It honors the Store contract: uploading a key that
// already exists does nothing.
type FileStore struct {
	Dir string
}

var _ Store = (*FileStore)(nil)

func (s *FileStore) Upload(ctx context.Context, sourcePath string, key string) error {
	log := klog.FromContext(ctx)

	destPath := filepath.Join(s.Dir, key)
	if _, err := os.Stat(destPath); err == nil {
		log.Info("engine plan already exists", "path", destPath)
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking %q: %w", destPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer src.Close()

	startedAt := time.Now()
	n, err := writeToFile(ctx, src, destPath)
	if err != nil {
		return fmt.Errorf("storing %q: %w", destPath, err)
	}
	log.Info("stored engine plan", "source", sourcePath, "destination", destPath, "bytes", n, "duration", time.Since(startedAt))
	return nil
}

func (s *FileStore) Download(ctx context.Context, key string, destPath string) error {
	srcPath := filepath.Join(s.Dir, key)
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("engine plan %q: %w", srcPath, err)
	}
	defer src.Close()

	if _, err := writeToFile(ctx, src, destPath); err != nil {
		return fmt.Errorf("copying %q: %w", srcPath, err)
	}
	return nil
}
