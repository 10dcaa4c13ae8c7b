// Package fileblob writes snapshot images to a local directory.
package fileblob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/OCAP2/tacmap/internal/blob"
)

// Store writes under dir and hands out URLs below publicBase.
type Store struct {
	dir        string
	publicBase string
	now        func() time.Time
}

// New creates a store rooted at dir.
func New(dir, publicBase string) *Store {
	return &Store{dir: dir, publicBase: publicBase, now: time.Now}
}

// Dir returns the root directory, for serving it over HTTP.
func (s *Store) Dir() string {
	return s.dir
}

// Store writes data to <dir>/<missionID>/<name> and returns its public URL.
func (s *Store) Store(ctx context.Context, missionID string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := blob.ObjectKey("", missionID, contentType, s.now())
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return blob.PublicURL(s.publicBase, key), nil
}
