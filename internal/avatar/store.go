package avatar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore persists processed avatar images and serves them back by
// URL. The disk implementation is fronted by the static file route;
// swapping in object storage only means another implementation.
type BlobStore interface {
	Put(ctx context.Context, name string, data []byte) (url string, err error)
	RemoveAll(ctx context.Context, prefix string) error
}

// DiskStore writes avatars to a local directory.
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates a DiskStore rooted at dir. baseURL is the public
// prefix the files are served under, without a trailing slash.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create avatar dir: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *DiskStore) Put(_ context.Context, name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write avatar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("publish avatar: %w", err)
	}
	return s.baseURL + "/" + name, nil
}

// RemoveAll deletes every stored avatar whose name starts with prefix.
// Used by account deletion; missing files are not an error.
func (s *DiskStore) RemoveAll(_ context.Context, prefix string) error {
	matches, err := filepath.Glob(filepath.Join(s.dir, prefix+"*"))
	if err != nil {
		return fmt.Errorf("list avatars: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove avatar: %w", err)
		}
	}
	return nil
}

// Dir returns the directory avatars are written to, for the static
// file route.
func (s *DiskStore) Dir() string { return s.dir }
