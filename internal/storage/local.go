package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/photogate/backend/internal/config"
)

// LocalStore keeps blobs on the local filesystem. "Signed" URLs are plain
// application URLs served by the static-file route; they carry no expiry.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(cfg *config.Config) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.LocalStoragePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{
		root:    cfg.LocalStoragePath,
		baseURL: strings.TrimRight(cfg.AppURL, "/"),
	}, nil
}

func (s *LocalStore) Put(ctx context.Context, namespace, name string, data []byte, contentType string) (string, error) {
	key := namespace + "/" + name
	absPath := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", fmt.Errorf("create namespace dir: %w", err)
	}

	// Write-then-rename keeps partially written blobs invisible.
	tmp := absPath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create blob file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("sync blob: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return key, nil
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

// SignedURL returns a direct URL under the static /uploads route. The TTL is
// ignored for the local backend.
func (s *LocalStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("%s/uploads/%s", s.baseURL, key), nil
}

// Root exposes the storage root for the static-file route.
func (s *LocalStore) Root() string { return s.root }
