// Package storage provides the storage-type-agnostic blob store used for
// original uploads and processed derivatives, with local-filesystem and
// S3-compatible backends selected by configuration.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/photogate/backend/internal/config"
)

// Namespaces for the two object kinds. Keys are "<namespace>/<name>".
const (
	NamespaceOriginal  = "original"
	NamespaceProcessed = "processed"
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrUnavailable  = errors.New("blob store unavailable")
)

// BlobStore is the object-store contract. Puts are idempotent by key and
// return the stored key; deletes are silent on missing objects; any backend
// preserves byte-exact round-trips.
type BlobStore interface {
	Put(ctx context.Context, namespace, name string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// New selects the backend from configuration.
func New(cfg *config.Config) (BlobStore, error) {
	switch cfg.StorageType {
	case "s3":
		return NewS3Store(cfg)
	case "local":
		return NewLocalStore(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.StorageType)
	}
}

// OriginalName builds the object name for an uploaded original, keeping the
// caller's extension but replacing the name with a fresh uniqueifier.
func OriginalName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return uuid.New().String() + ext
}

// ProcessedName derives the time-suffixed derivative name from the original
// storage key.
func ProcessedName(originalKey string, at time.Time) string {
	base := path.Base(originalKey)
	base = strings.TrimSuffix(base, path.Ext(base))
	return fmt.Sprintf("%s-%d.jpg", base, at.UnixMilli())
}

// ContentTypeFor returns the content type for a stored key based on extension.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
