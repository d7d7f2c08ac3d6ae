package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/photogate/backend/internal/config"
	"github.com/photogate/backend/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	cfg := config.New()
	cfg.LocalStoragePath = t.TempDir()
	cfg.AppURL = "http://localhost:8080/"
	store, err := storage.NewLocalStore(cfg)
	require.NoError(t, err)
	return store
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()
	payload := []byte{0xff, 0xd8, 0x00, 0x01, 0x02, 0xfe}

	key, err := store.Put(ctx, storage.NamespaceOriginal, "photo.jpg", payload, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "original/photo.jpg", key)

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, payload, got, "round-trip must be byte-exact")
}

func TestLocalStorePutIsIdempotentByKey(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, storage.NamespaceProcessed, "pic.jpg", []byte("one"), "image/jpeg")
	require.NoError(t, err)
	key, err := store.Put(ctx, storage.NamespaceProcessed, "pic.jpg", []byte("two"), "image/jpeg")
	require.NoError(t, err)

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
}

func TestLocalStoreGetMissing(t *testing.T) {
	store := newLocalStore(t)
	_, err := store.Get(context.Background(), "original/nope.jpg")
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)
}

func TestLocalStoreDeleteIsSilentOnMissing(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()

	key, err := store.Put(ctx, storage.NamespaceOriginal, "gone.jpg", []byte("x"), "image/jpeg")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, key))
	assert.NoError(t, store.Delete(ctx, key), "second delete is a no-op")
}

func TestLocalStoreSignedURL(t *testing.T) {
	store := newLocalStore(t)
	url, err := store.SignedURL(context.Background(), "processed/pic-123.jpg", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/processed/pic-123.jpg", url)
}

func TestOriginalNameKeepsExtension(t *testing.T) {
	name := storage.OriginalName("Holiday Photo.JPG")
	assert.True(t, filepath.Ext(name) == ".jpg")
	assert.NotContains(t, name, " ")
}

func TestProcessedNameIsTimeSuffixedJPEG(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	name := storage.ProcessedName("original/abcd-1234.png", at)
	assert.Equal(t, "abcd-1234-1700000000000.jpg", name)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", storage.ContentTypeFor("a/b.JPG"))
	assert.Equal(t, "image/png", storage.ContentTypeFor("x.png"))
	assert.Equal(t, "image/heic", storage.ContentTypeFor("x.heic"))
	assert.Equal(t, "application/octet-stream", storage.ContentTypeFor("x.bin"))
}
