// Package testsupport provides in-memory fakes and synthetic image builders
// shared by the package tests.
package testsupport

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/photogate/backend/internal/models"
	"github.com/photogate/backend/internal/pipeline"
	"github.com/photogate/backend/internal/storage"
)

// MemRecords is an in-memory record store implementing both the pipeline's
// and the admission facade's store interfaces.
type MemRecords struct {
	mu    sync.Mutex
	seq   int64
	items map[uuid.UUID]*models.Image

	// AfterGet, when set, runs after every Get with the store unlocked.
	// Tests use it to delete records mid-run.
	AfterGet func(id uuid.UUID)
}

func NewMemRecords() *MemRecords {
	return &MemRecords{items: map[uuid.UUID]*models.Image{}}
}

func (m *MemRecords) Create(ctx context.Context, img *models.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if img.ID == uuid.Nil {
		img.ID = uuid.New()
	}
	if img.Status == "" {
		img.Status = models.StatusPending
	}
	m.seq++
	now := time.Now().UTC().Add(time.Duration(m.seq) * time.Microsecond)
	img.CreatedAt = now
	img.UpdatedAt = now
	m.items[img.ID] = cloneImage(img)
	return nil
}

func (m *MemRecords) Get(ctx context.Context, id uuid.UUID) (*models.Image, error) {
	m.mu.Lock()
	img, ok := m.items[id]
	var out *models.Image
	if ok {
		out = cloneImage(img)
	}
	m.mu.Unlock()

	if m.AfterGet != nil {
		m.AfterGet(id)
	}
	if !ok {
		return nil, models.ErrNotFound
	}
	return out, nil
}

func (m *MemRecords) Update(ctx context.Context, id uuid.UUID, patch pipeline.RecordPatch) (*models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.items[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	applyPatch(img, patch)
	return cloneImage(img), nil
}

func (m *MemRecords) Transition(ctx context.Context, id uuid.UUID, from models.ImageStatus, patch pipeline.RecordPatch) (*models.Image, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.items[id]
	if !ok {
		return nil, false, models.ErrNotFound
	}
	if img.Status != from {
		return cloneImage(img), false, nil
	}
	applyPatch(img, patch)
	return cloneImage(img), true, nil
}

func (m *MemRecords) List(ctx context.Context, status models.ImageStatus, limit, offset int) ([]models.Image, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*models.Image
	for _, img := range m.items {
		if status != "" && img.Status != status {
			continue
		}
		all = append(all, img)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))

	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]models.Image, 0, end-offset)
	for _, img := range all[offset:end] {
		out = append(out, *cloneImage(img))
	}
	return out, total, nil
}

func (m *MemRecords) FindProcessedWithHash(ctx context.Context) ([]models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Image
	for _, img := range m.items {
		if img.Status == models.StatusProcessed && img.MetaData.PHash() != "" {
			out = append(out, models.Image{
				ID:           img.ID,
				OriginalName: img.OriginalName,
				MetaData:     cloneMeta(img.MetaData),
			})
		}
	}
	return out, nil
}

func (m *MemRecords) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func applyPatch(img *models.Image, patch pipeline.RecordPatch) {
	if patch.Status != nil {
		img.Status = *patch.Status
	}
	if patch.Width != nil {
		img.Width = *patch.Width
	}
	if patch.Height != nil {
		img.Height = *patch.Height
	}
	if patch.ProcessedPath != nil {
		img.ProcessedPath = *patch.ProcessedPath
	}
	if patch.ProcessedSize != nil {
		img.ProcessedSize = *patch.ProcessedSize
	}
	if patch.MetaData != nil {
		img.MetaData = cloneMeta(patch.MetaData)
	}
	img.UpdatedAt = time.Now().UTC()
}

func cloneImage(img *models.Image) *models.Image {
	out := *img
	out.MetaData = cloneMeta(img.MetaData)
	return &out
}

func cloneMeta(meta models.MetaData) models.MetaData {
	if meta == nil {
		return nil
	}
	out := models.MetaData{}
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// MemBlobs is an in-memory blob store.
type MemBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte

	// FailDelete makes every Delete fail, for log-and-proceed tests.
	FailDelete bool
}

func NewMemBlobs() *MemBlobs {
	return &MemBlobs{objects: map[string][]byte{}}
}

func (m *MemBlobs) Put(ctx context.Context, namespace, name string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := namespace + "/" + name
	m.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (m *MemBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemBlobs) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete {
		return fmt.Errorf("simulated delete failure for %s", key)
	}
	delete(m.objects, key)
	return nil
}

func (m *MemBlobs) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "mem://" + key, nil
}

// Len reports the number of stored objects.
func (m *MemBlobs) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Has reports whether a key is stored.
func (m *MemBlobs) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}
