package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/photogate/backend/internal/config"
	"github.com/photogate/backend/internal/models"
	"github.com/photogate/backend/internal/pipeline"
	"github.com/photogate/backend/internal/storage"
)

// ErrAlreadyProcessed guards reprocess requests against accepted images.
var ErrAlreadyProcessed = errors.New("image already processed")

// RecordStore is the record-store surface the admission facade needs.
// *RecordService implements it (and the pipeline's narrower view).
type RecordStore interface {
	Create(ctx context.Context, img *models.Image) error
	Get(ctx context.Context, id uuid.UUID) (*models.Image, error)
	Transition(ctx context.Context, id uuid.UUID, from models.ImageStatus, patch pipeline.RecordPatch) (*models.Image, bool, error)
	List(ctx context.Context, status models.ImageStatus, limit, offset int) ([]models.Image, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Scheduler dispatches background pipeline runs. *pipeline.Pool implements it.
type Scheduler interface {
	Submit(id uuid.UUID) error
}

// AdmissionService accepts uploads, schedules admission runs, and services
// listing, deletion and manual re-processing.
type AdmissionService struct {
	records RecordStore
	blobs   storage.BlobStore
	pool    Scheduler
	cfg     *config.Config
}

func NewAdmissionService(records RecordStore, blobs storage.BlobStore, pool Scheduler, cfg *config.Config) *AdmissionService {
	return &AdmissionService{records: records, blobs: blobs, pool: pool, cfg: cfg}
}

// UploadFile is one incoming multipart file.
type UploadFile struct {
	Name string
	Data []byte
}

// UploadSummary is the immediate per-file response row; the pipeline run
// proceeds in the background.
type UploadSummary struct {
	ID           uuid.UUID          `json:"id,omitempty"`
	Status       models.ImageStatus `json:"status,omitempty"`
	OriginalName string             `json:"originalName"`
	Error        string             `json:"error,omitempty"`
}

// UploadBatch persists each file, creates its PENDING record, and schedules a
// pipeline run. Failures are per-file: successful creations persist even when
// siblings fail.
func (s *AdmissionService) UploadBatch(ctx context.Context, files []UploadFile) []UploadSummary {
	summaries := make([]UploadSummary, 0, len(files))
	for _, f := range files {
		summary, err := s.admit(ctx, f)
		if err != nil {
			log.Printf("admission: upload of %q failed: %v", f.Name, err)
			summaries = append(summaries, UploadSummary{OriginalName: f.Name, Error: err.Error()})
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

func (s *AdmissionService) admit(ctx context.Context, f UploadFile) (UploadSummary, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Name), "."))

	contentType := http.DetectContentType(f.Data)
	if !strings.HasPrefix(contentType, "image/") {
		// HEIC/HEIF sniff as octet-stream; they are admitted by extension and
		// rejected later by the pipeline if they cannot be decoded.
		if ext != "heic" && ext != "heif" {
			return UploadSummary{}, fmt.Errorf("invalid content type: expected image, got %s", contentType)
		}
		contentType = storage.ContentTypeFor(f.Name)
	}

	name := storage.OriginalName(f.Name)
	storedKey, err := s.blobs.Put(ctx, storage.NamespaceOriginal, name, f.Data, contentType)
	if err != nil {
		return UploadSummary{}, fmt.Errorf("store original: %w", err)
	}

	img := &models.Image{
		OriginalName: f.Name,
		OriginalSize: int64(len(f.Data)),
		OriginalPath: storedKey,
		FileType:     ext,
		Status:       models.StatusPending,
	}
	if err := s.records.Create(ctx, img); err != nil {
		// Keep the store free of orphaned blobs when the record fails.
		if derr := s.blobs.Delete(ctx, storedKey); derr != nil {
			log.Printf("admission: orphan blob cleanup failed for %s: %v", storedKey, derr)
		}
		return UploadSummary{}, err
	}

	if err := s.pool.Submit(img.ID); err != nil {
		// The record persists; the client can request processing later.
		log.Printf("admission: could not schedule run for %s: %v", img.ID, err)
	}

	return UploadSummary{ID: img.ID, Status: img.Status, OriginalName: img.OriginalName}, nil
}

// ImageView is a record plus its minted access URLs.
type ImageView struct {
	models.Image
	OriginalURL  string `json:"originalUrl,omitempty"`
	ProcessedURL string `json:"processedUrl,omitempty"`
}

// List returns a page of records, newest first, each with signed URLs.
func (s *AdmissionService) List(ctx context.Context, status models.ImageStatus, limit, offset int) ([]ImageView, int64, error) {
	images, total, err := s.records.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views := make([]ImageView, len(images))
	for i := range images {
		views[i] = s.view(ctx, &images[i])
	}
	return views, total, nil
}

// GetByID returns a single record with signed URLs.
func (s *AdmissionService) GetByID(ctx context.Context, id uuid.UUID) (*ImageView, error) {
	img, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.view(ctx, img)
	return &view, nil
}

func (s *AdmissionService) view(ctx context.Context, img *models.Image) ImageView {
	view := ImageView{Image: *img}
	if img.OriginalPath != "" {
		url, err := s.blobs.SignedURL(ctx, img.OriginalPath, s.cfg.SignedURLTTL)
		if err != nil {
			log.Printf("admission: signing original URL for %s: %v", img.ID, err)
		} else {
			view.OriginalURL = url
		}
	}
	if img.ProcessedPath != "" {
		url, err := s.blobs.SignedURL(ctx, img.ProcessedPath, s.cfg.SignedURLTTL)
		if err != nil {
			log.Printf("admission: signing processed URL for %s: %v", img.ID, err)
		} else {
			view.ProcessedURL = url
		}
	}
	return view
}

// Delete removes both blobs, then the record. A blob delete failure is logged
// and the record is removed anyway.
func (s *AdmissionService) Delete(ctx context.Context, id uuid.UUID) error {
	img, err := s.records.Get(ctx, id)
	if err != nil {
		return err
	}
	if img.OriginalPath != "" {
		if err := s.blobs.Delete(ctx, img.OriginalPath); err != nil {
			log.Printf("admission: deleting original blob %s: %v", img.OriginalPath, err)
		}
	}
	if img.ProcessedPath != "" {
		if err := s.blobs.Delete(ctx, img.ProcessedPath); err != nil {
			log.Printf("admission: deleting processed blob %s: %v", img.ProcessedPath, err)
		}
	}
	return s.records.Delete(ctx, id)
}

// reprocessAttempts bounds the claim retries when a concurrent pipeline run
// keeps moving the record's status.
const reprocessAttempts = 3

// Reprocess sends a non-accepted record back through the pipeline. The reset
// is a conditional transition keyed on the status actually read, so a record
// that reaches PROCESSED under a concurrent run is reported as already
// processed instead of being blindly reset. The same patch clears the
// derivative fields and metadata: a PENDING record never carries a
// processedPath.
func (s *AdmissionService) Reprocess(ctx context.Context, id uuid.UUID) error {
	for attempt := 0; attempt < reprocessAttempts; attempt++ {
		img, err := s.records.Get(ctx, id)
		if err != nil {
			return err
		}
		if img.Status == models.StatusProcessed {
			return ErrAlreadyProcessed
		}

		pending := models.StatusPending
		var (
			noPath string
			zero   int
			zero64 int64
		)
		_, ok, err := s.records.Transition(ctx, id, img.Status, pipeline.RecordPatch{
			Status:        &pending,
			Width:         &zero,
			Height:        &zero,
			ProcessedPath: &noPath,
			ProcessedSize: &zero64,
			MetaData:      models.MetaData{},
		})
		if err != nil {
			return err
		}
		if !ok {
			// Lost the claim to a concurrent transition; re-read and retry.
			continue
		}
		return s.pool.Submit(id)
	}
	return fmt.Errorf("reprocess %s: lost the status claim %d times", id, reprocessAttempts)
}
