package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/photogate/backend/internal/models"
	"github.com/photogate/backend/internal/pipeline"
	"gorm.io/gorm"
)

// RecordService is the Postgres-backed image record store. Single-record
// updates are linearizable: status claims go through conditional UPDATEs and
// win or lose on RowsAffected.
type RecordService struct {
	db *gorm.DB
}

func NewRecordService(db *gorm.DB) *RecordService {
	return &RecordService{db: db}
}

func (s *RecordService) Create(ctx context.Context, img *models.Image) error {
	if err := s.db.WithContext(ctx).Create(img).Error; err != nil {
		return fmt.Errorf("create image record: %w", err)
	}
	return nil
}

func (s *RecordService) Get(ctx context.Context, id uuid.UUID) (*models.Image, error) {
	var img models.Image
	err := s.db.WithContext(ctx).First(&img, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load image record: %w", err)
	}
	return &img, nil
}

func (s *RecordService) Update(ctx context.Context, id uuid.UUID, patch pipeline.RecordPatch) (*models.Image, error) {
	updates := patchUpdates(patch)
	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.Image{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update image record: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, models.ErrNotFound
		}
	}
	return s.Get(ctx, id)
}

// Transition applies the patch only when the record still holds the expected
// status; a lost claim returns ok=false with the current record.
func (s *RecordService) Transition(ctx context.Context, id uuid.UUID, from models.ImageStatus, patch pipeline.RecordPatch) (*models.Image, bool, error) {
	updates := patchUpdates(patch)
	// Get normalizes legacy literals, so the claim also matches any stored
	// legacy literal that NormalizeStatus maps onto `from`.
	literals := []string{string(from)}
	for _, legacy := range []string{"REJECTED", "ERROR", "pending", "processing", "processed", "done", "failed"} {
		if models.NormalizeStatus(legacy) == from {
			literals = append(literals, legacy)
		}
	}
	res := s.db.WithContext(ctx).Model(&models.Image{}).
		Where("id = ? AND status IN ?", id, literals).
		Updates(updates)
	if res.Error != nil {
		return nil, false, fmt.Errorf("transition image record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, true, nil
}

func (s *RecordService) List(ctx context.Context, status models.ImageStatus, limit, offset int) ([]models.Image, int64, error) {
	var images []models.Image
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Image{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count image records: %w", err)
	}
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&images).Error; err != nil {
		return nil, 0, fmt.Errorf("list image records: %w", err)
	}
	return images, total, nil
}

// FindProcessedWithHash returns the duplicate-detection corpus: every
// PROCESSED record carrying a pHash, projected to id, name and metadata.
// The read is a snapshot; concurrent inserts are tolerated.
func (s *RecordService) FindProcessedWithHash(ctx context.Context) ([]models.Image, error) {
	var images []models.Image
	err := s.db.WithContext(ctx).
		Select("id", "original_name", "meta_data").
		Where("status = ? AND meta_data ->> 'pHash' IS NOT NULL", models.StatusProcessed).
		Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("scan processed hashes: %w", err)
	}
	return images, nil
}

func (s *RecordService) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.Image{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete image record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func patchUpdates(patch pipeline.RecordPatch) map[string]interface{} {
	updates := map[string]interface{}{}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.Width != nil {
		updates["width"] = *patch.Width
	}
	if patch.Height != nil {
		updates["height"] = *patch.Height
	}
	if patch.ProcessedPath != nil {
		updates["processed_path"] = *patch.ProcessedPath
	}
	if patch.ProcessedSize != nil {
		updates["processed_size"] = *patch.ProcessedSize
	}
	if patch.MetaData != nil {
		updates["meta_data"] = patch.MetaData
	}
	return updates
}
