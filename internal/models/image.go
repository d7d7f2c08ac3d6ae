package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ImageStatus string

const (
	StatusPending    ImageStatus = "PENDING"
	StatusProcessing ImageStatus = "PROCESSING"
	StatusProcessed  ImageStatus = "PROCESSED"
	StatusFailed     ImageStatus = "FAILED"
)

// NormalizeStatus maps legacy status literals onto the canonical enum.
// Older rows may carry "REJECTED" or "ERROR"; both are terminal failures.
func NormalizeStatus(s string) ImageStatus {
	switch s {
	case "REJECTED", "ERROR":
		return StatusFailed
	case "pending":
		return StatusPending
	case "processing":
		return StatusProcessing
	case "processed", "done":
		return StatusProcessed
	case "failed":
		return StatusFailed
	default:
		return ImageStatus(s)
	}
}

// MetaData is the free-form metadata block stored alongside an image record.
// Persisted as JSONB; written atomically with the owning row.
type MetaData map[string]interface{}

func (m MetaData) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *MetaData) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// PHash returns the stored perceptual hash, if any.
func (m MetaData) PHash() string {
	if m == nil {
		return ""
	}
	if h, ok := m["pHash"].(string); ok {
		return h
	}
	return ""
}

// ValidationErrors returns the stored error codes as a string slice.
// JSON round-trips lose the concrete slice type, so both forms are handled.
func (m MetaData) ValidationErrors() []string {
	if m == nil {
		return nil
	}
	switch v := m["validationErrors"].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Image is a single uploaded photograph tracked through the admission pipeline.
type Image struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	OriginalName  string      `gorm:"size:255" json:"originalName"`
	OriginalSize  int64       `json:"originalSize"`
	OriginalPath  string      `gorm:"size:512" json:"originalPath"`
	ProcessedPath string      `gorm:"size:512" json:"processedPath,omitempty"`
	ProcessedSize int64       `json:"processedSize,omitempty"`
	FileType      string      `gorm:"size:16" json:"fileType"`
	Width         int         `json:"width,omitempty"`
	Height        int         `json:"height,omitempty"`
	Status        ImageStatus `gorm:"size:16;default:'PENDING';index" json:"status"`
	MetaData      MetaData    `gorm:"type:jsonb" json:"metaData,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (i *Image) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Status == "" {
		i.Status = StatusPending
	}
	return nil
}

// AfterFind normalizes any legacy status literal on read.
func (i *Image) AfterFind(tx *gorm.DB) error {
	i.Status = NormalizeStatus(string(i.Status))
	return nil
}
