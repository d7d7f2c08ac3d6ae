package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/photogate/backend/internal/config"
	"github.com/photogate/backend/internal/models"
	"github.com/photogate/backend/internal/services"
	"github.com/photogate/backend/pkg/validation"
)

type ImageHandler struct {
	admission *services.AdmissionService
	cfg       *config.Config
}

func NewImageHandler(admission *services.AdmissionService, cfg *config.Config) *ImageHandler {
	return &ImageHandler{admission: admission, cfg: cfg}
}

// Upload handles batch image upload.
// POST /api/images
// Multipart form: images[] (1..UPLOAD_MAX_FILES files, each within the size cap)
func (h *ImageHandler) Upload(c *gin.Context) {
	maxMemory := h.cfg.UploadMaxFileSize * int64(h.cfg.UploadMaxFiles)
	if err := c.Request.ParseMultipartForm(maxMemory); err != nil {
		respondError(c, h.cfg, NewAPIError(http.StatusBadRequest, "failed to parse multipart form"))
		return
	}

	form := c.Request.MultipartForm
	files := form.File["images[]"]
	if len(files) == 0 {
		files = form.File["images"]
	}
	if len(files) == 0 {
		respondError(c, h.cfg, NewAPIError(http.StatusBadRequest, "No files uploaded"))
		return
	}
	if len(files) > h.cfg.UploadMaxFiles {
		respondError(c, h.cfg, NewAPIError(http.StatusBadRequest,
			fmt.Sprintf("Too many files: maximum %d per batch", h.cfg.UploadMaxFiles)))
		return
	}

	uploads := make([]services.UploadFile, 0, len(files))
	for _, fh := range files {
		name := validation.SanitizeFilename(fh.Filename)
		if !validation.AllowedExtension(name) {
			respondError(c, h.cfg, NewAPIError(http.StatusBadRequest,
				fmt.Sprintf("Unsupported file type: %s", name)))
			return
		}
		if fh.Size > h.cfg.UploadMaxFileSize {
			respondError(c, h.cfg, NewAPIError(http.StatusBadRequest,
				fmt.Sprintf("File too large: %s exceeds %d bytes", name, h.cfg.UploadMaxFileSize)))
			return
		}

		f, err := fh.Open()
		if err != nil {
			respondError(c, h.cfg, NewAPIError(http.StatusBadRequest, "failed to open uploaded file"))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(c, h.cfg, NewAPIError(http.StatusBadRequest, "failed to read uploaded file"))
			return
		}
		uploads = append(uploads, services.UploadFile{Name: name, Data: data})
	}

	summaries := h.admission.UploadBatch(c.Request.Context(), uploads)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": fmt.Sprintf("%d image(s) queued for processing", len(summaries)),
		"images":  summaries,
	})
}

// List returns a page of image records with minted URLs.
// GET /api/images?page=1&limit=20&status=PROCESSED
func (h *ImageHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	status := models.NormalizeStatus(c.Query("status"))

	images, total, err := h.admission.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, h.cfg, err)
		return
	}

	pages := (total + int64(limit) - 1) / int64(limit)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"images":  images,
		"pagination": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
			"pages": pages,
		},
	})
}

// GetByID returns one record with minted URLs.
// GET /api/images/:id
func (h *ImageHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, h.cfg, models.ErrNotFound)
		return
	}

	image, err := h.admission.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.cfg, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "image": image})
}

// Delete removes the record and its blobs.
// DELETE /api/images/:id
func (h *ImageHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, h.cfg, models.ErrNotFound)
		return
	}

	if err := h.admission.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.cfg, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Image deleted successfully"})
}

// Process sends a non-accepted record back through the pipeline.
// POST /api/images/:id/process
func (h *ImageHandler) Process(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, h.cfg, models.ErrNotFound)
		return
	}

	if err := h.admission.Reprocess(c.Request.Context(), id); err != nil {
		respondError(c, h.cfg, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Image queued for processing",
		"imageId": id,
	})
}
