// Package pipeline runs the ordered admission stages against a pending image
// record: size, face heuristic, blur heuristic, then perceptual-hash duplicate
// detection, producing the canonical JPEG derivative on a full pass.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/photogate/backend/internal/analysis"
	"github.com/photogate/backend/internal/config"
	"github.com/photogate/backend/internal/models"
	"github.com/photogate/backend/internal/storage"
)

// RecordPatch is a partial record update. Nil fields are untouched; a non-nil
// MetaData replaces the whole metadata block so it lands atomically with the
// status change.
type RecordPatch struct {
	Status        *models.ImageStatus
	Width         *int
	Height        *int
	ProcessedPath *string
	ProcessedSize *int64
	MetaData      models.MetaData
}

// RecordStore is the slice of the record store the pipeline needs.
type RecordStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Image, error)
	// Transition applies the patch only if the record is currently in the
	// `from` status; the boolean reports whether the claim won.
	Transition(ctx context.Context, id uuid.UUID, from models.ImageStatus, patch RecordPatch) (*models.Image, bool, error)
	Update(ctx context.Context, id uuid.UUID, patch RecordPatch) (*models.Image, error)
	FindProcessedWithHash(ctx context.Context) ([]models.Image, error)
}

// Runner executes admission runs. One run per record id is in flight at a
// time; the conditional PENDING claim makes concurrent runs a no-op.
type Runner struct {
	records  RecordStore
	blobs    storage.BlobStore
	tunables analysis.Tunables

	derivativeMaxDim  int
	derivativeQuality int
	dev               bool
}

func NewRunner(records RecordStore, blobs storage.BlobStore, cfg *config.Config) *Runner {
	return &Runner{
		records:           records,
		blobs:             blobs,
		tunables:          cfg.Analyzer,
		derivativeMaxDim:  cfg.DerivativeMaxDim,
		derivativeQuality: cfg.DerivativeJPEGQuality,
		dev:               cfg.IsDevelopment(),
	}
}

// Run processes one pending record through every stage. It is idempotent on
// any status other than PENDING and tolerates the record disappearing
// mid-run (a concurrent delete).
func (r *Runner) Run(ctx context.Context, id uuid.UUID) (*models.Image, error) {
	rec, err := r.records.Get(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", id, err)
	}
	if rec.Status != models.StatusPending {
		return rec, nil
	}

	processing := models.StatusProcessing
	claimed, ok, err := r.records.Transition(ctx, id, models.StatusPending, RecordPatch{Status: &processing})
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim record %s: %w", id, err)
	}
	if !ok {
		return rec, nil
	}
	rec = claimed

	data, err := r.blobs.Get(ctx, rec.OriginalPath)
	if err != nil {
		log.Printf("pipeline: original unavailable for %s: %v", id, err)
		return r.fail(ctx, rec, analysis.CodeProcessingError, "Image processing failed", nil, err)
	}

	// Stage order is fixed: cheapest checks first, the corpus-wide duplicate
	// scan last.
	verdict, err := analysis.CheckSize(data, r.tunables)
	if err != nil {
		return r.failCategorized(ctx, rec, err)
	}
	if !verdict.OK {
		return r.fail(ctx, rec, verdict.Code, verdict.Message, verdict.Diagnostics, nil)
	}
	if w, h, ok := dimensionsFrom(verdict.Diagnostics); ok {
		updated, err := r.records.Update(ctx, rec.ID, RecordPatch{Width: &w, Height: &h})
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("record dimensions for %s: %w", rec.ID, err)
		}
		rec = updated
	}

	// A face-analyzer failure is never fatal: log and continue as accepted.
	verdict, err = analysis.CheckFacesGuarded(data, r.tunables)
	if err != nil {
		log.Printf("pipeline: face analysis failed for %s, continuing: %v", id, err)
	} else if !verdict.OK {
		return r.fail(ctx, rec, verdict.Code, verdict.Message, verdict.Diagnostics, nil)
	}

	verdict, err = analysis.CheckBlur(data, r.tunables)
	if err != nil {
		return r.failCategorized(ctx, rec, err)
	}
	if !verdict.OK {
		return r.fail(ctx, rec, verdict.Code, verdict.Message, verdict.Diagnostics, nil)
	}

	// Duplicate detection fails open: a technical fault here must never
	// surface as a user-facing rejection.
	hash, err := analysis.ComputePHash(data)
	if err != nil {
		log.Printf("pipeline: pHash computation failed for %s, skipping duplicate check: %v", id, err)
		hash = ""
	}
	if hash != "" {
		candidates, err := r.duplicateCandidates(ctx, rec.ID)
		if err != nil {
			log.Printf("pipeline: duplicate scan failed for %s, skipping: %v", id, err)
		} else {
			verdict = analysis.CheckDuplicate(hash, rec.OriginalName, candidates, r.tunables)
			if !verdict.OK {
				return r.fail(ctx, rec, verdict.Code, verdict.Message, verdict.Diagnostics, nil)
			}
		}
	}

	return r.finish(ctx, rec, data, hash)
}

// finish builds the canonical derivative and commits the PROCESSED state.
func (r *Runner) finish(ctx context.Context, rec *models.Image, data []byte, hash string) (*models.Image, error) {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return r.failCategorized(ctx, rec, fmt.Errorf("decode for derivative: %w", err))
	}

	derivative := imaging.Fit(src, r.derivativeMaxDim, r.derivativeMaxDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, derivative, imaging.JPEG, imaging.JPEGQuality(r.derivativeQuality)); err != nil {
		return r.failCategorized(ctx, rec, fmt.Errorf("encode derivative: %w", err))
	}

	now := time.Now().UTC()
	name := storage.ProcessedName(rec.OriginalPath, now)
	storedKey, err := r.blobs.Put(ctx, storage.NamespaceProcessed, name, buf.Bytes(), "image/jpeg")
	if err != nil {
		return r.failCategorized(ctx, rec, fmt.Errorf("store derivative: %w", err))
	}

	w := derivative.Bounds().Dx()
	h := derivative.Bounds().Dy()
	size := int64(buf.Len())

	meta := cloneMeta(rec.MetaData)
	if hash != "" {
		meta["pHash"] = hash
	}
	meta["width"] = w
	meta["height"] = h
	meta["format"] = "jpeg"
	meta["processingTime"] = now.Format(time.RFC3339)

	processed := models.StatusProcessed
	updated, ok, err := r.records.Transition(ctx, rec.ID, models.StatusProcessing, RecordPatch{
		Status:        &processed,
		Width:         &w,
		Height:        &h,
		ProcessedPath: &storedKey,
		ProcessedSize: &size,
		MetaData:      meta,
	})
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("commit processed state for %s: %w", rec.ID, err)
	}
	if !ok {
		// Record left PROCESSING underneath us (deleted or reset); the
		// derivative blob stays but the run itself is a no-op.
		return nil, nil
	}
	return updated, nil
}

// fail commits the FAILED state with the rejection reason, its code, and the
// stage diagnostics, all in one atomic write.
func (r *Runner) fail(ctx context.Context, rec *models.Image, code, message string, diag map[string]interface{}, cause error) (*models.Image, error) {
	meta := cloneMeta(rec.MetaData)
	for k, v := range diag {
		meta[k] = v
	}
	meta["rejectionReason"] = message
	meta["validationErrors"] = []string{code}
	if cause != nil && r.dev {
		meta["error"] = cause.Error()
	}

	failed := models.StatusFailed
	updated, ok, err := r.records.Transition(ctx, rec.ID, models.StatusProcessing, RecordPatch{
		Status:   &failed,
		MetaData: meta,
	})
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("commit failed state for %s: %w", rec.ID, err)
	}
	if !ok {
		return nil, nil
	}
	return updated, nil
}

// failCategorized maps an analyzer or storage error onto a user-facing code
// and message via the fixed substring table.
func (r *Runner) failCategorized(ctx context.Context, rec *models.Image, cause error) (*models.Image, error) {
	code, message := Categorize(cause)
	return r.fail(ctx, rec, code, message, nil, cause)
}

// Categorize picks the user-facing code and message for an unexpected error.
func Categorize(err error) (string, string) {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate"):
		return analysis.CodeDuplicateImageDetected, "This image appears to be a duplicate of an existing image."
	case strings.Contains(msg, "resolution"), strings.Contains(msg, "dimensions"):
		return analysis.CodeSizeValidationFailed, "Image resolution is too low. Please upload a larger photo."
	case strings.Contains(msg, "size"):
		return analysis.CodeSizeValidationFailed, "Image file size is too small. Please upload a higher quality photo."
	case strings.Contains(msg, "format"), strings.Contains(msg, "unsupported"):
		return analysis.CodeFormatValidationFailed, "Unsupported image format. Please upload a JPEG or PNG photo."
	case strings.Contains(msg, "face"):
		return analysis.CodeMultipleFacesDetected, "Multiple faces detected. Please upload a photo with a single subject."
	default:
		return analysis.CodeProcessingError, "Image processing failed"
	}
}

func (r *Runner) duplicateCandidates(ctx context.Context, exclude uuid.UUID) ([]analysis.DuplicateCandidate, error) {
	records, err := r.records.FindProcessedWithHash(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]analysis.DuplicateCandidate, 0, len(records))
	for _, rec := range records {
		if rec.ID == exclude {
			continue
		}
		candidates = append(candidates, analysis.DuplicateCandidate{
			ID:           rec.ID.String(),
			OriginalName: rec.OriginalName,
			PHash:        rec.MetaData.PHash(),
		})
	}
	return candidates, nil
}

func dimensionsFrom(diag map[string]interface{}) (int, int, bool) {
	w, wok := diag["width"].(int)
	h, hok := diag["height"].(int)
	return w, h, wok && hok
}

func cloneMeta(meta models.MetaData) models.MetaData {
	out := models.MetaData{}
	for k, v := range meta {
		out[k] = v
	}
	return out
}
