package services_test

import (
	"context"
	"image/color"
	"testing"

	"github.com/google/uuid"
	"github.com/photogate/backend/internal/config"
	"github.com/photogate/backend/internal/models"
	"github.com/photogate/backend/internal/pipeline"
	"github.com/photogate/backend/internal/services"
	"github.com/photogate/backend/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type facadeFixture struct {
	records   *testsupport.MemRecords
	blobs     *testsupport.MemBlobs
	scheduler *testsupport.StubScheduler
	admission *services.AdmissionService
}

func newFacade(t *testing.T) *facadeFixture {
	t.Helper()
	cfg := config.New()
	records := testsupport.NewMemRecords()
	blobs := testsupport.NewMemBlobs()
	scheduler := &testsupport.StubScheduler{}
	return &facadeFixture{
		records:   records,
		blobs:     blobs,
		scheduler: scheduler,
		admission: services.NewAdmissionService(records, blobs, scheduler, cfg),
	}
}

func jpegFile(t *testing.T, name string, w, h int) services.UploadFile {
	t.Helper()
	return services.UploadFile{
		Name: name,
		Data: testsupport.EncodeJPEG(t, testsupport.FlatImage(w, h, color.NRGBA{R: 90, G: 90, B: 90, A: 255}), 90),
	}
}

func TestUploadBatchCreatesPendingRecordsAndSchedulesRuns(t *testing.T) {
	f := newFacade(t)

	summaries := f.admission.UploadBatch(context.Background(), []services.UploadFile{
		jpegFile(t, "a.jpg", 200, 200),
		jpegFile(t, "b.png", 200, 200),
	})

	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.Empty(t, s.Error)
		assert.Equal(t, models.StatusPending, s.Status)
		assert.NotEqual(t, uuid.Nil, s.ID)

		rec, err := f.records.Get(context.Background(), s.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, rec.Status)
		assert.True(t, f.blobs.Has(rec.OriginalPath), "original blob must be stored")
		assert.Equal(t, int64(len(jpegFile(t, s.OriginalName, 200, 200).Data)), rec.OriginalSize)
	}
	assert.Len(t, f.scheduler.Submitted(), 2)
}

func TestUploadBatchPartialFailure(t *testing.T) {
	f := newFacade(t)

	summaries := f.admission.UploadBatch(context.Background(), []services.UploadFile{
		jpegFile(t, "good.jpg", 200, 200),
		{Name: "bad.jpg", Data: []byte("plain text, not an image")},
	})

	require.Len(t, summaries, 2)
	assert.Empty(t, summaries[0].Error)
	assert.NotEmpty(t, summaries[1].Error)
	assert.Contains(t, summaries[1].Error, "content type")

	// Only the good file produced a record and a run.
	_, total, err := f.records.List(context.Background(), "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, f.scheduler.Submitted(), 1)
}

func TestUploadBatchAdmitsHEICByExtension(t *testing.T) {
	f := newFacade(t)

	// HEIC bytes sniff as octet-stream; admission is by extension and the
	// pipeline rejects them later if undecodable.
	summaries := f.admission.UploadBatch(context.Background(), []services.UploadFile{
		{Name: "photo.heic", Data: []byte{0x00, 0x00, 0x00, 0x18, 0x66, 0x74, 0x79, 0x70}},
	})

	require.Len(t, summaries, 1)
	assert.Empty(t, summaries[0].Error)
	assert.Equal(t, models.StatusPending, summaries[0].Status)
}

func TestListMintsSignedURLs(t *testing.T) {
	f := newFacade(t)
	f.admission.UploadBatch(context.Background(), []services.UploadFile{jpegFile(t, "a.jpg", 200, 200)})

	views, total, err := f.admission.List(context.Background(), "", 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, views, 1)
	assert.Contains(t, views[0].OriginalURL, "mem://original/")
	assert.Empty(t, views[0].ProcessedURL, "no processed URL before acceptance")
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFacade(t)
	f.admission.UploadBatch(context.Background(), []services.UploadFile{
		jpegFile(t, "a.jpg", 200, 200),
		jpegFile(t, "b.jpg", 200, 200),
	})

	views, total, err := f.admission.List(context.Background(), models.StatusProcessed, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, views)

	views, total, err = f.admission.List(context.Background(), models.StatusPending, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, views, 2)
}

func TestGetByIDUnknown(t *testing.T) {
	f := newFacade(t)
	_, err := f.admission.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteRemovesBlobsAndRecord(t *testing.T) {
	f := newFacade(t)
	summaries := f.admission.UploadBatch(context.Background(), []services.UploadFile{jpegFile(t, "a.jpg", 200, 200)})
	id := summaries[0].ID

	rec, err := f.records.Get(context.Background(), id)
	require.NoError(t, err)

	require.NoError(t, f.admission.Delete(context.Background(), id))

	_, err = f.records.Get(context.Background(), id)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.False(t, f.blobs.Has(rec.OriginalPath))
}

func TestDeleteProceedsWhenBlobDeleteFails(t *testing.T) {
	f := newFacade(t)
	summaries := f.admission.UploadBatch(context.Background(), []services.UploadFile{jpegFile(t, "a.jpg", 200, 200)})
	id := summaries[0].ID

	f.blobs.FailDelete = true
	require.NoError(t, f.admission.Delete(context.Background(), id))

	_, err := f.records.Get(context.Background(), id)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestReprocessRejectsProcessedRecord(t *testing.T) {
	f := newFacade(t)
	summaries := f.admission.UploadBatch(context.Background(), []services.UploadFile{jpegFile(t, "a.jpg", 200, 200)})
	id := summaries[0].ID

	processed := models.StatusProcessed
	_, err := f.records.Update(context.Background(), id, pipeline.RecordPatch{Status: &processed})
	require.NoError(t, err)

	err = f.admission.Reprocess(context.Background(), id)
	assert.ErrorIs(t, err, services.ErrAlreadyProcessed)
}

func TestReprocessResetsFailedRecord(t *testing.T) {
	f := newFacade(t)
	summaries := f.admission.UploadBatch(context.Background(), []services.UploadFile{jpegFile(t, "a.jpg", 200, 200)})
	id := summaries[0].ID

	failed := models.StatusFailed
	_, err := f.records.Update(context.Background(), id, pipeline.RecordPatch{
		Status:   &failed,
		MetaData: models.MetaData{"rejectionReason": "too small", "validationErrors": []string{"size_validation_failed"}},
	})
	require.NoError(t, err)

	require.NoError(t, f.admission.Reprocess(context.Background(), id))

	rec, err := f.records.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, rec.Status)
	assert.Empty(t, rec.MetaData.ValidationErrors())
	// Upload run + reprocess run
	assert.Len(t, f.scheduler.Submitted(), 2)
}

func TestReprocessClearsStaleDerivativeFields(t *testing.T) {
	f := newFacade(t)
	summaries := f.admission.UploadBatch(context.Background(), []services.UploadFile{jpegFile(t, "a.jpg", 200, 200)})
	id := summaries[0].ID

	// A failed record that somehow still carries derivative fields must not
	// keep them across the reset.
	failed := models.StatusFailed
	path := "processed/a-123.jpg"
	size := int64(4096)
	width, height := 800, 600
	_, err := f.records.Update(context.Background(), id, pipeline.RecordPatch{
		Status:        &failed,
		ProcessedPath: &path,
		ProcessedSize: &size,
		Width:         &width,
		Height:        &height,
	})
	require.NoError(t, err)

	require.NoError(t, f.admission.Reprocess(context.Background(), id))

	rec, err := f.records.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, rec.Status)
	assert.Empty(t, rec.ProcessedPath)
	assert.Zero(t, rec.ProcessedSize)
	assert.Zero(t, rec.Width)
	assert.Zero(t, rec.Height)
}

func TestReprocessLosesRaceToConcurrentAcceptance(t *testing.T) {
	f := newFacade(t)
	summaries := f.admission.UploadBatch(context.Background(), []services.UploadFile{jpegFile(t, "a.jpg", 200, 200)})
	id := summaries[0].ID

	processing := models.StatusProcessing
	_, err := f.records.Update(context.Background(), id, pipeline.RecordPatch{Status: &processing})
	require.NoError(t, err)

	// Right after Reprocess reads PROCESSING, the in-flight run commits
	// PROCESSED: the conditional claim loses and the re-read must report
	// already-processed rather than resetting an accepted record.
	f.records.AfterGet = func(got uuid.UUID) {
		f.records.AfterGet = nil
		processed := models.StatusProcessed
		path := "processed/a-456.jpg"
		_, err := f.records.Update(context.Background(), got, pipeline.RecordPatch{
			Status:        &processed,
			ProcessedPath: &path,
		})
		require.NoError(t, err)
	}

	err = f.admission.Reprocess(context.Background(), id)
	assert.ErrorIs(t, err, services.ErrAlreadyProcessed)

	rec, err := f.records.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, rec.Status)
	assert.Equal(t, "processed/a-456.jpg", rec.ProcessedPath)
}

func TestReprocessUnknownRecord(t *testing.T) {
	f := newFacade(t)
	err := f.admission.Reprocess(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
