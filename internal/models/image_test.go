package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]ImageStatus{
		"PENDING":    StatusPending,
		"PROCESSING": StatusProcessing,
		"PROCESSED":  StatusProcessed,
		"FAILED":     StatusFailed,
		"REJECTED":   StatusFailed,
		"ERROR":      StatusFailed,
		"pending":    StatusPending,
		"processing": StatusProcessing,
		"processed":  StatusProcessed,
		"done":       StatusProcessed,
		"failed":     StatusFailed,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeStatus(in), in)
	}
}

func TestMetaDataValueScanRoundTrip(t *testing.T) {
	meta := MetaData{
		"pHash":            "00ff00ff00ff00ff00ff00ff00ff00ff",
		"rejectionReason":  "too blurry",
		"validationErrors": []string{"blurry_image_detected"},
	}

	value, err := meta.Value()
	require.NoError(t, err)

	var scanned MetaData
	require.NoError(t, scanned.Scan(value))

	assert.Equal(t, "00ff00ff00ff00ff00ff00ff00ff00ff", scanned.PHash())
	assert.Equal(t, []string{"blurry_image_detected"}, scanned.ValidationErrors())
	assert.Equal(t, "too blurry", scanned["rejectionReason"])
}

func TestMetaDataScanNil(t *testing.T) {
	var meta MetaData
	require.NoError(t, meta.Scan(nil))
	assert.Nil(t, meta)
	assert.Empty(t, meta.PHash())
	assert.Empty(t, meta.ValidationErrors())
}

func TestMetaDataValueNil(t *testing.T) {
	var meta MetaData
	value, err := meta.Value()
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestMetaDataScanRejectsUnknownType(t *testing.T) {
	var meta MetaData
	assert.Error(t, meta.Scan(42))
}

func TestValidationErrorsFromJSONDecodedSlice(t *testing.T) {
	meta := MetaData{"validationErrors": []interface{}{"size_validation_failed"}}
	assert.Equal(t, []string{"size_validation_failed"}, meta.ValidationErrors())
}
