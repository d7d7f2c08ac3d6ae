package analysis_test

import (
	"image/color"
	"testing"

	"github.com/photogate/backend/internal/analysis"
	"github.com/photogate/backend/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSizeAcceptsLargeSharpImage(t *testing.T) {
	data := testsupport.EncodeJPEG(t, testsupport.NoiseImage(900, 900, 1), 90)
	require.GreaterOrEqual(t, int64(len(data)), int64(100*1024), "noise fixture must exceed the byte minimum")

	v, err := analysis.CheckSize(data, analysis.DefaultTunables())
	require.NoError(t, err)
	assert.True(t, v.OK)
	assert.Equal(t, 900, v.Diagnostics["width"])
	assert.Equal(t, 900, v.Diagnostics["height"])
	assert.Equal(t, len(data), v.Diagnostics["byteLength"])
}

func TestCheckSizeRejectsLowResolution(t *testing.T) {
	data := testsupport.EncodeJPEG(t, testsupport.FlatImage(500, 500, color.NRGBA{R: 120, G: 120, B: 120, A: 255}), 90)

	v, err := analysis.CheckSize(data, analysis.DefaultTunables())
	require.NoError(t, err)
	assert.False(t, v.OK)
	assert.Equal(t, analysis.CodeSizeValidationFailed, v.Code)
	assert.Contains(t, v.Message, "800x800")
	assert.Contains(t, v.Message, "500x500")
}

func TestCheckSizeRejectsSmallFile(t *testing.T) {
	// A flat 900x900 JPEG compresses far below the 100KB floor.
	data := testsupport.EncodeJPEG(t, testsupport.FlatImage(900, 900, color.NRGBA{R: 120, G: 120, B: 120, A: 255}), 90)
	require.Less(t, int64(len(data)), int64(100*1024))

	v, err := analysis.CheckSize(data, analysis.DefaultTunables())
	require.NoError(t, err)
	assert.False(t, v.OK)
	assert.Equal(t, analysis.CodeSizeValidationFailed, v.Code)
	assert.Contains(t, v.Message, "100KB")
	assert.Contains(t, v.Message, "KB.")
}

func TestCheckSizeBoundaries(t *testing.T) {
	tun := analysis.DefaultTunables()

	// Exactly 800x800 passes the resolution gate.
	data := testsupport.EncodeJPEG(t, testsupport.NoiseImage(800, 800, 2), 90)
	require.GreaterOrEqual(t, int64(len(data)), tun.MinBytes)
	v, err := analysis.CheckSize(data, tun)
	require.NoError(t, err)
	assert.True(t, v.OK)

	// One pixel under is rejected regardless of weight.
	data = testsupport.EncodeJPEG(t, testsupport.NoiseImage(799, 800, 2), 90)
	v, err = analysis.CheckSize(data, tun)
	require.NoError(t, err)
	assert.False(t, v.OK)
	assert.Contains(t, v.Message, "799x800")
}

func TestCheckSizeTunableMinimums(t *testing.T) {
	tun := analysis.DefaultTunables()
	tun.MinWidth = 100
	tun.MinHeight = 100
	tun.MinBytes = 1

	data := testsupport.EncodeJPEG(t, testsupport.FlatImage(120, 120, color.NRGBA{A: 255}), 90)
	v, err := analysis.CheckSize(data, tun)
	require.NoError(t, err)
	assert.True(t, v.OK)
}

func TestCheckSizeUndecodableInput(t *testing.T) {
	_, err := analysis.CheckSize([]byte("not an image"), analysis.DefaultTunables())
	assert.Error(t, err)
}
