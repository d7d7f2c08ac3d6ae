package analysis_test

import (
	"regexp"
	"testing"

	"github.com/photogate/backend/internal/analysis"
	"github.com/photogate/backend/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexRe = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestComputePHashShapeAndDeterminism(t *testing.T) {
	data := testsupport.EncodeJPEG(t, testsupport.NoiseImage(300, 300, 7), 90)

	first, err := analysis.ComputePHash(data)
	require.NoError(t, err)
	second, err := analysis.ComputePHash(data)
	require.NoError(t, err)

	assert.Regexp(t, hexRe, first)
	assert.Equal(t, first, second)
}

func TestComputePHashDiffersForDifferentContent(t *testing.T) {
	a, err := analysis.ComputePHash(testsupport.EncodeJPEG(t, testsupport.NoiseImage(300, 300, 7), 90))
	require.NoError(t, err)
	b, err := analysis.ComputePHash(testsupport.EncodeJPEG(t, testsupport.StripeImage(300, 300, 10), 90))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestComputePHashUndecodableInput(t *testing.T) {
	_, err := analysis.ComputePHash([]byte("junk"))
	assert.Error(t, err)
}

func TestHammingDistanceHex(t *testing.T) {
	assert.Equal(t, 0, analysis.HammingDistanceHex("abcd", "abcd"))
	assert.Equal(t, 1, analysis.HammingDistanceHex("0", "1"))
	assert.Equal(t, 4, analysis.HammingDistanceHex("0", "f"))
	assert.Equal(t, 8, analysis.HammingDistanceHex("00", "ff"))
	assert.Equal(t, 1, analysis.HammingDistanceHex("A", "B"), "case-insensitive digits")
	assert.Equal(t, 4, analysis.HammingDistanceHex("a", "ab"), "unpaired digits count fully")
}

func TestCheckDuplicateNameFastPath(t *testing.T) {
	candidates := []analysis.DuplicateCandidate{
		{ID: "rec-1", OriginalName: "Holiday.JPG", PHash: "ffffffffffffffffffffffffffffffff"},
	}

	v := analysis.CheckDuplicate("00000000000000000000000000000000", "holiday.jpg", candidates, analysis.DefaultTunables())
	assert.False(t, v.OK)
	assert.Equal(t, analysis.CodeDuplicateImageDetected, v.Code)
	assert.Contains(t, v.Message, "rec-1")
	assert.Contains(t, v.Message, "Holiday.JPG")
	assert.Equal(t, "rec-1", v.Diagnostics["similarTo"])
	assert.Equal(t, "00000000000000000000000000000000", v.Diagnostics["pHash"])
}

func TestCheckDuplicateHashPath(t *testing.T) {
	tun := analysis.DefaultTunables()
	candidates := []analysis.DuplicateCandidate{
		{ID: "far", OriginalName: "far.jpg", PHash: "ffffffffffffffffffffffffffffffff"},
		{ID: "near", OriginalName: "near.jpg", PHash: "00000000000000000000000000000003"},
	}

	// Distance 2 from the "near" candidate, way past the cutoff for "far".
	v := analysis.CheckDuplicate("00000000000000000000000000000000", "fresh.jpg", candidates, tun)
	assert.False(t, v.OK)
	assert.Equal(t, "near", v.Diagnostics["similarTo"])
}

func TestCheckDuplicateNoMatch(t *testing.T) {
	candidates := []analysis.DuplicateCandidate{
		{ID: "rec-1", OriginalName: "other.jpg", PHash: "ffffffffffffffffffffffffffffffff"},
	}

	v := analysis.CheckDuplicate("00000000000000000000000000000000", "fresh.jpg", candidates, analysis.DefaultTunables())
	assert.True(t, v.OK)
	assert.Equal(t, "00000000000000000000000000000000", v.Diagnostics["pHash"])
}

func TestCheckDuplicateEmptyCorpus(t *testing.T) {
	v := analysis.CheckDuplicate("00000000000000000000000000000000", "fresh.jpg", nil, analysis.DefaultTunables())
	assert.True(t, v.OK)
}
