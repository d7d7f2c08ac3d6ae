package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedExtension(t *testing.T) {
	assert.True(t, AllowedExtension("photo.jpg"))
	assert.True(t, AllowedExtension("photo.JPEG"))
	assert.True(t, AllowedExtension("photo.png"))
	assert.True(t, AllowedExtension("photo.gif"))
	assert.True(t, AllowedExtension("photo.heic"))
	assert.True(t, AllowedExtension("photo.heif"))

	assert.False(t, AllowedExtension("photo.webp"))
	assert.False(t, AllowedExtension("photo.tiff"))
	assert.False(t, AllowedExtension("photo"))
	assert.False(t, AllowedExtension("script.sh"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "photo.jpg", SanitizeFilename("../../etc/photo.jpg"))
	assert.Equal(t, "photo.jpg", SanitizeFilename("C:\\Users\\me\\photo.jpg"))
	assert.Equal(t, "photo.jpg", SanitizeFilename("  photo.jpg  "))
	assert.Equal(t, "photo.jpg", SanitizeFilename("pho\x00to.jpg"))
}
