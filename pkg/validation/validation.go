package validation

import (
	"path"
	"path/filepath"
	"strings"
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".heic": true,
	".heif": true,
}

// AllowedExtension reports whether the filename carries an accepted image
// extension.
func AllowedExtension(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// AllowedExtensions lists the accepted extensions, without the leading dot.
func AllowedExtensions() []string {
	out := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		out = append(out, strings.TrimPrefix(ext, "."))
	}
	return out
}

// SanitizeFilename strips directory components, NUL bytes and surrounding
// whitespace from a caller-supplied filename. Browsers on Windows may send
// backslash paths. Other control bytes are kept.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\x00", "")
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	return strings.TrimSpace(name)
}
