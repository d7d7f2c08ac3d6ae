package analysis

import (
	"bytes"
	"fmt"
	"image"
)

// CheckSize validates minimum resolution and byte size. Resolution is checked
// first so an undersized thumbnail reports its dimensions, not its weight.
// A decode failure is returned as an error for the caller to categorize.
func CheckSize(data []byte, t Tunables) (Verdict, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Verdict{}, fmt.Errorf("decode image metadata: %w", err)
	}

	if cfg.Width < t.MinWidth || cfg.Height < t.MinHeight {
		msg := fmt.Sprintf("Image resolution is too low. Minimum required is %dx%d, got %dx%d.",
			t.MinWidth, t.MinHeight, cfg.Width, cfg.Height)
		return Rejected(CodeSizeValidationFailed, msg, map[string]interface{}{
			"width":  cfg.Width,
			"height": cfg.Height,
		}), nil
	}

	if int64(len(data)) < t.MinBytes {
		msg := fmt.Sprintf("Image file size is too small. Minimum required is %dKB, got %.1fKB.",
			t.MinBytes/1024, float64(len(data))/1024)
		return Rejected(CodeSizeValidationFailed, msg, map[string]interface{}{
			"width":      cfg.Width,
			"height":     cfg.Height,
			"byteLength": len(data),
		}), nil
	}

	return Accepted(map[string]interface{}{
		"width":      cfg.Width,
		"height":     cfg.Height,
		"byteLength": len(data),
	}), nil
}
