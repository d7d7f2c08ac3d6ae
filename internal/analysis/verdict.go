// Package analysis implements the admission analyzers: each stage is a pure
// function from image bytes to a Verdict, with every threshold carried in
// Tunables so operators can adjust sensitivity without a rebuild.
package analysis

// Rejection codes. These are the only values that may appear in a record's
// metaData.validationErrors list.
const (
	CodeSizeValidationFailed   = "size_validation_failed"
	CodeMultipleFacesDetected  = "multiple_faces_detected"
	CodeBlurryImageDetected    = "blurry_image_detected"
	CodeDuplicateImageDetected = "duplicate_image_detected"
	CodeFormatValidationFailed = "format_validation_failed"
	CodeProcessingError        = "processing_error"
)

// Verdict is the outcome of a single analyzer stage.
type Verdict struct {
	OK          bool
	Code        string
	Message     string
	Diagnostics map[string]interface{}
}

func Accepted(diag map[string]interface{}) Verdict {
	return Verdict{OK: true, Diagnostics: diag}
}

func Rejected(code, message string, diag map[string]interface{}) Verdict {
	return Verdict{OK: false, Code: code, Message: message, Diagnostics: diag}
}
