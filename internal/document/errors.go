package document

import "errors"

// Document-level failure kinds. These abort the whole request before any
// partial output is returned; everything else resolves to a per-page fallback
// or a warning.
var (
	// ErrMalformedPDF indicates the input could not be parsed as a PDF.
	ErrMalformedPDF = errors.New("malformed pdf input")
	// ErrPageOutOfRange indicates the requested page selection lies outside
	// the document's page count.
	ErrPageOutOfRange = errors.New("page selection out of range")
	// ErrEngineUnavailable indicates the OCR engine is missing or entirely
	// unusable, as opposed to a single call failing.
	ErrEngineUnavailable = errors.New("ocr engine unavailable")
)

// ErrorKind returns the wire-level error kind for a document-level failure,
// or an empty string when err is not one of the documented kinds.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrMalformedPDF):
		return "malformed-input"
	case errors.Is(err, ErrPageOutOfRange):
		return "out-of-range"
	case errors.Is(err, ErrEngineUnavailable):
		return "engine-unavailable"
	default:
		return ""
	}
}
