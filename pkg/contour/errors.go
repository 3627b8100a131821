package contour

import "errors"

// Error kinds shared by the contour model and its codecs. Public operations
// wrap these so callers can classify failures with errors.Is instead of
// parsing log output.
var (
	// ErrValidation marks degenerate geometry: too few points, mismatched
	// mask shapes and similar caller mistakes that leave the store unchanged.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an unknown structure name or slice index.
	ErrNotFound = errors.New("not found")

	// ErrFormat marks malformed or unsupported input during decode: missing
	// required DICOM sequences, wrong modality, unparseable contour data.
	ErrFormat = errors.New("format error")
)
