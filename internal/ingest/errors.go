package ingest

import (
	"errors"
	"fmt"
)

// ErrorKind identifies which pipeline stage rejected a request. Exactly one
// kind maps to each failure mode; kinds are stable, machine-readable strings.
type ErrorKind string

// Error kinds, one per stage.
const (
	KindInvalidScheme         ErrorKind = "invalid_scheme"
	KindInvalidHost           ErrorKind = "invalid_host"
	KindPrivateAddressBlocked ErrorKind = "private_address_blocked"
	KindCloudMetadataBlocked  ErrorKind = "cloud_metadata_blocked"
	KindSizeExceeded          ErrorKind = "size_exceeded"
	KindTimeout               ErrorKind = "timeout"
	KindFetchFailed           ErrorKind = "fetch_failed"
	KindExtractionFailed      ErrorKind = "extraction_failed"
	KindMetadataQuality       ErrorKind = "metadata_quality"
)

// Error is the structured failure value crossing the pipeline boundary.
// Quality failures additionally carry the final score and issue list so
// callers can diagnose why the gate rejected the result.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Score   float64   `json:"score,omitempty"`
	Issues  []string  `json:"issues,omitempty"`

	cause error
}

// NewError builds an Error with no underlying cause.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error wrapping cause.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf extracts the ErrorKind from err, or "" when err is not a pipeline error.
func KindOf(err error) ErrorKind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
