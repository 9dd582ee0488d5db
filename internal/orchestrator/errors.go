package orchestrator

import "errors"

// Kind identifies one of the orchestrator's error taxonomy entries. The
// server layer maps each kind to an HTTP status at the API boundary
// (400, 503 or 500; several kinds share a status).
type Kind string

const (
	KindValidation    Kind = "ValidationError"
	KindVoiceNotFound Kind = "VoiceNotFound"
	KindModelNotReady Kind = "ModelNotLoaded"
	KindEmptyAudio    Kind = "EmptyAudio"
	KindInvalidAudio  Kind = "InvalidAudio"
	KindEncoding      Kind = "EncodingError"
)

// Error is the typed error surfaced by the orchestrator and request
// validator. Detail is the human-readable message; Warnings carries
// non-fatal notices (e.g. a speed value outside the recommended-but-legal
// range).
type Error struct {
	Kind     Kind
	Detail   string
	Warnings []string

	// Diagnostics carries kind-specific context, e.g. EmptyAudio's final
	// variant tried, or VoiceNotFound's suggestion list.
	Diagnostics map[string]any
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Detail
}

func newError(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// errCacheMiss is internal-only and never returned across the package
// boundary; it exists so internal control flow reads clearly.
var errCacheMiss = errors.New("orchestrator: cache miss")
