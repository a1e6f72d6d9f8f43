package wire

import "errors"

// Sentinel errors the codec can return. Callers use errors.Is.
var (
	ErrMalformedFrame    = errors.New("malformed frame")
	ErrUnknownTaskType   = errors.New("unknown task type")
	ErrDeserializeFailed = errors.New("deserialization failed")
)
