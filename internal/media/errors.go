package media

import "errors"

var (
	// ErrNoFile indicates an upload was attempted without a local file.
	ErrNoFile = errors.New("no media file provided")
	// ErrUnsupportedType indicates the detected content type is not accepted.
	ErrUnsupportedType = errors.New("unsupported media type")
	// ErrUnavailable indicates the object store circuit breaker is open.
	ErrUnavailable = errors.New("media store unavailable")
)
