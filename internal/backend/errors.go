package backend

import "errors"

// Sentinel errors for backend requests.
var (
	// ErrNotFound indicates the backend returned 404 for the resource.
	ErrNotFound = errors.New("backend: resource not found")

	// ErrRequestFailed indicates a transport-level failure: the backend
	// was unreachable or the request could not be completed.
	ErrRequestFailed = errors.New("backend: request failed")

	// ErrServerError indicates the backend answered with a 5xx status.
	ErrServerError = errors.New("backend: server error")

	// ErrBadRequest indicates the backend rejected the request as invalid.
	ErrBadRequest = errors.New("backend: bad request")
)
