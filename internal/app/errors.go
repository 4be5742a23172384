package app

import "errors"

// modelNotFoundError reports a missing model artifact.
type modelNotFoundError struct{ path string }

func (e modelNotFoundError) Error() string { return "model file not found: " + e.path }

// ErrModelNotFound returns the error for a missing artifact at path.
func ErrModelNotFound(path string) error { return modelNotFoundError{path: path} }

// IsModelNotFound reports whether err indicates a missing model artifact.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}
