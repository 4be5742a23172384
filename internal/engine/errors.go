package engine

import "errors"

// dependencyUnavailableError signals a missing runtime (interpreter, native
// library, or a build without the engine compiled in).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

// workerError carries a failure reported by the runtime itself.
type workerError struct{ msg string }

func (e workerError) Error() string { return "engine: " + e.msg }

// ErrWorker constructs an error reported by the engine runtime.
func ErrWorker(msg string) error { return workerError{msg: msg} }

// IsWorker reports whether err was reported by the engine runtime.
func IsWorker(err error) bool {
	var e workerError
	return errors.As(err, &e)
}
