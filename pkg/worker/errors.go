package worker

import "net/http"

// Error is a typed worker error that carries its own HTTP status, mirroring
// the taxonomy in spec §7.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewValidationError reports a malformed submission (empty bytes or hash).
func NewValidationError(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg}
}

// NewCompileError reports that the supplied bytes failed to compile as WASM.
func NewCompileError(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg}
}

// NewExecutionError reports a runtime trap or failure during execution.
func NewExecutionError(msg string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Message: msg}
}

// NewModuleNotFoundError reports a cache miss on submit_hash: the client is
// expected to retry with the full module bytes.
func NewModuleNotFoundError(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Message: msg}
}

// NewIOError reports a failure capturing or reading the module's stdout.
func NewIOError(msg string) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: msg}
}

// NewInternalError reports any other unexpected worker-side failure, such as
// the execution goroutine failing to report back.
func NewInternalError(msg string) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: msg}
}
