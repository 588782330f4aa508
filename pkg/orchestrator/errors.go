package orchestrator

import "net/http"

// Error is a typed orchestrator error that carries its own HTTP status,
// mirroring the taxonomy in spec §7.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	// ErrNoWorkers is returned when /request_worker finds the registry empty.
	ErrNoWorkers = &Error{Status: http.StatusServiceUnavailable, Message: "no workers registered"}

	// ErrWorkerNotFound is returned by /heartbeat and /unregister_worker for an unknown worker_id.
	ErrWorkerNotFound = &Error{Status: http.StatusNotFound, Message: "worker not found"}

	// ErrQueueFull is returned when the pending queue has reached MaxQueueSize.
	ErrQueueFull = &Error{Status: http.StatusTooManyRequests, Message: "pending queue is full"}

	// ErrRequestTimeout is returned when a waiter's rendezvous exceeds QueueTimeout.
	ErrRequestTimeout = &Error{Status: http.StatusRequestTimeout, Message: "timed out waiting for a worker"}

	// ErrInternal is returned by the HTTP handlers when a request body cannot be decoded.
	ErrInternal = &Error{Status: http.StatusInternalServerError, Message: "internal dispatch error"}
)
