// Package protocol defines the JSON wire types shared by the orchestrator,
// worker, and client over the HTTP+JSON surface described in the dispatch
// control plane's external interface.
package protocol

import (
	"crypto/sha256"
	"encoding/hex"
)

// JobManifest carries the invocation arguments for a WASM module.
type JobManifest struct {
	CallArgs []string `json:"call_args"`
}

// RegisterWorkerRequest is the body of POST /register_worker.
type RegisterWorkerRequest struct {
	Port           uint16 `json:"port"`
	InitialCredits int    `json:"initial_credits"`
}

// RegisterWorkerResponse is the 201 body of POST /register_worker.
type RegisterWorkerResponse struct {
	WorkerID string `json:"worker_id"`
}

// UnregisterWorkerRequest is the body of POST /unregister_worker.
type UnregisterWorkerRequest struct {
	WorkerID string `json:"worker_id"`
}

// HeartbeatRequest is the body of POST /heartbeat.
type HeartbeatRequest struct {
	WorkerID string `json:"worker_id"`
	Seq      uint64 `json:"seq"`
	Credits  int    `json:"credits"`
}

// RequestWorkerResponse is the 201 body of POST /request_worker.
type RequestWorkerResponse struct {
	JobID          string `json:"job_id"`
	WorkerEndpoint string `json:"worker_endpoint"`
}

// WorkerInfo describes one worker in a monitoring snapshot.
type WorkerInfo struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
	Credits  int    `json:"credits"`
	Seq      uint64 `json:"seq"`
	LastSeen string `json:"last_seen"` // RFC3339
}

// JobSummary describes one pending job in a monitoring snapshot.
type JobSummary struct {
	JobID       string `json:"job_id"`
	SubmittedAt string `json:"submitted_at"` // RFC3339
}

// MonitoringInfo is the 200 body of GET /monitoring_info.
type MonitoringInfo struct {
	Workers []WorkerInfo `json:"workers"`
	Pending []JobSummary `json:"pending"`
}

// JobSubmissionHash is the body of POST /submit_hash.
type JobSubmissionHash struct {
	ModuleHash string      `json:"module_hash"`
	Manifest   JobManifest `json:"manifest"`
}

// JobSubmissionWasm is the body of POST /submit_wasm. ModuleBytes is
// transported base64-encoded, which encoding/json does natively for []byte.
type JobSubmissionWasm struct {
	ModuleBytes []byte      `json:"module_bytes"`
	Manifest    JobManifest `json:"manifest"`
}

// SubmitResponse is the 201 body of both worker submission endpoints.
type SubmitResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the JSON envelope for every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HashModule returns hex(SHA-256(bytes)), the module cache key and the
// content hash carried by submit_hash.
func HashModule(moduleBytes []byte) string {
	sum := sha256.Sum256(moduleBytes)
	return hex.EncodeToString(sum[:])
}
