package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WorkerRecord is the orchestrator's view of one registered worker.
//
// Invariants: Credits >= 0; Seq never decreases for a given WorkerID; a
// WorkerID exists in the registry iff a matching registration has been
// accepted and no matching unregister or liveness eviction has occurred.
type WorkerRecord struct {
	WorkerID string
	Endpoint string
	Credits  int
	Seq      uint64
	LastSeen time.Time
}

// HeartbeatOutcome reports what ApplyHeartbeat did with an incoming update.
type HeartbeatOutcome int

const (
	// Updated means the heartbeat's seq was newer and the record was applied.
	Updated HeartbeatOutcome = iota
	// Unknown means no record exists for the given worker_id.
	Unknown
	// Stale means seq <= the stored seq; the update was discarded.
	Stale
)

// Registry is the authoritative set of known workers and their current
// credit balances, and the dispatch picker. A single mutex serializes all
// reads and writes, matching spec §5's "exclusive-write, exclusive-read"
// policy.
type Registry struct {
	mu      sync.Mutex
	workers map[string]*WorkerRecord
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{workers: make(map[string]*WorkerRecord)}
}

// Register allocates a fresh worker_id and inserts a record with seq=0.
// Always succeeds.
func (r *Registry) Register(peerIP string, port uint16, initialCredits int) string {
	workerID := uuid.New().String()
	endpoint := fmt.Sprintf("http://%s:%d", peerIP, port)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.workers[workerID] = &WorkerRecord{
		WorkerID: workerID,
		Endpoint: endpoint,
		Credits:  initialCredits,
		Seq:      0,
		LastSeen: time.Now(),
	}
	return workerID
}

// Unregister removes a worker record and reports whether it existed.
func (r *Registry) Unregister(workerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workers[workerID]; !ok {
		return false
	}
	delete(r.workers, workerID)
	return true
}

// ApplyHeartbeat updates a worker's credits and seq if the heartbeat is
// newer than anything already applied. Heartbeats with seq <= the stored
// seq are discarded (Stale) so delayed, reordered heartbeats can never
// clobber newer state.
func (r *Registry) ApplyHeartbeat(workerID string, seq uint64, credits int) HeartbeatOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.workers[workerID]
	if !ok {
		return Unknown
	}
	if seq <= rec.Seq {
		return Stale
	}

	rec.Seq = seq
	rec.Credits = credits
	rec.LastSeen = time.Now()
	return Updated
}

// AdjustCredits sets a worker's credits directly, bypassing the seq check.
// It is used by the heartbeat handler to re-subtract the credits just
// donated to dequeued waiters (spec §4.3 step 4), so a concurrent
// /request_worker cannot double-spend those slots. It reports whether the
// worker still exists.
func (r *Registry) AdjustCredits(workerID string, credits int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.workers[workerID]
	if !ok {
		return false
	}
	rec.Credits = credits
	return true
}

// Endpoint returns a worker's endpoint, if it still exists.
func (r *Registry) Endpoint(workerID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.workers[workerID]
	if !ok {
		return "", false
	}
	return rec.Endpoint, true
}

// PickAndDecrement chooses the worker with the maximum credits (ties
// broken by lowest worker_id for a stable, testable order), decrements
// its credits by one, and returns its id and endpoint. It reports false
// if no worker has spare credits.
func (r *Registry) PickAndDecrement() (workerID, endpoint string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *WorkerRecord
	for _, rec := range r.workers {
		if rec.Credits <= 0 {
			continue
		}
		if best == nil || rec.Credits > best.Credits ||
			(rec.Credits == best.Credits && rec.WorkerID < best.WorkerID) {
			best = rec
		}
	}
	if best == nil {
		return "", "", false
	}

	best.Credits--
	return best.WorkerID, best.Endpoint, true
}

// Empty reports whether the registry currently has no workers at all.
func (r *Registry) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers) == 0
}

// Snapshot returns a read-only copy of every worker record, for monitoring.
func (r *Registry) Snapshot() []WorkerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]WorkerRecord, 0, len(r.workers))
	for _, rec := range r.workers {
		out = append(out, *rec)
	}
	return out
}

// EvictStale removes every worker whose LastSeen is older than the given
// timeout, as if each had sent /unregister_worker. It returns the evicted
// worker ids, for logging and events.
func (r *Registry) EvictStale(timeout time.Duration) []string {
	cutoff := time.Now().Add(-timeout)

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for id, rec := range r.workers {
		if rec.LastSeen.Before(cutoff) {
			evicted = append(evicted, id)
			delete(r.workers, id)
		}
	}
	return evicted
}
