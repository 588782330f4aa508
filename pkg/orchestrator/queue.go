package orchestrator

import (
	"sync"
	"sync/atomic"
	"time"
)

// rendezvous is a single-writer/single-reader handoff: exactly one writer
// may deliver an endpoint, and a single reader awaits it or abandons after
// a timeout. The writer's send is non-blocking and reports whether the
// reader is still present, so a departed waiter never silently consumes a
// credit assignment (spec §4.2, §4.3 step 3).
type rendezvous struct {
	ch      chan string
	claimed atomic.Bool // set by whichever of trySend or a timed-out await gets there first
}

func newRendezvous() *rendezvous {
	return &rendezvous{ch: make(chan string, 1)}
}

// trySend attempts to deliver endpoint to the waiting reader. It reports
// false if the reader has already abandoned the rendezvous.
func (rv *rendezvous) trySend(endpoint string) bool {
	if !rv.claimed.CompareAndSwap(false, true) {
		return false
	}
	rv.ch <- endpoint // buffered and claimed exactly once, so never blocks
	return true
}

// await blocks for up to timeout for a value, or reports ok=false on
// timeout and marks the rendezvous abandoned so a late send is rejected.
// If a send claimed the rendezvous before the timeout did, its value is
// returned instead.
func (rv *rendezvous) await(timeout time.Duration) (endpoint string, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-rv.ch:
		return v, true
	case <-timer.C:
		if rv.claimed.CompareAndSwap(false, true) {
			return "", false
		}
		return <-rv.ch, true
	}
}

// PendingJob is a waiter parked by /request_worker when no worker had
// spare credit at the time of the call.
type PendingJob struct {
	JobID       string
	SubmittedAt time.Time
	responder   *rendezvous
}

// Deliver hands endpoint to the job's waiting caller. It reports false if
// the caller has already abandoned the wait (timed out or disconnected).
func (j *PendingJob) Deliver(endpoint string) bool {
	return j.responder.trySend(endpoint)
}

// Await blocks the caller until a worker endpoint is delivered or timeout
// elapses.
func (j *PendingJob) Await(timeout time.Duration) (string, bool) {
	return j.responder.await(timeout)
}

// Queue is the orchestrator's bounded FIFO of waiters with no credit
// available at request time. A single mutex serializes enqueue/dequeue;
// it is never held across a rendezvous send (spec §4.3, §5).
type Queue struct {
	mu       sync.Mutex
	jobs     []*PendingJob
	maxDepth int
}

// NewQueue creates a queue bounded to maxDepth entries.
func NewQueue(maxDepth int) *Queue {
	return &Queue{maxDepth: maxDepth}
}

// NewPendingJob constructs a waiter with a fresh job id and rendezvous slot.
func NewPendingJob(jobID string) *PendingJob {
	return &PendingJob{
		JobID:       jobID,
		SubmittedAt: time.Now(),
		responder:   newRendezvous(),
	}
}

// Enqueue appends job to the tail of the FIFO. It reports false if the
// queue is already at maxDepth.
func (q *Queue) Enqueue(job *PendingJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) >= q.maxDepth {
		return false
	}
	q.jobs = append(q.jobs, job)
	return true
}

// Dequeue removes and returns the oldest waiter, or nil if the queue is empty.
func (q *Queue) Dequeue() *PendingJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job
}

// RemoveByID removes a still-queued waiter by job id, for use by a timed-out
// caller reclaiming its slot. It is best-effort: the job may have already
// been concurrently dequeued, in which case it reports nil.
func (q *Queue) RemoveByID(jobID string) *PendingJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, job := range q.jobs {
		if job.JobID == jobID {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return job
		}
	}
	return nil
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// PendingSummary is the non-destructive monitoring view of one waiter.
type PendingSummary struct {
	JobID       string
	SubmittedAt time.Time
}

// Snapshot returns a read-only view of every currently queued waiter.
func (q *Queue) Snapshot() []PendingSummary {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]PendingSummary, 0, len(q.jobs))
	for _, job := range q.jobs {
		out = append(out, PendingSummary{JobID: job.JobID, SubmittedAt: job.SubmittedAt})
	}
	return out
}
