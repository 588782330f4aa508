package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"github.com/wasplane/waspool/pkg/events"
	"github.com/wasplane/waspool/pkg/metrics"
)

// Dispatcher implements the dispatch algorithm of spec §4.3: routing
// /request_worker calls to a worker with spare credit, or parking them in
// the pending queue until a heartbeat donates capacity.
type Dispatcher struct {
	Registry     *Registry
	Queue        *Queue
	QueueTimeout time.Duration
	Events       *events.Broker // optional; nil-safe
}

// NewDispatcher wires a registry and queue together under the given
// request-worker timeout.
func NewDispatcher(registry *Registry, queue *Queue, queueTimeout time.Duration) *Dispatcher {
	return &Dispatcher{Registry: registry, Queue: queue, QueueTimeout: queueTimeout}
}

func (d *Dispatcher) publish(eventType events.EventType, message string) {
	if d.Events == nil {
		return
	}
	d.Events.Publish(&events.Event{Type: eventType, Message: message})
}

// RequestWorker implements spec §4.3's dispatch algorithm:
//  1. Empty registry -> ErrNoWorkers.
//  2. Otherwise try PickAndDecrement; on success return immediately.
//  3. On failure, enqueue a rendezvous waiter; ErrQueueFull if the queue
//     is at capacity.
//  4. Await the rendezvous up to QueueTimeout; on timeout, best-effort
//     remove the waiter and return ErrRequestTimeout. The rendezvous
//     channel is never closed, so this path does not return ErrInternal.
func (d *Dispatcher) RequestWorker() (jobID, endpoint string, err error) {
	if d.Registry.Empty() {
		metrics.JobsRejectedTotal.WithLabelValues("no_workers").Inc()
		return "", "", ErrNoWorkers
	}

	timer := metrics.NewTimer()

	if workerID, ep, ok := d.Registry.PickAndDecrement(); ok {
		jobID = uuid.New().String()
		timer.ObserveDuration(metrics.DispatchLatency)
		metrics.JobsDispatchedTotal.Inc()
		d.publish(events.EventJobDispatched, jobID+" -> "+workerID)
		return jobID, ep, nil
	}

	jobID = uuid.New().String()
	job := NewPendingJob(jobID)
	if !d.Queue.Enqueue(job) {
		metrics.JobsRejectedTotal.WithLabelValues("queue_full").Inc()
		return "", "", ErrQueueFull
	}
	metrics.JobsEnqueuedTotal.Inc()
	metrics.PendingQueueDepth.Set(float64(d.Queue.Len()))
	d.publish(events.EventJobQueued, jobID)

	endpoint, ok := job.Await(d.QueueTimeout)
	metrics.PendingQueueDepth.Set(float64(d.Queue.Len()))
	if ok {
		timer.ObserveDuration(metrics.DispatchLatency)
		metrics.JobsDispatchedTotal.Inc()
		return jobID, endpoint, nil
	}

	// Timed out: best-effort reclaim, since the writer may have concurrently
	// dequeued this job right before the timeout fired.
	d.Queue.RemoveByID(jobID)
	metrics.PendingQueueDepth.Set(float64(d.Queue.Len()))
	metrics.JobsRejectedTotal.WithLabelValues("timeout").Inc()
	d.publish(events.EventJobTimedOut, jobID)
	return "", "", ErrRequestTimeout
}

// Heartbeat implements spec §4.3's heartbeat-triggered drain:
//  1. ApplyHeartbeat; Unknown -> ErrWorkerNotFound. Stale is accepted (200)
//     with no further action.
//  2. credits == 0 -> done.
//  3. Otherwise dequeue waiters and deliver this worker's endpoint to them
//     until either the queue is empty or `credits` waiters have been
//     fed, not counting "receiver gone" sends against assigned.
//  4. Re-apply credits - assigned so a concurrent /request_worker cannot
//     double-spend the capacity just donated to waiters.
func (d *Dispatcher) Heartbeat(workerID string, seq uint64, credits int) error {
	outcome := d.Registry.ApplyHeartbeat(workerID, seq, credits)
	switch outcome {
	case Unknown:
		metrics.HeartbeatsTotal.WithLabelValues("unknown_worker").Inc()
		return ErrWorkerNotFound
	case Stale:
		metrics.HeartbeatsTotal.WithLabelValues("stale_seq").Inc()
		return nil
	}
	metrics.HeartbeatsTotal.WithLabelValues("applied").Inc()
	metrics.WorkerCredits.WithLabelValues(workerID).Set(float64(credits))

	if credits == 0 {
		return nil
	}

	endpoint, ok := d.Registry.Endpoint(workerID)
	if !ok {
		// Evicted between ApplyHeartbeat and here; nothing to drain to.
		return nil
	}

	assigned := 0
	for assigned < credits {
		job := d.Queue.Dequeue()
		if job == nil {
			break
		}
		if job.Deliver(endpoint) {
			assigned++
			metrics.JobsDispatchedTotal.Inc()
			d.publish(events.EventJobDispatched, job.JobID+" -> "+workerID)
		}
		// "receiver gone": the waiter timed out or disconnected; its slot
		// was never actually handed out, so it must not count against
		// assigned.
	}
	metrics.PendingQueueDepth.Set(float64(d.Queue.Len()))

	if assigned > 0 {
		d.Registry.AdjustCredits(workerID, credits-assigned)
		metrics.WorkerCredits.WithLabelValues(workerID).Set(float64(credits - assigned))
	}
	return nil
}
