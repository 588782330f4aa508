package worker

import "sync/atomic"

// JobTicket is a scope-bound handle on the worker's active-job count. Acquire
// increments a shared counter; Release decrements it. Callers must defer
// Release immediately after Acquire, mirroring the RAII pattern this is
// grounded on (spec §4.4).
type JobTicket struct {
	counter *atomic.Int64
}

// AcquireTicket increments counter and returns a ticket bound to it. The
// caller must defer ticket.Release().
func AcquireTicket(counter *atomic.Int64) *JobTicket {
	counter.Add(1)
	return &JobTicket{counter: counter}
}

// Release decrements the counter the ticket was acquired against. It is safe
// to call at most once per ticket, via defer.
func (t *JobTicket) Release() {
	t.counter.Add(-1)
}
