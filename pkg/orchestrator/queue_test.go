package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueDequeueFIFO(t *testing.T) {
	q := NewQueue(10)
	a := NewPendingJob("a")
	b := NewPendingJob("b")

	require.True(t, q.Enqueue(a))
	require.True(t, q.Enqueue(b))

	assert.Equal(t, a, q.Dequeue())
	assert.Equal(t, b, q.Dequeue())
	assert.Nil(t, q.Dequeue())
}

func TestQueue_EnqueueRejectsWhenFull(t *testing.T) {
	q := NewQueue(1)
	require.True(t, q.Enqueue(NewPendingJob("a")))

	assert.False(t, q.Enqueue(NewPendingJob("b")))
	assert.Equal(t, 1, q.Len())
}

func TestQueue_RemoveByID(t *testing.T) {
	q := NewQueue(10)
	a := NewPendingJob("a")
	b := NewPendingJob("b")
	q.Enqueue(a)
	q.Enqueue(b)

	removed := q.RemoveByID("a")

	assert.Equal(t, a, removed)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, b, q.Dequeue())
}

func TestQueue_RemoveByID_AlreadyGone(t *testing.T) {
	q := NewQueue(10)

	assert.Nil(t, q.RemoveByID("missing"))
}

func TestPendingJob_DeliverThenAwait(t *testing.T) {
	job := NewPendingJob("a")

	go func() {
		delivered := job.Deliver("http://worker:9000")
		assert.True(t, delivered)
	}()

	endpoint, ok := job.Await(time.Second)

	assert.True(t, ok)
	assert.Equal(t, "http://worker:9000", endpoint)
}

func TestPendingJob_AwaitTimesOut(t *testing.T) {
	job := NewPendingJob("a")

	endpoint, ok := job.Await(20 * time.Millisecond)

	assert.False(t, ok)
	assert.Empty(t, endpoint)
}

func TestPendingJob_DeliverAfterAbandonReportsFalse(t *testing.T) {
	job := NewPendingJob("a")

	_, ok := job.Await(10 * time.Millisecond)
	require.False(t, ok)

	delivered := job.Deliver("http://worker:9000")

	assert.False(t, delivered)
}

func TestQueue_SnapshotIsNonDestructive(t *testing.T) {
	q := NewQueue(10)
	q.Enqueue(NewPendingJob("a"))

	snap := q.Snapshot()

	require.Len(t, snap, 1)
	assert.Equal(t, "a", snap[0].JobID)
	assert.Equal(t, 1, q.Len())
}
