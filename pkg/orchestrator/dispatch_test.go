package orchestrator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(maxQueue int, queueTimeout time.Duration) (*Dispatcher, *Registry) {
	registry := NewRegistry()
	queue := NewQueue(maxQueue)
	return NewDispatcher(registry, queue, queueTimeout), registry
}

func TestDispatcher_RequestWorker_NoWorkers(t *testing.T) {
	d, _ := newTestDispatcher(10, time.Second)

	_, _, err := d.RequestWorker()

	assert.Equal(t, ErrNoWorkers, err)
}

func TestDispatcher_RequestWorker_ImmediateDispatch(t *testing.T) {
	d, registry := newTestDispatcher(10, time.Second)
	registry.Register("10.0.0.1", 9000, 1)

	jobID, endpoint, err := d.RequestWorker()

	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
	assert.Equal(t, "http://10.0.0.1:9000", endpoint)
}

func TestDispatcher_RequestWorker_QueueFull(t *testing.T) {
	d, registry := newTestDispatcher(0, 50*time.Millisecond)
	registry.Register("10.0.0.1", 9000, 0)

	_, _, err := d.RequestWorker()

	assert.Equal(t, ErrQueueFull, err)
}

func TestDispatcher_RequestWorker_TimesOutWhenNoCreditArrives(t *testing.T) {
	d, registry := newTestDispatcher(10, 30*time.Millisecond)
	registry.Register("10.0.0.1", 9000, 0)

	_, _, err := d.RequestWorker()

	assert.Equal(t, ErrRequestTimeout, err)
	assert.Equal(t, 0, d.Queue.Len())
}

func TestDispatcher_RequestWorker_WaiterServedByHeartbeat(t *testing.T) {
	d, registry := newTestDispatcher(10, time.Second)
	workerID := registry.Register("10.0.0.1", 9000, 0)

	var wg sync.WaitGroup
	var jobID, endpoint string
	var reqErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		jobID, endpoint, reqErr = d.RequestWorker()
	}()

	require.Eventually(t, func() bool { return d.Queue.Len() == 1 }, time.Second, time.Millisecond)

	err := d.Heartbeat(workerID, 1, 1)
	require.NoError(t, err)

	wg.Wait()

	require.NoError(t, reqErr)
	assert.NotEmpty(t, jobID)
	assert.Equal(t, "http://10.0.0.1:9000", endpoint)
}

func TestDispatcher_Heartbeat_UnknownWorker(t *testing.T) {
	d, _ := newTestDispatcher(10, time.Second)

	err := d.Heartbeat("missing", 1, 1)

	assert.Equal(t, ErrWorkerNotFound, err)
}

func TestDispatcher_Heartbeat_StaleIsAcceptedNoop(t *testing.T) {
	d, registry := newTestDispatcher(10, time.Second)
	workerID := registry.Register("10.0.0.1", 9000, 0)
	require.NoError(t, d.Heartbeat(workerID, 5, 3))

	err := d.Heartbeat(workerID, 5, 9)

	assert.NoError(t, err)
	snap := registry.Snapshot()
	assert.Equal(t, 3, snap[0].Credits)
}

func TestDispatcher_Heartbeat_DrainsQueueAndReapsCredits(t *testing.T) {
	d, registry := newTestDispatcher(10, time.Second)
	workerID := registry.Register("10.0.0.1", 9000, 0)

	jobA := NewPendingJob("a")
	jobB := NewPendingJob("b")
	d.Queue.Enqueue(jobA)
	d.Queue.Enqueue(jobB)

	err := d.Heartbeat(workerID, 1, 3)
	require.NoError(t, err)

	epA, okA := jobA.Await(time.Second)
	epB, okB := jobB.Await(time.Second)
	assert.True(t, okA)
	assert.True(t, okB)
	assert.Equal(t, "http://10.0.0.1:9000", epA)
	assert.Equal(t, "http://10.0.0.1:9000", epB)

	snap := registry.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 1, snap[0].Credits, "3 credits - 2 assigned waiters = 1 remaining")
}

func TestDispatcher_Heartbeat_AbandonedWaiterDoesNotCountAgainstAssigned(t *testing.T) {
	d, registry := newTestDispatcher(10, time.Second)
	workerID := registry.Register("10.0.0.1", 9000, 0)

	abandoned := NewPendingJob("abandoned")
	_, ok := abandoned.Await(5 * time.Millisecond)
	require.False(t, ok)

	live := NewPendingJob("live")
	d.Queue.Enqueue(abandoned)
	d.Queue.Enqueue(live)

	err := d.Heartbeat(workerID, 1, 1)
	require.NoError(t, err)

	endpoint, ok := live.Await(time.Second)
	assert.True(t, ok)
	assert.Equal(t, "http://10.0.0.1:9000", endpoint)

	snap := registry.Snapshot()
	assert.Equal(t, 0, snap[0].Credits)
}
