package client

import (
	"context"
	"fmt"
	"net"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasplane/waspool/pkg/orchestrator"
	"github.com/wasplane/waspool/pkg/wasmrt"
	"github.com/wasplane/waspool/pkg/worker"
)

// fibModule is the hand-assembled WASI command module shared across package
// tests: it computes fib(10)=55 and writes "55\n" to stdout.
func fibModule(t *testing.T) []byte {
	t.Helper()
	b, err := os.ReadFile("testdata/fib.wasm")
	require.NoError(t, err)
	return b
}

// newRealStack wires an in-process orchestrator.Server and worker.Server,
// both serving their real production handlers over httptest, and registers
// the worker with the orchestrator exactly as the worker binary does at
// startup. This drives the hash-first submission flow end to end instead of
// against a hand-rolled fake.
func newRealStack(t *testing.T) (orchestratorURL string) {
	t.Helper()

	orchSrv := orchestrator.NewServer(orchestrator.Config{
		MaxQueueSize: 4,
		QueueTimeout: 2 * time.Second,
	})
	orchTS := httptest.NewServer(orchSrv.Handler())
	t.Cleanup(orchTS.Close)

	rt, err := wasmrt.New(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close(context.Background()) })

	// The worker must advertise the same port its HTTP server actually
	// listens on, so bind the listener first and hand its port to both.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port

	w := worker.NewWorker(worker.Config{
		OrchestratorAddr:  orchTS.URL,
		ListenPort:        uint16(port),
		MaxCredits:        2,
		HeartbeatInterval: 50 * time.Millisecond,
	})
	workerSrv := worker.NewServer(w, rt, fmt.Sprintf(":%d", port))

	workerTS := httptest.NewUnstartedServer(workerSrv.Handler())
	workerTS.Listener.Close()
	workerTS.Listener = ln
	workerTS.Start()
	t.Cleanup(workerTS.Close)

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { w.Stop(context.Background()) })

	return orchTS.URL
}

func TestClient_Submit_HappyPathComputesFib10(t *testing.T) {
	orchestratorURL := newRealStack(t)
	c := New(orchestratorURL)

	result, err := c.Submit(context.Background(), fibModule(t), nil)
	require.NoError(t, err)

	assert.NotEmpty(t, result.JobID)
	assert.Contains(t, result.Output, "55")
}

func TestClient_Submit_SecondSubmissionIsServedFromHashCache(t *testing.T) {
	orchestratorURL := newRealStack(t)
	c := New(orchestratorURL)
	module := fibModule(t)

	first, err := c.Submit(context.Background(), module, nil)
	require.NoError(t, err)
	assert.Contains(t, first.Output, "55")

	// A second submission of the same bytes should resolve via submit_hash
	// against the worker's compiled-module cache rather than re-uploading
	// the module bytes.
	second, err := c.Submit(context.Background(), module, nil)
	require.NoError(t, err)
	assert.Contains(t, second.Output, "55")
}

func TestClient_Submit_NoWorkersPropagatesError(t *testing.T) {
	orchSrv := orchestrator.NewServer(orchestrator.Config{MaxQueueSize: 4, QueueTimeout: 200 * time.Millisecond})
	orchTS := httptest.NewServer(orchSrv.Handler())
	defer orchTS.Close()

	c := New(orchTS.URL)

	_, err := c.Submit(context.Background(), []byte("module"), nil)

	assert.Error(t, err)
}
