package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/wasplane/waspool/pkg/log"
	"github.com/wasplane/waspool/pkg/protocol"
)

// Config holds a worker's tunables, following the teacher's
// Config-struct-plus-constructor pattern.
type Config struct {
	OrchestratorAddr    string
	ListenPort          uint16
	MaxCredits          int
	HeartbeatInterval   time.Duration
	ModuleCacheCapacity int
}

// Worker registers with an orchestrator, answers job submissions, and
// advertises its spare capacity via periodic heartbeats (spec §4.5).
type Worker struct {
	cfg        Config
	httpClient *http.Client

	workerID string

	activeJobs atomic.Int64
	seq        atomic.Uint64

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWorker constructs a worker bound to the given config. Call Start to
// register with the orchestrator and begin heartbeating.
func NewWorker(cfg Config) *Worker {
	if cfg.MaxCredits <= 0 {
		cfg.MaxCredits = 1
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 500 * time.Millisecond
	}
	return &Worker{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// WorkerID returns the id assigned at registration, valid after Start
// returns successfully.
func (w *Worker) WorkerID() string { return w.workerID }

// Start registers with the orchestrator and begins the heartbeat loop.
// Registration failure is fatal, matching spec §7's propagation rules.
func (w *Worker) Start(ctx context.Context) error {
	workerID, err := w.register(ctx)
	if err != nil {
		return fmt.Errorf("register with orchestrator: %w", err)
	}
	w.workerID = workerID
	log.WithWorkerID(workerID).Info().Str("orchestrator", w.cfg.OrchestratorAddr).Msg("registered with orchestrator")

	go w.heartbeatLoop()
	return nil
}

// Stop cancels the heartbeat loop and best-effort unregisters. Unregister
// failure is logged, not fatal (spec §7).
func (w *Worker) Stop(ctx context.Context) {
	close(w.stopCh)
	<-w.doneCh

	if err := w.unregister(ctx); err != nil {
		log.WithWorkerID(w.workerID).Warn().Err(err).Msg("failed to unregister from orchestrator")
	}
}

// AcquireJobTicket increments the active-job count for the duration of one
// submission. Callers must defer ticket.Release().
func (w *Worker) AcquireJobTicket() *JobTicket {
	return AcquireTicket(&w.activeJobs)
}

func (w *Worker) register(ctx context.Context) (string, error) {
	req := protocol.RegisterWorkerRequest{Port: w.cfg.ListenPort, InitialCredits: w.cfg.MaxCredits}
	var resp protocol.RegisterWorkerResponse
	if err := w.postJSON(ctx, "/register_worker", req, &resp); err != nil {
		return "", err
	}
	return resp.WorkerID, nil
}

func (w *Worker) unregister(ctx context.Context) error {
	req := protocol.UnregisterWorkerRequest{WorkerID: w.workerID}
	return w.postJSON(ctx, "/unregister_worker", req, nil)
}

func (w *Worker) heartbeatLoop() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.sendHeartbeat(); err != nil {
				log.WithWorkerID(w.workerID).Warn().Err(err).Msg("heartbeat failed")
			}
		case <-w.stopCh:
			return
		}
	}
}

func (w *Worker) sendHeartbeat() error {
	newSeq := w.seq.Add(1)
	credits := w.cfg.MaxCredits - int(w.activeJobs.Load())
	if credits < 0 {
		credits = 0
	}

	req := protocol.HeartbeatRequest{WorkerID: w.workerID, Seq: newSeq, Credits: credits}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return w.postJSON(ctx, "/heartbeat", req, nil)
}

func (w *Worker) postJSON(ctx context.Context, path string, body, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := w.cfg.OrchestratorAddr + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errResp protocol.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, errResp.Error)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
