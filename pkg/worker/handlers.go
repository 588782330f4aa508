package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"

	"github.com/wasplane/waspool/pkg/log"
	"github.com/wasplane/waspool/pkg/metrics"
	"github.com/wasplane/waspool/pkg/protocol"
	"github.com/wasplane/waspool/pkg/wasmrt"
)

// Server exposes a Worker's submit_wasm/submit_hash HTTP surface, backed by
// a wazero runtime and a content-addressed module cache (spec §4.6).
type Server struct {
	worker     *Worker
	runtime    *wasmrt.Runtime
	cache      *ModuleCache[wazero.CompiledModule]
	httpServer *http.Server
}

// NewServer wires a Worker to its HTTP handlers and an execution runtime.
func NewServer(w *Worker, rt *wasmrt.Runtime, addr string) *Server {
	s := &Server{
		worker:  w,
		runtime: rt,
		cache:   NewModuleCache[wazero.CompiledModule](w.cfg.ModuleCacheCapacity),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/submit_wasm", s.handleSubmitWasm)
	mux.HandleFunc("/submit_hash", s.handleSubmitHash)
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.Handle("/metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metrics.SetCriticalComponents("cache", "wasmrt")
	metrics.RegisterComponent("cache", true, "")
	metrics.RegisterComponent("wasmrt", true, "")

	return s
}

// Handler exposes the server's HTTP handler so tests can drive it through
// httptest.NewServer without binding a real port via ListenAndServe.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ListenAndServe starts the worker's HTTP surface. It blocks until Shutdown
// is called or the listener fails.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeWorkerError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	if werr, ok := err.(*Error); ok {
		status = werr.Status
	}
	writeJSON(w, status, protocol.ErrorResponse{Error: msg})
}

// handleSubmitWasm implements POST /submit_wasm: compile the module, store
// it in the cache under its content hash (replacing any existing entry),
// execute it, and return captured stdout. The cache is not consulted before
// compiling.
func (s *Server) handleSubmitWasm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req protocol.JobSubmissionWasm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWorkerError(w, NewValidationError("malformed request body"))
		return
	}
	if len(req.ModuleBytes) == 0 {
		writeWorkerError(w, NewValidationError("empty wasm module"))
		return
	}

	log.Logger.Info().Strs("call_args", req.Manifest.CallArgs).Msg("received wasm submission")

	ctx := r.Context()
	compiled, err := s.runtime.Compile(ctx, req.ModuleBytes)
	if err != nil {
		writeWorkerError(w, NewCompileError(err.Error()))
		return
	}

	hash := protocol.HashModule(req.ModuleBytes)
	s.cache.Put(hash, &compiled)
	metrics.ModuleCacheSize.Set(float64(s.cache.Len()))

	s.execute(w, compiled, req.Manifest.CallArgs)
}

// handleSubmitHash implements POST /submit_hash: look up a previously
// submitted module by content hash, 404 on miss so the client can fall back
// to submit_wasm.
func (s *Server) handleSubmitHash(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req protocol.JobSubmissionHash
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWorkerError(w, NewValidationError("malformed request body"))
		return
	}
	if req.ModuleHash == "" {
		writeWorkerError(w, NewValidationError("empty module hash"))
		return
	}

	log.Logger.Info().Strs("call_args", req.Manifest.CallArgs).Msg("received hash submission")

	compiled, ok := s.cache.Get(req.ModuleHash)
	if !ok {
		metrics.ModuleCacheHitsTotal.WithLabelValues("miss").Inc()
		writeWorkerError(w, NewModuleNotFoundError(req.ModuleHash))
		return
	}
	metrics.ModuleCacheHitsTotal.WithLabelValues("hit").Inc()

	s.execute(w, *compiled, req.Manifest.CallArgs)
}

func (s *Server) execute(w http.ResponseWriter, compiled wazero.CompiledModule, callArgs []string) {
	ticket := s.worker.AcquireJobTicket()
	defer ticket.Release()

	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	timer := metrics.NewTimer()

	stdout, err := s.runtime.Execute(context.Background(), compiled, callArgs)
	timer.ObserveDuration(metrics.JobExecutionDuration)

	if err != nil {
		metrics.JobsExecutedTotal.WithLabelValues("execution").Inc()
		writeWorkerError(w, NewExecutionError(err.Error()))
		return
	}
	metrics.JobsExecutedTotal.WithLabelValues("ok").Inc()

	resp := protocol.SubmitResponse{
		JobID:   uuid.New().String(),
		Message: "job accepted, output: " + stdout,
	}
	writeJSON(w, http.StatusCreated, resp)
}
