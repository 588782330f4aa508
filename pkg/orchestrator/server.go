package orchestrator

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/wasplane/waspool/pkg/events"
	"github.com/wasplane/waspool/pkg/log"
	"github.com/wasplane/waspool/pkg/metrics"
	"github.com/wasplane/waspool/pkg/protocol"
)

// Config holds the orchestrator's tunables, following the teacher's
// Config-struct-plus-constructor pattern.
type Config struct {
	Addr              string
	MaxQueueSize      int
	QueueTimeout      time.Duration
	LivenessTimeout   time.Duration
	LivenessSweep     bool
	SweepInterval     time.Duration
	PublishAuditTrail bool
}

// Server wires the registry, queue, and dispatcher to an HTTP surface.
type Server struct {
	cfg        Config
	registry   *Registry
	queue      *Queue
	dispatcher *Dispatcher
	events     *events.Broker
	httpServer *http.Server
	stopSweep  chan struct{}
}

// NewServer constructs a Server ready to Start.
func NewServer(cfg Config) *Server {
	registry := NewRegistry()
	queue := NewQueue(cfg.MaxQueueSize)
	dispatcher := NewDispatcher(registry, queue, cfg.QueueTimeout)

	var broker *events.Broker
	if cfg.PublishAuditTrail {
		broker = events.NewBroker()
		dispatcher.Events = broker
	}

	s := &Server{
		cfg:        cfg,
		registry:   registry,
		queue:      queue,
		dispatcher: dispatcher,
		events:     broker,
		stopSweep:  make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/register_worker", s.handleRegisterWorker)
	mux.HandleFunc("/unregister_worker", s.handleUnregisterWorker)
	mux.HandleFunc("/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("/request_worker", s.handleRequestWorker)
	mux.HandleFunc("/monitoring_info", s.handleMonitoringInfo)
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.Handle("/metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.QueueTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metrics.SetCriticalComponents("registry", "queue")
	metrics.RegisterComponent("registry", true, "")
	metrics.RegisterComponent("queue", true, "")

	return s
}

// Events exposes the audit-trail broker, or nil if it was not enabled.
func (s *Server) Events() *events.Broker { return s.events }

// Handler exposes the server's HTTP handler so tests can drive it through
// httptest.NewServer without binding a real port via Start.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins serving HTTP and, if configured, the liveness sweep. It
// blocks until the listener stops (mirrors http.Server.ListenAndServe).
func (s *Server) Start() error {
	if s.events != nil {
		s.events.Start()
	}
	if s.cfg.LivenessSweep {
		go s.sweepLoop()
	}

	log.Info("orchestrator listening on " + s.cfg.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server and background loops.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stopSweep)
	if s.events != nil {
		s.events.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}

// sweepLoop implements the optional liveness sweep of spec §4.1: workers
// whose last heartbeat is older than 3x the heartbeat interval are
// evicted, equivalent to an /unregister_worker.
func (s *Server) sweepLoop() {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			evicted := s.registry.EvictStale(s.cfg.LivenessTimeout)
			for _, id := range evicted {
				log.WithWorkerID(id).Warn().Msg("evicted stale worker")
				metrics.WorkersEvictedTotal.Inc()
				if s.events != nil {
					s.events.Publish(&events.Event{Type: events.EventWorkerEvicted, Message: id})
				}
			}
			metrics.WorkersTotal.Set(float64(len(s.registry.Snapshot())))
		case <-s.stopSweep:
			return
		}
	}
}

func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	if oerr, ok := err.(*Error); ok {
		status = oerr.Status
	}
	writeJSON(w, status, protocol.ErrorResponse{Error: msg})
}

func (s *Server) handleRegisterWorker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req protocol.RegisterWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInternal)
		return
	}

	workerID := s.registry.Register(peerIP(r), req.Port, req.InitialCredits)
	metrics.WorkersTotal.Set(float64(len(s.registry.Snapshot())))
	log.WithWorkerID(workerID).Info().Int("initial_credits", req.InitialCredits).Msg("worker registered")
	if s.events != nil {
		s.events.Publish(&events.Event{Type: events.EventWorkerRegistered, Message: workerID})
	}

	writeJSON(w, http.StatusCreated, protocol.RegisterWorkerResponse{WorkerID: workerID})
}

func (s *Server) handleUnregisterWorker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req protocol.UnregisterWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInternal)
		return
	}

	if !s.registry.Unregister(req.WorkerID) {
		writeError(w, ErrWorkerNotFound)
		return
	}
	metrics.WorkersTotal.Set(float64(len(s.registry.Snapshot())))
	log.WithWorkerID(req.WorkerID).Info().Msg("worker unregistered")
	if s.events != nil {
		s.events.Publish(&events.Event{Type: events.EventWorkerUnregistered, Message: req.WorkerID})
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req protocol.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInternal)
		return
	}

	if err := s.dispatcher.Heartbeat(req.WorkerID, req.Seq, req.Credits); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRequestWorker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID, endpoint, err := s.dispatcher.RequestWorker()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, protocol.RequestWorkerResponse{JobID: jobID, WorkerEndpoint: endpoint})
}

func (s *Server) handleMonitoringInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records := s.registry.Snapshot()
	workers := make([]protocol.WorkerInfo, 0, len(records))
	for _, rec := range records {
		workers = append(workers, protocol.WorkerInfo{
			ID:       rec.WorkerID,
			Endpoint: rec.Endpoint,
			Credits:  rec.Credits,
			Seq:      rec.Seq,
			LastSeen: rec.LastSeen.Format(time.RFC3339),
		})
	}

	summaries := s.queue.Snapshot()
	pending := make([]protocol.JobSummary, 0, len(summaries))
	for _, sum := range summaries {
		pending = append(pending, protocol.JobSummary{
			JobID:       sum.JobID,
			SubmittedAt: sum.SubmittedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, protocol.MonitoringInfo{Workers: workers, Pending: pending})
}
