package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	WorkersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "waspool_workers_total",
			Help: "Total number of registered workers",
		},
	)

	WorkerCredits = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waspool_worker_credits",
			Help: "Last reported credits per worker",
		},
		[]string{"worker_id"},
	)

	HeartbeatsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waspool_heartbeats_total",
			Help: "Total heartbeats received by outcome",
		},
		[]string{"outcome"}, // applied, stale_seq, unknown_worker
	)

	WorkersEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waspool_workers_evicted_total",
			Help: "Total workers evicted by the liveness sweep",
		},
	)

	// Queue metrics
	PendingQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "waspool_pending_queue_depth",
			Help: "Current number of jobs waiting in the pending queue",
		},
	)

	JobsEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waspool_jobs_enqueued_total",
			Help: "Total jobs added to the pending queue",
		},
	)

	JobsDispatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waspool_jobs_dispatched_total",
			Help: "Total jobs successfully handed off to a worker endpoint",
		},
	)

	JobsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waspool_jobs_rejected_total",
			Help: "Total jobs rejected by outcome",
		},
		[]string{"reason"}, // no_workers, queue_full, timeout
	)

	DispatchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "waspool_dispatch_latency_seconds",
			Help:    "Time between request_worker and a worker endpoint being handed back",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Worker-side job execution metrics
	JobsExecutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waspool_jobs_executed_total",
			Help: "Total jobs executed by this worker, by outcome",
		},
		[]string{"outcome"}, // ok, execution
	)

	JobExecutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "waspool_job_execution_duration_seconds",
			Help:    "Time taken to run a WASM module to completion",
			Buckets: prometheus.DefBuckets,
		},
	)

	ActiveJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "waspool_active_jobs",
			Help: "Number of jobs currently executing on this worker",
		},
	)

	ModuleCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waspool_module_cache_requests_total",
			Help: "Total module cache lookups by outcome",
		},
		[]string{"outcome"}, // hit, miss
	)

	ModuleCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "waspool_module_cache_size",
			Help: "Current number of compiled modules held in the cache",
		},
	)
)

func init() {
	prometheus.MustRegister(WorkersTotal)
	prometheus.MustRegister(WorkerCredits)
	prometheus.MustRegister(HeartbeatsTotal)
	prometheus.MustRegister(WorkersEvictedTotal)
	prometheus.MustRegister(PendingQueueDepth)
	prometheus.MustRegister(JobsEnqueuedTotal)
	prometheus.MustRegister(JobsDispatchedTotal)
	prometheus.MustRegister(JobsRejectedTotal)
	prometheus.MustRegister(DispatchLatency)
	prometheus.MustRegister(JobsExecutedTotal)
	prometheus.MustRegister(JobExecutionDuration)
	prometheus.MustRegister(ActiveJobs)
	prometheus.MustRegister(ModuleCacheHitsTotal)
	prometheus.MustRegister(ModuleCacheSize)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
