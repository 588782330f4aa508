/*
Package metrics provides Prometheus metrics collection and exposition for
waspool, plus a small process health tracker used by the /health and /ready
endpoints.

Metrics are registered at package init and exposed via Handler() for
scraping. A Timer helper times an operation and records the elapsed seconds
to a histogram.

# Usage

	timer := metrics.NewTimer()
	dispatchJob()
	timer.ObserveDuration(metrics.DispatchLatency)

	http.Handle("/metrics", metrics.Handler())

# Health tracking

	metrics.SetCriticalComponents("registry", "queue")
	metrics.RegisterComponent("registry", true, "")
	http.HandleFunc("/health", metrics.HealthHandler())
	http.HandleFunc("/ready", metrics.ReadyHandler())
*/
package metrics
