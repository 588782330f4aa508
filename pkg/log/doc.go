/*
Package log provides structured logging for waspool using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable levels, and helper functions
for the common logging patterns used by the orchestrator, worker, and client.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("orchestrator starting")

	workerLog := log.WithWorkerID("worker-abc123")
	workerLog.Info().Int("credits", 1).Msg("heartbeat sent")

	jobLog := log.WithJobID(jobID)
	jobLog.Error().Err(err).Msg("execution failed")

Console output is used by default for local development; set JSONOutput
to true for production deployments where logs are shipped to an aggregator.
*/
package log
