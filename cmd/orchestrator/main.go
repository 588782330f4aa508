package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // profiling endpoints, gated behind --enable-pprof
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wasplane/waspool/pkg/config"
	"github.com/wasplane/waspool/pkg/log"
	"github.com/wasplane/waspool/pkg/metrics"
	"github.com/wasplane/waspool/pkg/orchestrator"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "waspool orchestrator - WASM job dispatch control plane",
	Long: `The orchestrator tracks registered workers, their spare capacity,
and a bounded pending-job queue, dispatching each /request_worker call to
whichever worker currently has credit to spare.`,
	Version: Version,
	RunE:    runOrchestrator,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"orchestrator version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	rootCmd.Flags().String("addr", "127.0.0.1:8080", "Address to listen on for worker and client traffic")
	rootCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve /metrics and /health on")
	rootCmd.Flags().String("config", "", "Optional YAML config file (overrides compiled-in defaults)")
	rootCmd.Flags().Int("max-queue-size", 0, "Max pending jobs when no worker has credit (0 keeps config/default)")
	rootCmd.Flags().Duration("queue-timeout", 0, "How long a queued job waits before giving up (0 keeps config/default)")
	rootCmd.Flags().Bool("liveness-sweep", true, "Evict workers that stop heartbeating")
	rootCmd.Flags().Duration("sweep-interval", 5*time.Second, "How often to check for stale workers")
	rootCmd.Flags().Bool("publish-audit-trail", false, "Publish registration/dispatch/eviction events to the audit broker")
	rootCmd.Flags().Bool("enable-pprof", false, "Enable pprof profiling endpoints on the metrics address")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func runOrchestrator(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	configPath, _ := cmd.Flags().GetString("config")
	maxQueueSize, _ := cmd.Flags().GetInt("max-queue-size")
	queueTimeout, _ := cmd.Flags().GetDuration("queue-timeout")
	livenessSweep, _ := cmd.Flags().GetBool("liveness-sweep")
	sweepInterval, _ := cmd.Flags().GetDuration("sweep-interval")
	publishAuditTrail, _ := cmd.Flags().GetBool("publish-audit-trail")
	pprofEnabled, _ := cmd.Flags().GetBool("enable-pprof")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if maxQueueSize > 0 {
		cfg.MaxQueueSize = maxQueueSize
	}
	if queueTimeout > 0 {
		cfg.QueueTimeout = queueTimeout
	}
	if !cmd.Flags().Changed("liveness-sweep") {
		livenessSweep = cfg.LivenessSweepEnabled
	}

	srv := orchestrator.NewServer(orchestrator.Config{
		Addr:              addr,
		MaxQueueSize:      cfg.MaxQueueSize,
		QueueTimeout:      cfg.QueueTimeout,
		LivenessTimeout:   cfg.LivenessTimeout(),
		LivenessSweep:     livenessSweep,
		SweepInterval:     sweepInterval,
		PublishAuditTrail: publishAuditTrail,
	})

	metrics.SetVersion(Version)

	if broker := srv.Events(); broker != nil {
		sub := broker.Subscribe()
		go func() {
			for ev := range sub {
				log.Logger.Info().Str("event", string(ev.Type)).Msg(ev.Message)
			}
		}()
		defer broker.Unsubscribe(sub)
		fmt.Println("✓ Audit trail enabled, events logged to stdout")
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", metrics.HealthHandler())
		mux.HandleFunc("/ready", metrics.ReadyHandler())
		mux.HandleFunc("/live", metrics.LivenessHandler())
		if pprofEnabled {
			mux.Handle("/debug/pprof/", http.DefaultServeMux)
		}
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)
	fmt.Printf("✓ Health endpoints: http://%s/health, /ready, /live\n", metricsAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- fmt.Errorf("orchestrator server error: %w", err)
		}
	}()

	fmt.Printf("✓ Orchestrator listening on %s\n", addr)
	fmt.Println("Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}

	fmt.Println("✓ Shutdown complete")
	return nil
}
