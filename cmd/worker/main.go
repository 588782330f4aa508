package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wasplane/waspool/pkg/config"
	"github.com/wasplane/waspool/pkg/log"
	"github.com/wasplane/waspool/pkg/metrics"
	"github.com/wasplane/waspool/pkg/wasmrt"
	"github.com/wasplane/waspool/pkg/worker"
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
	Use:   "worker",
	Short: "waspool worker - registers with an orchestrator and executes WASM jobs",
	Long: `The worker registers with an orchestrator, heartbeats its spare
credit on a fixed interval, and answers submit_wasm/submit_hash requests by
compiling and executing the module through an embedded wazero runtime.`,
	Version: Version,
	RunE:    runWorker,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"worker version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	rootCmd.Flags().String("orchestrator", "http://127.0.0.1:8080", "Orchestrator base URL")
	rootCmd.Flags().Uint16("port", 9100, "Port this worker listens on for submit_wasm/submit_hash")
	rootCmd.Flags().String("listen-addr", "", "Address to bind the job-submission HTTP server (defaults to :<port>)")
	rootCmd.Flags().String("config", "", "Optional YAML config file (overrides compiled-in defaults)")
	rootCmd.Flags().Int("max-credits", 0, "Concurrent job capacity advertised to the orchestrator (0 keeps config/default)")
	rootCmd.Flags().Duration("heartbeat-interval", 0, "Heartbeat period (0 keeps config/default)")
	rootCmd.Flags().Int("module-cache-capacity", 0, "Compiled-module LRU cache size (0 keeps config/default)")

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

func runWorker(cmd *cobra.Command, args []string) error {
	orchestratorAddr, _ := cmd.Flags().GetString("orchestrator")
	port, _ := cmd.Flags().GetUint16("port")
	listenAddr, _ := cmd.Flags().GetString("listen-addr")
	configPath, _ := cmd.Flags().GetString("config")
	maxCredits, _ := cmd.Flags().GetInt("max-credits")
	heartbeatInterval, _ := cmd.Flags().GetDuration("heartbeat-interval")
	moduleCacheCapacity, _ := cmd.Flags().GetInt("module-cache-capacity")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if maxCredits > 0 {
		cfg.MaxCredits = maxCredits
	}
	if heartbeatInterval > 0 {
		cfg.HeartbeatInterval = heartbeatInterval
	}
	if moduleCacheCapacity > 0 {
		cfg.ModuleCacheCapacity = moduleCacheCapacity
	}
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%d", port)
	}

	ctx := context.Background()
	rt, err := wasmrt.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to start wasm runtime: %w", err)
	}
	defer rt.Close(ctx)

	w := worker.NewWorker(worker.Config{
		OrchestratorAddr:    orchestratorAddr,
		ListenPort:          port,
		MaxCredits:          cfg.MaxCredits,
		HeartbeatInterval:   cfg.HeartbeatInterval,
		ModuleCacheCapacity: cfg.ModuleCacheCapacity,
	})

	srv := worker.NewServer(w, rt, listenAddr)

	metrics.SetVersion(Version)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("job-submission server error: %w", err)
		}
	}()
	fmt.Printf("✓ Job-submission server listening on %s\n", listenAddr)
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", listenAddr)

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to register with orchestrator: %w", err)
	}
	fmt.Printf("✓ Registered with orchestrator at %s\n", orchestratorAddr)
	fmt.Println("Worker is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Drain in-flight submit_wasm/submit_hash requests before telling the
	// orchestrator this worker is gone, so /unregister_worker reflects a
	// worker that has actually finished its last job, not one still
	// executing under its old registration.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}
	w.Stop(shutdownCtx)

	fmt.Println("✓ Shutdown complete")
	return nil
}
