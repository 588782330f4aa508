package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wasplane/waspool/pkg/client"
	"github.com/wasplane/waspool/pkg/log"
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
	Use:     "waspool-client <wasm-file> [args...]",
	Short:   "Submit a WASM module to a waspool orchestrator and print its output",
	Args:    cobra.MinimumNArgs(1),
	Version: Version,
	RunE:    runSubmit,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"waspool-client version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	rootCmd.Flags().String("server", "http://127.0.0.1:8080", "Orchestrator base URL")
	rootCmd.Flags().Duration("timeout", 60*time.Second, "Overall deadline for the submission")

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

func runSubmit(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	wasmPath := args[0]
	callArgs := args[1:]

	moduleBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", wasmPath, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c := client.New(server)
	result, err := c.Submit(ctx, moduleBytes, callArgs)
	if err != nil {
		return fmt.Errorf("submission failed: %w", err)
	}

	fmt.Printf("job_id: %s\n", result.JobID)
	fmt.Println(result.Output)
	return nil
}
