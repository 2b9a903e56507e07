// Command emberlog is a small demonstration CLI: it wires up a Logger
// from flags and either emits a burst of sample records (run) or prints
// build version information (version).
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"emberlog"
	"emberlog/internal/logging"
)

var version = "dev"

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	rootCmd := &cobra.Command{
		Use:   "emberlog",
		Short: "Structured logging library demo CLI",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Emit a burst of sample records to configured sinks",
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath, _ := cmd.Flags().GetString("file")
			count, _ := cmd.Flags().GetInt("count")
			async, _ := cmd.Flags().GetBool("async")
			return run(logger, filePath, count, async)
		},
	}
	runCmd.Flags().String("file", "", "additionally write JSON records to this path")
	runCmd.Flags().Int("count", 10, "number of sample records to emit")
	runCmd.Flags().Bool("async", false, "dispatch through the ring buffer and thread pool instead of synchronously")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(runCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(logger *slog.Logger, filePath string, count int, async bool) error {
	cfg := emberlog.Config{
		Sinks: []emberlog.SinkConfig{
			{Name: "console", Type: "console", MinLevel: emberlog.LevelInfo,
				Format: emberlog.FormatStructureConfig{Kind: "text", GlobalColorDisplay: true, SinkSupportsANSI: true}},
		},
		Logger: logger,
		OnSinkError: func(sinkName string, err *emberlog.Error) {
			logger.Error("sink error", "sink", sinkName, "kind", err.Kind.String(), "error", err)
		},
	}
	if filePath != "" {
		cfg.Sinks = append(cfg.Sinks, emberlog.SinkConfig{
			Name: "file", Type: "file", Path: filePath, MinLevel: emberlog.LevelDebug,
			Format: emberlog.FormatStructureConfig{Kind: "json", TimestampISO: true},
		})
	}
	if async {
		cfg.Async = &emberlog.AsyncConfig{
			Enabled: true, Capacity: 1024, BatchSize: 32,
			FlushInterval: 20 * time.Millisecond, ShutdownTimeout: 2 * time.Second,
		}
		cfg.Pool = &emberlog.ThreadPoolConfig{Workers: 2}
	}

	l, err := emberlog.New(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer l.Close()

	req := l.Scoped("request")
	for i := 0; i < count; i++ {
		bound := req.Bind("iteration", i)
		bound.Info(fmt.Sprintf("processed sample record %d", i))
		if i%4 == 0 {
			bound.Warning("elevated latency observed")
		}
	}

	if err := l.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
