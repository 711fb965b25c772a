package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getjobwire/jobwire/internal/worker"
)

var workerInterval time.Duration

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the queue drain daemon",
	Long:  "Publishes due scheduled-queue items on a fixed tick; blocks until SIGINT/SIGTERM.",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().DurationVar(&workerInterval, "tick", time.Minute, "how often to check for due queue items")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	pipe, err := buildPipeline(cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer pipe.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := worker.NewWorker(pipe.scheduler, pipe.gate, pipe.fetcher, pipe.chain, pipe.store, pipe.bundler, workerInterval, logger)
	if err := w.Run(ctx); err != nil {
		logger.Error("worker error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
