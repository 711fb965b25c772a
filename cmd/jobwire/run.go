package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getjobwire/jobwire/internal/runner"
	"github.com/getjobwire/jobwire/internal/source"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run all enabled sources once",
	Long:  "Processes every enabled source sequentially. During post countdowns: s skips the wait, n moves to the next source, q aborts the run.",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
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

	httpClient := &http.Client{Timeout: 30 * time.Second}
	var sources []runner.Source
	for _, sc := range cfg.Sources {
		if !sc.Enabled {
			continue
		}
		adapter, err := source.New(sc, httpClient)
		if err != nil {
			logger.Warn("skipping source", "source", sc.Name, "error", err)
			continue
		}
		sources = append(sources, runner.Source{
			Adapter:      adapter,
			DupThreshold: sc.DupThreshold,
			// API sources pre-fetch full bodies; their candidates go
			// through the scheduled queue instead of posting now.
			Enqueue: sc.Type == "api",
		})
		logger.Info("registered source", "name", sc.Name, "type", sc.Type)
	}
	if len(sources) == 0 {
		logger.Error("no sources to run")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	waiter := runner.NewWaiter(runner.ReadKeys(os.Stdin))
	r := runner.NewRunner(pipe.gate, pipe.fetcher, pipe.chain, pipe.store, pipe.scheduler, pipe.bundler, waiter, cfg.Run, logger)

	res := r.Run(ctx, sources)
	if res.Aborted {
		os.Exit(1)
	}
	return nil
}
