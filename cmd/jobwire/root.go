package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/getjobwire/jobwire/internal/bundle"
	"github.com/getjobwire/jobwire/internal/config"
	"github.com/getjobwire/jobwire/internal/dedupe"
	"github.com/getjobwire/jobwire/internal/enrich"
	"github.com/getjobwire/jobwire/internal/fetch"
	"github.com/getjobwire/jobwire/internal/media"
	"github.com/getjobwire/jobwire/internal/queue"
	"github.com/getjobwire/jobwire/internal/store"
	"github.com/getjobwire/jobwire/internal/telegram"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobwire",
	Short: "Job posting pipeline — ingest, enrich, distribute",
	Long:  "Jobwire ingests job listings from feeds, channels and partner APIs, enriches them and distributes them to Telegram channels.",
	// Default to `run` so `jobwire` with no args starts an interactive run.
	RunE: runRun,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBWIRE_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBWIRE_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBWIRE_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// pipeline bundles everything the run and worker commands share.
type pipeline struct {
	store     *store.SQLiteStore
	gate      *dedupe.Gate
	fetcher   *fetch.Fetcher
	chain     *enrich.Chain
	scheduler *queue.Scheduler
	telegram  *telegram.Client
	bundler   *bundle.Bundler
}

func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	sqlStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Fetch.Timeout}
	if httpClient.Timeout == 0 {
		httpClient.Timeout = 30 * time.Second
	}

	limiter := fetch.NewHostLimiter(cfg.Fetch.RequestsPerSec, cfg.Fetch.Burst)
	fetcher := fetch.NewFetcher(httpClient, limiter, logger)

	aiClient := &http.Client{Timeout: cfg.AI.Timeout}
	if aiClient.Timeout == 0 {
		aiClient.Timeout = 2 * time.Minute
	}
	completer := enrich.NewOpenAICompleter(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, aiClient)
	uploader := media.NewHTTPUploader(cfg.Media.UploadURL, cfg.Media.APIKey, httpClient)
	chain := enrich.NewChain(completer, uploader, logger)

	tg := telegram.NewClient(cfg.Telegram.BotToken, httpClient, logger)
	bundler := bundle.NewBundler(tg, sqlStore, bundle.Config{
		PublicChatID: cfg.Telegram.PublicChatID,
		BatchChatID:  cfg.Telegram.BatchChatID,
		BatchThreads: cfg.Telegram.BatchThreads,
		OlderThread:  cfg.Telegram.OlderThread,
		AdminChatID:  cfg.Telegram.AdminChatID,
		BatchCutoff:  cfg.Bundle.BatchCutoff,
		Size:         cfg.Bundle.Size,
	}, logger)

	return &pipeline{
		store:     sqlStore,
		gate:      dedupe.NewGate(sqlStore, sqlStore),
		fetcher:   fetcher,
		chain:     chain,
		scheduler: queue.NewScheduler(sqlStore, cfg.Queue.Interval, logger),
		telegram:  tg,
		bundler:   bundler,
	}, nil
}

func (p *pipeline) Close() {
	p.store.Close()
}
