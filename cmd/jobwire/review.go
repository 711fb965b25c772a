package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/getjobwire/jobwire/internal/review"
	"github.com/getjobwire/jobwire/internal/store"
	"github.com/getjobwire/jobwire/internal/telegram"
)

var reviewLimit int

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Browse recent postings",
	Long:  "Interactive browser over recently persisted postings: toggle active, inspect details, retract published messages.",
	RunE:  runReview,
}

func init() {
	reviewCmd.Flags().IntVar(&reviewLimit, "limit", 50, "how many recent postings to load")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	sqlStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	tg := telegram.NewClient(cfg.Telegram.BotToken, httpClient, logger)

	return review.Run(context.Background(), sqlStore, tg, cfg.Telegram.PublicChatID, reviewLimit)
}
