package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/getjobwire/jobwire/internal/telegram"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Send a test message, exit",
	Long:  "Sends a formatted test posting to the configured admin chat to verify the bot token and chat id.",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Telegram.AdminChatID == 0 {
		logger.Error("check requires telegram.admin_chat_id in config")
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	tg := telegram.NewClient(cfg.Telegram.BotToken, httpClient, logger)

	text := fmt.Sprintf(
		"<b>jobwire check</b>\n\n1. <b>Test Posting</b> — Jobwire\n   📍 Anywhere\n   <a href=\"https://example.com/apply\">Apply</a>\n\nSent %s",
		time.Now().Format(time.RFC1123),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	msgID, err := tg.SendMessage(ctx, cfg.Telegram.AdminChatID, text, 0)
	if err != nil {
		logger.Error("test message failed", "error", err)
		os.Exit(1)
	}

	logger.Info("test message sent", "chat", cfg.Telegram.AdminChatID, "message_id", msgID)
	return nil
}
