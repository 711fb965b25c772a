// Package telegram is a minimal Bot API client covering the two calls the
// pipeline needs: posting a message (optionally into a forum topic) and
// deleting one.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/getjobwire/jobwire/internal/model"
	"github.com/getjobwire/jobwire/internal/retry"
)

const defaultAPIBase = "https://api.telegram.org"

// Client calls the Telegram Bot API over HTTP.
type Client struct {
	apiBase    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(token string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		apiBase:    defaultAPIBase,
		token:      token,
		httpClient: httpClient,
		logger:     logger,
	}
}

// NewClientWithBase is used by tests to point the client at a local server.
func NewClientWithBase(apiBase, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	c := NewClient(token, httpClient, logger)
	c.apiBase = apiBase
	return c
}

type sendMessageRequest struct {
	ChatID          int64  `json:"chat_id"`
	Text            string `json:"text"`
	ParseMode       string `json:"parse_mode"`
	MessageThreadID int64  `json:"message_thread_id,omitempty"`
	DisablePreview  bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters,omitempty"`
}

type messageResult struct {
	MessageID int64 `json:"message_id"`
}

// SendMessage posts HTML-formatted text to a chat. threadID routes the
// message into a forum topic; pass 0 for plain chats. Returns the platform
// message id. HTTP 429 is retried once after the platform's retry_after.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, threadID int64) (int64, error) {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:          chatID,
		Text:            text,
		ParseMode:       "HTML",
		MessageThreadID: threadID,
		DisablePreview:  true,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal sendMessage: %w", err)
	}

	var msgID int64
	err = retry.Do(ctx, 1, time.Second, func() error {
		var err error
		msgID, err = c.sendOnce(ctx, body)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return msgID, nil
}

func (c *Client) sendOnce(ctx context.Context, body []byte) (int64, error) {
	raw, err := c.call(ctx, "sendMessage", body)
	if err != nil {
		return 0, err
	}
	var msg messageResult
	if err := json.Unmarshal(raw, &msg); err != nil {
		return 0, fmt.Errorf("parse sendMessage result: %w", err)
	}
	return msg.MessageID, nil
}

// DeleteMessage removes a previously posted message (used when a buffered
// posting is retracted after moderation).
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	body, err := json.Marshal(map[string]int64{
		"chat_id":    chatID,
		"message_id": messageID,
	})
	if err != nil {
		return fmt.Errorf("marshal deleteMessage: %w", err)
	}
	if _, err := c.call(ctx, "deleteMessage", body); err != nil {
		return fmt.Errorf("telegram delete %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, body []byte) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", method, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}

	var ar apiResponse
	if err := json.Unmarshal(respBytes, &ar); err != nil {
		return nil, fmt.Errorf("parse %s response (HTTP %d): %w", method, resp.StatusCode, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		if ar.Parameters != nil && ar.Parameters.RetryAfter > 0 {
			retryAfter = time.Duration(ar.Parameters.RetryAfter) * time.Second
		}
		c.logger.Warn("telegram rate limited", "method", method, "retry_after", retryAfter)
		return nil, &model.HTTPError{StatusCode: resp.StatusCode, RetryAfter: retryAfter}
	}

	if !ar.OK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s rejected: %s", method, ar.Description),
		}
	}
	return ar.Result, nil
}

// parseRetryAfter parses a Retry-After header in seconds format.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
