package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the jobwire pipeline.
type Config struct {
	DBPath   string
	Sources  []SourceConfig
	Queue    QueueConfig
	Run      RunConfig
	Fetch    FetchConfig
	AI       AIConfig
	Media    MediaConfig
	Telegram TelegramConfig
	Bundle   BundleConfig
}

// SourceConfig describes a single ingest origin.
type SourceConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"` // "feed", "channel" or "api"
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
	// DupThreshold is the number of consecutive duplicates after which the
	// source's loop terminates early. 0 uses the default (3).
	DupThreshold int `yaml:"dup_threshold"`
}

// QueueConfig controls publication pacing for queue-backed sources.
type QueueConfig struct {
	Interval time.Duration // gap between consecutive scheduled slots
}

// RunConfig controls the interactive run loop.
type RunConfig struct {
	PostWait         time.Duration // countdown after a normal channel post
	ThreadPostWait   time.Duration // countdown after a topic/thread post (tighter platform limits)
	InterSourceDelay time.Duration // pause between sources
}

// FetchConfig controls the page fetcher.
type FetchConfig struct {
	RequestsPerSec float64
	Burst          int
	Timeout        time.Duration
}

// AIConfig controls the completion service used by the enrichment chain.
type AIConfig struct {
	BaseURL string        // defaults to https://api.openai.com/v1
	Model   string        // e.g. "gpt-4o-mini"
	APIKey  string        // expanded from env var by Load
	Timeout time.Duration // per-request timeout
}

// MediaConfig controls the image re-hosting service for company logos.
type MediaConfig struct {
	UploadURL string // one-route upload endpoint
	APIKey    string
}

// TelegramConfig holds the bot credentials and channel routing.
// Chat and thread ids are configuration, never hardcoded.
type TelegramConfig struct {
	BotToken     string           `yaml:"bot_token"`
	PublicChatID int64            `yaml:"public_chat_id"`
	BatchChatID  int64            `yaml:"batch_chat_id"` // forum group carrying per-year topics
	BatchThreads map[string]int64 `yaml:"batch_threads"` // graduation year -> thread id
	OlderThread  int64            `yaml:"older_thread"`  // catch-all topic for pre-cutoff years
	AdminChatID  int64            `yaml:"admin_chat_id"` // review digests and test messages
}

// BundleConfig controls outbound batching.
type BundleConfig struct {
	Size        int    `yaml:"size"`         // postings per combined message
	BatchCutoff string `yaml:"batch_cutoff"` // earliest graduation year with its own topic
}

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultDupThreshold  = 3
)

// rawConfig is used for YAML unmarshaling (snake_case fields, durations as strings).
type rawConfig struct {
	DBPath   string         `yaml:"db_path"`
	Sources  []SourceConfig `yaml:"sources"`
	Queue    rawQueue       `yaml:"queue"`
	Run      rawRun         `yaml:"run"`
	Fetch    rawFetch       `yaml:"fetch"`
	AI       rawAI          `yaml:"ai"`
	Media    MediaConfig    `yaml:"media"`
	Telegram TelegramConfig `yaml:"telegram"`
	Bundle   BundleConfig   `yaml:"bundle"`
}

type rawQueue struct {
	Interval string `yaml:"interval"`
}

type rawRun struct {
	PostWait         string `yaml:"post_wait"`
	ThreadPostWait   string `yaml:"thread_post_wait"`
	InterSourceDelay string `yaml:"inter_source_delay"`
}

type rawFetch struct {
	RequestsPerSec float64 `yaml:"requests_per_sec"`
	Burst          int     `yaml:"burst"`
	Timeout        string  `yaml:"timeout"`
}

type rawAI struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables (bot token, API keys).
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{
		DBPath:   raw.DBPath,
		Sources:  raw.Sources,
		Media:    raw.Media,
		Telegram: raw.Telegram,
		Bundle:   raw.Bundle,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "jobwire.db"
	}

	cfg.Queue.Interval, err = parseDuration(raw.Queue.Interval, "queue.interval", 60*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.Run.PostWait, err = parseDuration(raw.Run.PostWait, "run.post_wait", 11*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Run.ThreadPostWait, err = parseDuration(raw.Run.ThreadPostWait, "run.thread_post_wait", 21*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Run.InterSourceDelay, err = parseDuration(raw.Run.InterSourceDelay, "run.inter_source_delay", 5*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.Fetch.RequestsPerSec = raw.Fetch.RequestsPerSec
	if cfg.Fetch.RequestsPerSec <= 0 {
		cfg.Fetch.RequestsPerSec = 1
	}
	cfg.Fetch.Burst = raw.Fetch.Burst
	if cfg.Fetch.Burst <= 0 {
		cfg.Fetch.Burst = 2
	}
	cfg.Fetch.Timeout, err = parseDuration(raw.Fetch.Timeout, "fetch.timeout", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.AI = AIConfig{
		BaseURL: raw.AI.BaseURL,
		Model:   raw.AI.Model,
		APIKey:  raw.AI.APIKey,
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = defaultOpenAIBaseURL
	}
	cfg.AI.Timeout, err = parseDuration(raw.AI.Timeout, "ai.timeout", 45*time.Second)
	if err != nil {
		return nil, err
	}

	if cfg.Bundle.Size == 0 {
		cfg.Bundle.Size = 5
	}

	for i := range cfg.Sources {
		if cfg.Sources[i].DupThreshold == 0 {
			cfg.Sources[i].DupThreshold = defaultDupThreshold
		}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(raw, field string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return d, nil
}

func validate(cfg *Config) error {
	enabled := 0
	for _, s := range cfg.Sources {
		switch s.Type {
		case "feed", "channel", "api":
		default:
			return fmt.Errorf("source %q: unknown type %q (want feed, channel or api)", s.Name, s.Type)
		}
		if s.URL == "" {
			return fmt.Errorf("source %q: url is required", s.Name)
		}
		if s.DupThreshold < 2 || s.DupThreshold > 5 {
			return fmt.Errorf("source %q: dup_threshold must be between 2 and 5, got %d", s.Name, s.DupThreshold)
		}
		if s.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}

	if cfg.Queue.Interval <= 0 {
		return fmt.Errorf("queue.interval must be positive, got %v", cfg.Queue.Interval)
	}

	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if cfg.Telegram.PublicChatID == 0 {
		return fmt.Errorf("telegram.public_chat_id is required")
	}

	if cfg.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required")
	}
	if cfg.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}

	if cfg.Bundle.Size < 1 {
		return fmt.Errorf("bundle.size must be at least 1, got %d", cfg.Bundle.Size)
	}

	return nil
}
