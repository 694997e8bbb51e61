package config

import (
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "GIFTSCOUT_CONFIG"
	databasePathEnv   = "DATABASE_PATH"
	llmAPIKeysEnv     = "LLM_API_KEYS"
	contentTokenEnv   = "CONTENT_API_TOKEN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Filter        FilterConfig       `yaml:"filter"`
	LLM           LLMConfig          `yaml:"llm"`
	Content       ContentConfig      `yaml:"content"`
	Reconcile     ReconcileConfig    `yaml:"reconcile"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes the embedded store location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PipelineConfig tunes batching, pacing and scheduling of the main run.
type PipelineConfig struct {
	BatchSize              int `yaml:"batchSize"`
	PaceSeconds            int `yaml:"paceSeconds"`
	ClassifyTimeoutSeconds int `yaml:"classifyTimeoutSeconds"`
	RunIntervalHours       int `yaml:"runIntervalHours"`
}

// Pace returns the minimum interval between successful classification calls.
func (p PipelineConfig) Pace() time.Duration {
	return time.Duration(p.PaceSeconds) * time.Second
}

// ClassifyTimeout returns the hard wall-clock limit of one boundary call.
func (p PipelineConfig) ClassifyTimeout() time.Duration {
	return time.Duration(p.ClassifyTimeoutSeconds) * time.Second
}

// FilterConfig parametrizes the quality gate.
type FilterConfig struct {
	MinPrice       float64 `yaml:"minPrice"`
	MaxPrice       float64 `yaml:"maxPrice"`
	ScoreThreshold int     `yaml:"scoreThreshold"`
}

// LLMConfig defines how to contact the classification boundary.
type LLMConfig struct {
	Endpoint         string   `yaml:"endpoint"`
	Model            string   `yaml:"model"`
	APIKeys          []string `yaml:"apiKeys"`
	MaxAttempts      int      `yaml:"maxAttempts"`
	QuotaWaitSeconds int      `yaml:"quotaWaitSeconds"`
}

// QuotaWait returns the fixed backoff applied on quota-exceeded signals.
func (l LLMConfig) QuotaWait() time.Duration {
	return time.Duration(l.QuotaWaitSeconds) * time.Second
}

// ContentConfig wires the content-management boundary.
type ContentConfig struct {
	BaseURL     string `yaml:"baseUrl"`
	Token       string `yaml:"token"`
	TrackingTag string `yaml:"trackingTag"`
}

// ReconcileConfig tunes the inventory self-healing pass.
type ReconcileConfig struct {
	FeedID        string  `yaml:"feedId"`
	FeedPath      string  `yaml:"feedPath"`
	UpdateDelayMs int     `yaml:"updateDelayMs"`
	PriceEpsilon  float64 `yaml:"priceEpsilon"`
}

// UpdateDelay returns the inter-call delay while applying instructions.
func (r ReconcileConfig) UpdateDelay() time.Duration {
	return time.Duration(r.UpdateDelayMs) * time.Millisecond
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send run reports.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// SiteConfig describes one candidate source with its discovery strategy.
type SiteConfig struct {
	Name     string            `yaml:"name"`
	Strategy string            `yaml:"strategy"`
	URL      string            `yaml:"url"`
	Query    string            `yaml:"query"`
	Pages    int               `yaml:"pages"`
	Options  map[string]string `yaml:"options"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(llmAPIKeysEnv); v != "" {
		keys := make([]string, 0)
		for _, key := range strings.Split(v, ",") {
			if key = strings.TrimSpace(key); key != "" {
				keys = append(keys, key)
			}
		}
		if len(keys) > 0 {
			c.LLM.APIKeys = keys
		}
	}

	if v := os.Getenv(contentTokenEnv); v != "" {
		c.Content.Token = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Pipeline.BatchSize > 0 {
		base.Pipeline.BatchSize = override.Pipeline.BatchSize
	}
	if override.Pipeline.PaceSeconds > 0 {
		base.Pipeline.PaceSeconds = override.Pipeline.PaceSeconds
	}
	if override.Pipeline.ClassifyTimeoutSeconds > 0 {
		base.Pipeline.ClassifyTimeoutSeconds = override.Pipeline.ClassifyTimeoutSeconds
	}
	if override.Pipeline.RunIntervalHours > 0 {
		base.Pipeline.RunIntervalHours = override.Pipeline.RunIntervalHours
	}

	if override.Filter.MinPrice > 0 {
		base.Filter.MinPrice = override.Filter.MinPrice
	}
	if override.Filter.MaxPrice > 0 {
		base.Filter.MaxPrice = override.Filter.MaxPrice
	}
	if override.Filter.ScoreThreshold > 0 {
		base.Filter.ScoreThreshold = override.Filter.ScoreThreshold
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if len(override.LLM.APIKeys) > 0 {
		base.LLM.APIKeys = override.LLM.APIKeys
	}
	if override.LLM.MaxAttempts > 0 {
		base.LLM.MaxAttempts = override.LLM.MaxAttempts
	}
	if override.LLM.QuotaWaitSeconds > 0 {
		base.LLM.QuotaWaitSeconds = override.LLM.QuotaWaitSeconds
	}

	if override.Content.BaseURL != "" {
		base.Content.BaseURL = override.Content.BaseURL
	}
	if override.Content.Token != "" {
		base.Content.Token = override.Content.Token
	}
	if override.Content.TrackingTag != "" {
		base.Content.TrackingTag = override.Content.TrackingTag
	}

	if override.Reconcile.FeedID != "" {
		base.Reconcile.FeedID = override.Reconcile.FeedID
	}
	if override.Reconcile.FeedPath != "" {
		base.Reconcile.FeedPath = override.Reconcile.FeedPath
	}
	if override.Reconcile.UpdateDelayMs > 0 {
		base.Reconcile.UpdateDelayMs = override.Reconcile.UpdateDelayMs
	}
	if override.Reconcile.PriceEpsilon > 0 {
		base.Reconcile.PriceEpsilon = override.Reconcile.PriceEpsilon
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{Path: "giftscout.db"},
		Pipeline: PipelineConfig{
			BatchSize:              3,
			PaceSeconds:            2,
			ClassifyTimeoutSeconds: 9,
			RunIntervalHours:       6,
		},
		Filter: FilterConfig{
			MinPrice:       12,
			MaxPrice:       200,
			ScoreThreshold: 45,
		},
		LLM: LLMConfig{
			Endpoint:         "https://api.openai.com/v1/chat/completions",
			Model:            "gpt-4o-mini",
			MaxAttempts:      3,
			QuotaWaitSeconds: 60,
		},
		Content: ContentConfig{
			BaseURL:     "https://cms.example.org/api",
			TrackingTag: "tag=giftscout-21",
		},
		Reconcile: ReconcileConfig{
			FeedID:        "default",
			FeedPath:      "vendor_feed.csv",
			UpdateDelayMs: 500,
			PriceEpsilon:  0.01,
		},
		Sites: []SiteConfig{
			{
				Name:     "mock-default",
				Strategy: "mock",
				Query:    "gift",
				Pages:    1,
			},
		},
	}
}
