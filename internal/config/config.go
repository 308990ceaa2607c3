// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port   string
	DBPath string

	// LINE Messaging API channel.
	MessagingAPIURL string
	ChannelID       string
	ChannelSecret   string
	TokenIssueURL   string

	// Agent alert channel.
	NotifyURL   string
	NotifyToken string

	// NLU fulfillment endpoint.
	NLUWebhookURL string

	CacheTTL time.Duration
	Sweep    SweepConfig
}

// SweepConfig controls the optional in-process sweep worker. The worker is
// disabled when Cron is empty; /schedule works either way.
type SweepConfig struct {
	Cron             string
	ThresholdMinutes int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DBPath:          getEnv("DB_PATH", "./data/handoff.db"),
		MessagingAPIURL: getEnv("LINE_MESSAGING_API", ""),
		ChannelID:       getEnv("LINE_MESSAGING_CHANNEL_ID", ""),
		ChannelSecret:   getEnv("LINE_MESSAGING_CHANNEL_SECRET", ""),
		TokenIssueURL:   getEnv("LINE_MESSAGING_OAUTH_ISSUE_TOKENV3", ""),
		NotifyURL:       getEnv("LINE_NOTIFY_API_URL", ""),
		NotifyToken:     getEnv("LINE_NOTIFY_ACCESS_TOKEN", ""),
		NLUWebhookURL:   getEnv("NLU_WEBHOOK_URL", ""),
		CacheTTL:        time.Duration(getEnvInt("CACHE_TTL_SECONDS", 600)) * time.Second,
		Sweep: SweepConfig{
			Cron:             getEnv("SWEEP_CRON", ""),
			ThresholdMinutes: getEnvInt("SWEEP_THRESHOLD_MINUTES", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set. Missing
// credentials fail here, at startup, instead of surfacing as confusing
// upstream errors mid-request.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"LINE_MESSAGING_API", c.MessagingAPIURL},
		{"LINE_MESSAGING_CHANNEL_ID", c.ChannelID},
		{"LINE_MESSAGING_CHANNEL_SECRET", c.ChannelSecret},
		{"LINE_MESSAGING_OAUTH_ISSUE_TOKENV3", c.TokenIssueURL},
		{"LINE_NOTIFY_API_URL", c.NotifyURL},
		{"LINE_NOTIFY_ACCESS_TOKEN", c.NotifyToken},
		{"NLU_WEBHOOK_URL", c.NLUWebhookURL},
	}
	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be > 0")
	}
	if c.Sweep.Cron != "" && c.Sweep.ThresholdMinutes <= 0 {
		return fmt.Errorf("SWEEP_THRESHOLD_MINUTES must be > 0 when SWEEP_CRON is set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
