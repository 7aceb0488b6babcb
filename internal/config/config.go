// Package config handles application configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration, loaded once at startup.
type Config struct {
	TelegramBotToken string  `yaml:"telegram_bot_token"`
	DatabasePath     string  `yaml:"database_path"`
	LogLevel         string  `yaml:"log_level"`
	AllowedUsers     []int64 `yaml:"allowed_users"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
	Sources   SourcesConfig   `yaml:"sources"`
}

// SchedulerConfig configures the polling loop.
type SchedulerConfig struct {
	Tick                   string `yaml:"tick"`
	Concurrency            int    `yaml:"concurrency"`
	FailureThreshold       int    `yaml:"failure_threshold"`
	DefaultIntervalMinutes int    `yaml:"default_interval_minutes"`
	Lookback               string `yaml:"lookback"`
}

// ParseTick returns the tick period as a duration.
func (s SchedulerConfig) ParseTick() time.Duration {
	d, err := time.ParseDuration(s.Tick)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// ParseLookback returns the never-fetched look-back window as a duration.
func (s SchedulerConfig) ParseLookback() time.Duration {
	d, err := time.ParseDuration(s.Lookback)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// SourcesConfig holds per-platform adapter settings.
type SourcesConfig struct {
	NitterURL string `yaml:"nitter_url"`
	VKToken   string `yaml:"vk_token"`
}

// Default returns a Config with working defaults for everything except
// the bot token.
func Default() *Config {
	return &Config{
		DatabasePath: "./data/bot.db",
		LogLevel:     "info",
		Scheduler: SchedulerConfig{
			Tick:                   "1m",
			Concurrency:            4,
			FailureThreshold:       5,
			DefaultIntervalMinutes: 60,
			Lookback:               "24h",
		},
	}
}

// Load reads configuration from an optional YAML file and applies
// environment variable overrides. The bot token is required.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.Scheduler.DefaultIntervalMinutes < 1 {
		return nil, fmt.Errorf("default interval must be at least 1 minute")
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.TelegramBotToken = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("NITTER_URL"); v != "" {
		cfg.Sources.NitterURL = v
	}
	if v := os.Getenv("VK_TOKEN"); v != "" {
		cfg.Sources.VKToken = v
	}
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		users, err := parseUserList(raw)
		if err != nil {
			return err
		}
		cfg.AllowedUsers = users
	}
	return nil
}

func parseUserList(raw string) ([]int64, error) {
	var users []int64
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
		}
		users = append(users, uid)
	}
	return users, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
