// LumiClaw - Telegram message adaptation engine
// License: MIT
//
// Copyright (c) 2026 LumiClaw contributors

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Logging  LoggingConfig  `json:"logging,omitzero"`
	Telegram TelegramConfig `json:"telegram"`
}

type LoggingConfig struct {
	Level string `env:"LUMICLAW_LOG_LEVEL" json:"level"`
}

type TelegramConfig struct {
	Token       string              `env:"LUMICLAW_TELEGRAM_TOKEN"         json:"token"`
	APIBaseURL  string              `env:"LUMICLAW_TELEGRAM_API_BASE_URL"  json:"api_base_url"`
	FileBaseURL string              `env:"LUMICLAW_TELEGRAM_FILE_BASE_URL" json:"file_base_url"`
	Proxy       string              `env:"LUMICLAW_TELEGRAM_PROXY"         json:"proxy"`
	AllowFrom   FlexibleStringSlice `env:"LUMICLAW_TELEGRAM_ALLOW_FROM"    json:"allow_from"`

	// StartMessage is the greeting sent in response to /start.
	StartMessage string `env:"LUMICLAW_TELEGRAM_START_MESSAGE" json:"start_message"`

	// CommandRegister publishes the local command set to Telegram on startup.
	// CommandAutoRefresh re-syncs it on the cron schedule below.
	CommandRegister    bool   `env:"LUMICLAW_TELEGRAM_COMMAND_REGISTER"     json:"command_register"`
	CommandAutoRefresh bool   `env:"LUMICLAW_TELEGRAM_COMMAND_AUTO_REFRESH" json:"command_auto_refresh"`
	CommandRefreshCron string `env:"LUMICLAW_TELEGRAM_COMMAND_REFRESH_CRON" json:"command_refresh_cron"`

	// MaxMessageLength caps a single Telegram message; longer text is split.
	MaxMessageLength int `env:"LUMICLAW_TELEGRAM_MAX_MESSAGE_LENGTH" json:"max_message_length"`
}

func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Telegram: TelegramConfig{
			APIBaseURL:         "https://api.telegram.org/bot",
			FileBaseURL:        "https://api.telegram.org/file/bot",
			StartMessage:       "Hi! I am up and running.",
			CommandRegister:    true,
			CommandAutoRefresh: true,
			CommandRefreshCron: "*/5 * * * *",
			MaxMessageLength:   4096,
		},
	}
}

// LoadConfig reads the JSON config at path, overlays environment variables,
// and fills defaults for anything left unset. A missing file is not an error:
// the defaults plus environment are returned.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, cfg.Validate()
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.fillDefaults()
	return cfg, cfg.Validate()
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Telegram.APIBaseURL == "" {
		c.Telegram.APIBaseURL = def.Telegram.APIBaseURL
	}
	if c.Telegram.FileBaseURL == "" {
		c.Telegram.FileBaseURL = def.Telegram.FileBaseURL
	}
	if c.Telegram.StartMessage == "" {
		c.Telegram.StartMessage = def.Telegram.StartMessage
	}
	if c.Telegram.CommandRefreshCron == "" {
		c.Telegram.CommandRefreshCron = def.Telegram.CommandRefreshCron
	}
	if c.Telegram.MaxMessageLength <= 0 {
		c.Telegram.MaxMessageLength = def.Telegram.MaxMessageLength
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}

func (c *Config) Validate() error {
	if c.Telegram.MaxMessageLength <= 0 {
		return fmt.Errorf("telegram.max_message_length must be positive, got %d", c.Telegram.MaxMessageLength)
	}
	return nil
}
