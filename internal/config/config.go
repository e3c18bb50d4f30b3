package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	API API `json:"api"`

	// Chat behavior configuration
	Chat Chat `json:"chat"`

	// Logging Configuration
	Logging Logging `json:"logging"`
}

// API contains the REST endpoint and transport configuration.
type API struct {
	BaseURL        string `json:"base_url"`
	RequestTimeout int    `json:"request_timeout"` // seconds
}

// Chat contains messaging behavior configuration.
type Chat struct {
	PageSize int `json:"page_size"` // messages per history page

	// InsertOnSubmit selects the send policy: true inserts a pending
	// message immediately on submit, false waits for the server
	// confirmation. Both resolve duplicates by id.
	InsertOnSubmit bool `json:"insert_on_submit"`

	SearchLimit int `json:"search_limit"` // user search page size
}

// Logging contains logging configuration.
type Logging struct {
	Level string `json:"level"` // debug, info, warn, error
}

// Load reads configuration from the environment, with defaults that
// match the development backend.
func Load() *Config {
	return &Config{
		API: API{
			BaseURL:        envString("API_BASE_URL", "http://localhost:5000/api"),
			RequestTimeout: envInt("API_REQUEST_TIMEOUT", 15),
		},
		Chat: Chat{
			PageSize:       envInt("CHAT_PAGE_SIZE", 50),
			InsertOnSubmit: envBool("CHAT_INSERT_ON_SUBMIT", false),
			SearchLimit:    envInt("CHAT_SEARCH_LIMIT", 10),
		},
		Logging: Logging{
			Level: envString("LOG_LEVEL", "info"),
		},
	}
}

func (cfg *Config) Validate() error {
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL cannot be empty")
	}
	if cfg.Chat.PageSize <= 0 {
		return fmt.Errorf("CHAT_PAGE_SIZE must be positive, got %d", cfg.Chat.PageSize)
	}
	if cfg.API.RequestTimeout <= 0 {
		return fmt.Errorf("API_REQUEST_TIMEOUT must be positive, got %d", cfg.API.RequestTimeout)
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", cfg.Logging.Level)
	}
	return nil
}

func (cfg *Config) Timeout() time.Duration {
	return time.Duration(cfg.API.RequestTimeout) * time.Second
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
