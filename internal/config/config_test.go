package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	clearTestEnvVars(t)

	cfg := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, "http://localhost:5000/api", cfg.API.BaseURL)
	assert.Equal(t, 15, cfg.API.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.Timeout())

	assert.Equal(t, 50, cfg.Chat.PageSize)
	assert.False(t, cfg.Chat.InsertOnSubmit)
	assert.Equal(t, 10, cfg.Chat.SearchLimit)

	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearTestEnvVars(t)
	t.Setenv("API_BASE_URL", "https://social.example.com/api")
	t.Setenv("CHAT_PAGE_SIZE", "25")
	t.Setenv("CHAT_INSERT_ON_SUBMIT", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	assert.Equal(t, "https://social.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 25, cfg.Chat.PageSize)
	assert.True(t, cfg.Chat.InsertOnSubmit)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidNumberFallsBack(t *testing.T) {
	clearTestEnvVars(t)
	t.Setenv("CHAT_PAGE_SIZE", "not-a-number")

	cfg := Load()
	assert.Equal(t, 50, cfg.Chat.PageSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "empty base url",
			mutate:  func(c *Config) { c.API.BaseURL = "" },
			wantErr: "API_BASE_URL",
		},
		{
			name:    "zero page size",
			mutate:  func(c *Config) { c.Chat.PageSize = 0 },
			wantErr: "CHAT_PAGE_SIZE",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.API.RequestTimeout = -1 },
			wantErr: "API_REQUEST_TIMEOUT",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "LOG_LEVEL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnvVars(t)
			cfg := Load()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func clearTestEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"API_BASE_URL", "API_REQUEST_TIMEOUT",
		"CHAT_PAGE_SIZE", "CHAT_INSERT_ON_SUBMIT", "CHAT_SEARCH_LIMIT",
		"LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}
