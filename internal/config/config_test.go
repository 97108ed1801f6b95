package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Host != "localhost" {
		t.Errorf("Expected default host localhost, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxBodyBytes != 1024*1024 {
		t.Errorf("Expected default max body bytes 1MiB, got %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.Log.Level)
	}
	if cfg.Output.Mode != "console" {
		t.Errorf("Expected default output mode console, got %s", cfg.Output.Mode)
	}
	if cfg.Journal.Driver != JournalMemory {
		t.Errorf("Expected default journal driver memory, got %s", cfg.Journal.Driver)
	}
	if cfg.Journal.MaxRecords != 1000 {
		t.Errorf("Expected default journal max records 1000, got %d", cfg.Journal.MaxRecords)
	}
	if cfg.Live.Enable {
		t.Error("Expected live feed to be disabled by default")
	}
	if cfg.Live.Path != "/_botfake" {
		t.Errorf("Expected default live path /_botfake, got %s", cfg.Live.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{name: "Valid config", mutate: func(*Config) {}},
		{name: "Port zero", mutate: func(c *Config) { c.Server.Port = 0 }},
		{
			name:     "Invalid port",
			mutate:   func(c *Config) { c.Server.Port = 70000 },
			errorMsg: "invalid port",
		},
		{
			name:     "Empty host",
			mutate:   func(c *Config) { c.Server.Host = " " },
			errorMsg: "server host cannot be empty",
		},
		{
			name:     "Negative body limit",
			mutate:   func(c *Config) { c.Server.MaxBodyBytes = -1 },
			errorMsg: "max body bytes cannot be negative",
		},
		{
			name:     "Invalid output mode",
			mutate:   func(c *Config) { c.Output.Mode = "xml" },
			errorMsg: "output mode must be",
		},
		{
			name:     "Invalid journal driver",
			mutate:   func(c *Config) { c.Journal.Driver = "postgres" },
			errorMsg: "journal driver must be memory, sqlite or none",
		},
		{
			name:     "Memory journal without capacity",
			mutate:   func(c *Config) { c.Journal.MaxRecords = 0 },
			errorMsg: "at least 1",
		},
		{
			name: "Sqlite journal without path",
			mutate: func(c *Config) {
				c.Journal.Driver = JournalSQLite
				c.Journal.Path = ""
			},
			errorMsg: "journal path cannot be empty",
		},
		{
			name:   "No journal",
			mutate: func(c *Config) { c.Journal.Driver = JournalNone },
		},
		{
			name: "Live path shadows Bot API",
			mutate: func(c *Config) {
				c.Live.Enable = true
				c.Live.Path = "/bot123"
			},
			errorMsg: "would shadow Bot API routes",
		},
		{
			name: "Relative live path",
			mutate: func(c *Config) {
				c.Live.Enable = true
				c.Live.Path = "inspect"
			},
			errorMsg: "live path must start with '/'",
		},
		{
			name:     "Invalid log level",
			mutate:   func(c *Config) { c.Log.Level = "invalid" },
			errorMsg: "invalid log level",
		},
		{
			name: "File logging enabled but empty path",
			mutate: func(c *Config) {
				c.Log.FileLogging.Enable = true
				c.Log.FileLogging.Path = ""
			},
			errorMsg: "log file path cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("Expected no error, but got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing '%s', but got no error", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error containing '%s', got '%s'", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestLoadConfigWithFile(t *testing.T) {
	configContent := `
server:
  host: 127.0.0.1
  port: 9999
  scenario: "Single getMe"
log:
  level: "debug"
  file_logging:
    enable: true
    path: "/tmp/botfake-test.log"
    max_size_mb: 5
journal:
  driver: SQLite3
  path: "/tmp/botfake-test.db"
live:
  enable: true
  path: /inspect/
`
	path := filepath.Join(t.TempDir(), "botfake.yaml")
	if err := os.WriteFile(path, []byte(configContent), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path, nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.Scenario != "Single getMe" {
		t.Errorf("Expected scenario 'Single getMe', got %q", cfg.Server.Scenario)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level 'debug', got %s", cfg.Log.Level)
	}
	if !cfg.Log.FileLogging.Enable || cfg.Log.FileLogging.MaxSizeMB != 5 {
		t.Errorf("Unexpected file logging config: %+v", cfg.Log.FileLogging)
	}
	if cfg.Log.FileLogging.MaxBackups != 3 {
		t.Errorf("Expected default max backups 3, got %d", cfg.Log.FileLogging.MaxBackups)
	}
	if cfg.Journal.Driver != JournalSQLite {
		t.Errorf("Expected journal driver sqlite, got %s", cfg.Journal.Driver)
	}
	if !cfg.Live.Enable || cfg.Live.Path != "/inspect" {
		t.Errorf("Unexpected live config: %+v", cfg.Live)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected loaded config to validate, got %v", err)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("BOTFAKE_SERVER_PORT", "0")
	t.Setenv("BOTFAKE_JOURNAL_DRIVER", "none")

	path := filepath.Join(t.TempDir(), "botfake.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path, viper.New())
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.Port != 0 {
		t.Errorf("Expected env to override port to 0, got %d", cfg.Server.Port)
	}
	if cfg.Journal.Driver != JournalNone {
		t.Errorf("Expected journal driver none, got %s", cfg.Journal.Driver)
	}
}

func TestLoadConfigInvalidFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/botfake.yaml", nil)
	if err == nil {
		t.Error("Expected error for missing config file")
	}
	if cfg != nil {
		t.Error("Expected nil config for missing file")
	}
}
