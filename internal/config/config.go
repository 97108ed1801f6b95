package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config application configuration structure
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Journal JournalConfig `yaml:"journal" mapstructure:"journal"`
	Live    LiveConfig    `yaml:"live" mapstructure:"live"`
}

// ServerConfig fake Bot API listener configuration
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	// Port 0 lets the kernel pick a free port
	Port         int    `yaml:"port" mapstructure:"port"`
	Scenario     string `yaml:"scenario" mapstructure:"scenario"`
	ScenarioFile string `yaml:"scenario_file" mapstructure:"scenario_file"`
	// MaxBodyBytes limits the size of accepted request bodies (0 = unlimited)
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// LogConfig log configuration
type LogConfig struct {
	Level       string        `yaml:"level" mapstructure:"level"`
	FileLogging FileLogConfig `yaml:"file_logging" mapstructure:"file_logging"`
}

// FileLogConfig file log configuration
type FileLogConfig struct {
	Enable     bool   `yaml:"enable" mapstructure:"enable"`
	Path       string `yaml:"path" mapstructure:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// OutputConfig controls CLI output style
type OutputConfig struct {
	Mode            string `yaml:"mode" mapstructure:"mode"`
	Silence         bool   `yaml:"silence" mapstructure:"silence"`
	PrettyJSON      bool   `yaml:"pretty_json" mapstructure:"pretty_json"`
	MaxPreviewBytes int    `yaml:"max_preview_bytes" mapstructure:"max_preview_bytes"`
}

// JournalConfig controls where handled exchanges are kept
type JournalConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"`
	Path       string `yaml:"path" mapstructure:"path"`
	MaxRecords int    `yaml:"max_records" mapstructure:"max_records"`
}

// LiveConfig inspection routes and websocket feed
type LiveConfig struct {
	Enable bool   `yaml:"enable" mapstructure:"enable"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// Journal drivers
const (
	JournalMemory = "memory"
	JournalSQLite = "sqlite"
	JournalNone   = "none"
)

// LoadConfig load configuration
// If v is nil, a new viper instance will be created
func LoadConfig(configPath string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)

	// BOTFAKE_SERVER_PORT overrides server.port
	v.SetEnvPrefix("BOTFAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("botfake")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.botfake")
		v.AddConfigPath("/etc/botfake")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		log.Printf("Config file loaded: %s", v.ConfigFileUsed())
	}

	return decode(v)
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		// defaults always decode
		panic(err)
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	applyDefaults(&config, v)
	return &config, nil
}

// applyDefaults fills string and size fields left empty by an explicit
// zero value in the config file. Port is left alone since 0 is meaningful.
func applyDefaults(cfg *Config, v *viper.Viper) {
	if strings.TrimSpace(cfg.Server.Host) == "" {
		cfg.Server.Host = v.GetString("server.host")
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = v.GetString("log.level")
	}
	if cfg.Log.FileLogging.Path == "" {
		cfg.Log.FileLogging.Path = v.GetString("log.file_logging.path")
	}
	if cfg.Log.FileLogging.MaxSizeMB == 0 {
		cfg.Log.FileLogging.MaxSizeMB = v.GetInt("log.file_logging.max_size_mb")
	}

	if cfg.Output.Mode == "" {
		cfg.Output.Mode = v.GetString("output.mode")
	}
	cfg.Output.Mode = strings.ToLower(strings.TrimSpace(cfg.Output.Mode))

	if cfg.Journal.Driver == "" {
		cfg.Journal.Driver = v.GetString("journal.driver")
	}
	cfg.Journal.Driver = strings.ToLower(strings.TrimSpace(cfg.Journal.Driver))
	if cfg.Journal.Driver == "sqlite3" {
		cfg.Journal.Driver = JournalSQLite
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = v.GetString("journal.path")
	}

	if cfg.Live.Path == "" {
		cfg.Live.Path = v.GetString("live.path")
	}
	cfg.Live.Path = strings.TrimRight(cfg.Live.Path, "/")
}

// setDefaults set default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.scenario", "")
	v.SetDefault("server.scenario_file", "")
	v.SetDefault("server.max_body_bytes", int64(1024*1024))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_logging.enable", false)
	v.SetDefault("log.file_logging.path", "./botfake.log")
	v.SetDefault("log.file_logging.max_size_mb", 10)
	v.SetDefault("log.file_logging.max_backups", 3)
	v.SetDefault("log.file_logging.max_age_days", 7)
	v.SetDefault("log.file_logging.compress", true)

	v.SetDefault("output.mode", "console")
	v.SetDefault("output.silence", false)
	v.SetDefault("output.pretty_json", true)
	v.SetDefault("output.max_preview_bytes", 4*1024)

	v.SetDefault("journal.driver", JournalMemory)
	v.SetDefault("journal.path", "./data/botfake.db")
	v.SetDefault("journal.max_records", 1000)

	v.SetDefault("live.enable", false)
	v.SetDefault("live.path", "/_botfake")
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 0-65535)", c.Server.Port)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server max body bytes cannot be negative")
	}

	switch c.Output.Mode {
	case "console", "json":
	default:
		return fmt.Errorf("output mode must be 'console' or 'json'")
	}
	if c.Output.MaxPreviewBytes < 0 {
		return fmt.Errorf("output max_preview_bytes cannot be negative")
	}

	switch c.Journal.Driver {
	case JournalMemory:
		if c.Journal.MaxRecords < 1 {
			return fmt.Errorf("journal max_records must be at least 1 for the memory driver")
		}
	case JournalSQLite:
		if strings.TrimSpace(c.Journal.Path) == "" {
			return fmt.Errorf("journal path cannot be empty")
		}
		if c.Journal.MaxRecords < 0 {
			return fmt.Errorf("journal max_records cannot be negative")
		}
	case JournalNone:
	default:
		return fmt.Errorf("journal driver must be memory, sqlite or none")
	}

	if c.Live.Enable {
		if !strings.HasPrefix(c.Live.Path, "/") {
			return fmt.Errorf("live path must start with '/'")
		}
		if strings.HasPrefix(c.Live.Path, "/bot") {
			return fmt.Errorf("live path %s would shadow Bot API routes", c.Live.Path)
		}
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true, "disabled": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.Log.FileLogging.Enable {
		if c.Log.FileLogging.Path == "" {
			return fmt.Errorf("log file path cannot be empty when file logging is enabled")
		}
		if c.Log.FileLogging.MaxSizeMB < 1 {
			return fmt.Errorf("log file max size must be at least 1MB")
		}
		if c.Log.FileLogging.MaxBackups < 0 {
			return fmt.Errorf("log file max backups cannot be negative")
		}
		if c.Log.FileLogging.MaxAgeDays < 0 {
			return fmt.Errorf("log file max age cannot be negative")
		}
	}

	return nil
}
