// Package config provides configuration management for dashcast using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort            = 8080
	defaultServerTimeout         = 30 * time.Second
	defaultShutdownTimeout       = 10 * time.Second
	defaultPollInterval          = 4 * time.Second
	defaultWindowSize            = 6
	defaultHistorySize           = 128
	defaultMaxSessions           = 64
	defaultCleanupInterval       = 30 * time.Second
	defaultFetchTimeout          = 60 * time.Second
	defaultFetchRetryAttempts    = 3
	defaultFetchRetryDelay       = 1 * time.Second
	defaultFetchRetryMaxDelay    = 10 * time.Second
	defaultCircuitBreakerThresh  = 5
	defaultCircuitBreakerTimeout = 30 * time.Second
	defaultMaxResponseSize       = 64 * 1024 * 1024 // 64MB
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Session SessionConfig `mapstructure:"session"`
	Manager ManagerConfig `mapstructure:"manager"`
	Decrypt DecryptConfig `mapstructure:"decrypt"`
}

// ServerConfig holds outward HTTP API configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// StorageConfig holds the on-disk layout for converted streams.
type StorageConfig struct {
	// BaseDir is the root directory under which every stream gets its own
	// "<BaseDir>/<stream_id>" output tree, unless a stream overrides it.
	BaseDir string `mapstructure:"base_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// FetchConfig holds defaults for the resilient HTTP client used to retrieve
// manifests and segments.
type FetchConfig struct {
	Timeout                 time.Duration `mapstructure:"timeout"`
	RetryAttempts            int           `mapstructure:"retry_attempts"`
	RetryDelay               time.Duration `mapstructure:"retry_delay"`
	RetryMaxDelay            time.Duration `mapstructure:"retry_max_delay"`
	CircuitBreakerThreshold  int           `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout    time.Duration `mapstructure:"circuit_breaker_timeout"`
	UserAgent                string        `mapstructure:"user_agent"`
	// MaxResponseSize bounds manifest/segment bodies after decompression.
	// Supports human-readable values like "64MB" or raw byte counts.
	MaxResponseSize ByteSize `mapstructure:"max_response_size"`
}

// SessionConfig holds per-stream pipeline defaults, overridable per stream.
type SessionConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	WindowSize   int           `mapstructure:"window_size"`
	HistorySize  int           `mapstructure:"history_size"`
}

// ManagerConfig holds stream-manager-wide settings.
type ManagerConfig struct {
	MaxSessions     int           `mapstructure:"max_sessions"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// DecryptConfig holds the default external CENC decrypt tool location.
// Individual streams may override this via mp4decrypt_path.
type DecryptConfig struct {
	ToolPath string `mapstructure:"tool_path"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with DASHCAST_ and use underscores for
// nesting. Example: DASHCAST_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/dashcast")
		v.AddConfigPath("$HOME/.dashcast")
	}

	// Environment variable settings
	v.SetEnvPrefix("DASHCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data/streams")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Fetch defaults
	v.SetDefault("fetch.timeout", defaultFetchTimeout)
	v.SetDefault("fetch.retry_attempts", defaultFetchRetryAttempts)
	v.SetDefault("fetch.retry_delay", defaultFetchRetryDelay)
	v.SetDefault("fetch.retry_max_delay", defaultFetchRetryMaxDelay)
	v.SetDefault("fetch.circuit_breaker_threshold", defaultCircuitBreakerThresh)
	v.SetDefault("fetch.circuit_breaker_timeout", defaultCircuitBreakerTimeout)
	v.SetDefault("fetch.user_agent", "dashcast/1.0")
	v.SetDefault("fetch.max_response_size", defaultMaxResponseSize)

	// Session defaults
	v.SetDefault("session.poll_interval", defaultPollInterval)
	v.SetDefault("session.window_size", defaultWindowSize)
	v.SetDefault("session.history_size", defaultHistorySize)

	// Manager defaults
	v.SetDefault("manager.max_sessions", defaultMaxSessions)
	v.SetDefault("manager.cleanup_interval", defaultCleanupInterval)

	// Decrypt defaults
	v.SetDefault("decrypt.tool_path", "mp4decrypt")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Session.WindowSize < 1 {
		return fmt.Errorf("session.window_size must be at least 1")
	}
	if c.Session.HistorySize < c.Session.WindowSize {
		return fmt.Errorf("session.history_size must be at least session.window_size")
	}
	if c.Session.PollInterval <= 0 {
		return fmt.Errorf("session.poll_interval must be positive")
	}

	if c.Manager.MaxSessions < 1 {
		return fmt.Errorf("manager.max_sessions must be at least 1")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StreamOutputPath returns the output directory for a given stream id.
func (c *StorageConfig) StreamOutputPath(streamID string) string {
	return fmt.Sprintf("%s/%s", c.BaseDir, streamID)
}
