package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "./data/streams", cfg.Storage.BaseDir)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, 4*time.Second, cfg.Session.PollInterval)
	assert.Equal(t, 6, cfg.Session.WindowSize)
	assert.Equal(t, 128, cfg.Session.HistorySize)

	assert.Equal(t, 64, cfg.Manager.MaxSessions)
	assert.Equal(t, "mp4decrypt", cfg.Decrypt.ToolPath)
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 60s

storage:
  base_dir: "/var/lib/dashcast/streams"

logging:
  level: "debug"
  format: "text"

session:
  poll_interval: 2s
  window_size: 10
  history_size: 256
`
	err := os.WriteFile(configPath, []byte(configContent), 0o600)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "/var/lib/dashcast/streams", cfg.Storage.BaseDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 2*time.Second, cfg.Session.PollInterval)
	assert.Equal(t, 10, cfg.Session.WindowSize)
	assert.Equal(t, 256, cfg.Session.HistorySize)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DASHCAST_SERVER_PORT", "3000")
	t.Setenv("DASHCAST_LOGGING_LEVEL", "warn")
	t.Setenv("DASHCAST_SESSION_WINDOW_SIZE", "12")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 12, cfg.Session.WindowSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 8080
storage:
  base_dir: "./data/streams"
`
	err := os.WriteFile(configPath, []byte(configContent), 0o600)
	require.NoError(t, err)

	t.Setenv("DASHCAST_SERVER_PORT", "9000")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "./data/streams", cfg.Storage.BaseDir)
}

func validConfig() *Config {
	return &Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8080},
		Storage: StorageConfig{BaseDir: "./data/streams"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Session: SessionConfig{PollInterval: 4 * time.Second, WindowSize: 6, HistorySize: 128},
		Manager: ManagerConfig{MaxSessions: 64},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestValidate_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero port", 0},
		{"negative port", -1},
		{"port too high", 70000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Port = tt.port
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "server.port")
		})
	}
}

func TestValidate_EmptyBaseDir(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.BaseDir = ""
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "storage.base_dir")
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "invalid"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
}

func TestValidate_HistorySmallerThanWindow(t *testing.T) {
	cfg := validConfig()
	cfg.Session.WindowSize = 20
	cfg.Session.HistorySize = 10
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "history_size")
}

func TestValidate_ZeroWindowSize(t *testing.T) {
	cfg := validConfig()
	cfg.Session.WindowSize = 0
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "window_size")
}

func TestValidate_NonPositivePollInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Session.PollInterval = 0
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval")
}

func TestValidate_ZeroMaxSessions(t *testing.T) {
	cfg := validConfig()
	cfg.Manager.MaxSessions = 0
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_sessions")
}

func TestServerConfig_Address(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		expected string
	}{
		{"localhost", "127.0.0.1", 8080, "127.0.0.1:8080"},
		{"all interfaces", "0.0.0.0", 3000, "0.0.0.0:3000"},
		{"hostname", "example.com", 443, "example.com:443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &ServerConfig{Host: tt.host, Port: tt.port}
			assert.Equal(t, tt.expected, cfg.Address())
		})
	}
}

func TestStorageConfig_StreamOutputPath(t *testing.T) {
	cfg := &StorageConfig{BaseDir: "/var/lib/dashcast/streams"}
	assert.Equal(t, "/var/lib/dashcast/streams/abc-123", cfg.StreamOutputPath("abc-123"))
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidContent := `
server:
  port: "not a number"
  invalid yaml structure
`
	err := os.WriteFile(configPath, []byte(invalidContent), 0o600)
	require.NoError(t, err)

	_, err = Load(configPath)
	assert.Error(t, err)
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}
