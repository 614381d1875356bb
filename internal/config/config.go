package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override file settings,
// e.g. DLM_DOWNLOAD_MAX_CONCURRENT
const EnvPrefix = "DLM"

// Config represents the entire application configuration
type Config struct {
	Download    DownloadConfig    `mapstructure:"download"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// DownloadConfig contains transfer settings
type DownloadConfig struct {
	Dir               string `mapstructure:"dir"`
	MaxConcurrent     int    `mapstructure:"max_concurrent"`
	ServerURL         string `mapstructure:"server_url"`
	AuthToken         string `mapstructure:"auth_token"`
	RequestTimeout    string `mapstructure:"request_timeout"`
	RetryAttempts     int    `mapstructure:"retry_attempts"`
	RetryBackoff      string `mapstructure:"retry_backoff"`
	ProgressInterval  string `mapstructure:"progress_interval"`
	MinFreeSpaceMB    int    `mapstructure:"min_free_space_mb"`
	MaxBytesPerSecond int64  `mapstructure:"max_bytes_per_second"`
	ReportProgress    bool   `mapstructure:"report_progress"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	BindAddr     string `mapstructure:"bind_addr"`
	APIToken     string `mapstructure:"api_token"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	IdleTimeout  string `mapstructure:"idle_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig contains history database settings
type DatabaseConfig struct {
	Path          string `mapstructure:"path"`
	HistoryMaxAge string `mapstructure:"history_max_age"`
}

// MaintenanceConfig contains periodic job settings
type MaintenanceConfig struct {
	StatsInterval   string `mapstructure:"stats_interval"`
	CleanupInterval string `mapstructure:"cleanup_interval"`
}

// DefaultDownloadDir returns ~/Downloads, or ./downloads if the home
// directory is unknown
func DefaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "downloads"
	}
	return filepath.Join(home, "Downloads")
}

// Load loads configuration from the specified file path. An empty path uses
// defaults and environment variables only.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("download.dir", DefaultDownloadDir())
	v.SetDefault("download.max_concurrent", 3)
	v.SetDefault("download.server_url", "")
	v.SetDefault("download.auth_token", "")
	v.SetDefault("download.request_timeout", "300s")
	v.SetDefault("download.retry_attempts", 3)
	v.SetDefault("download.retry_backoff", "2s")
	v.SetDefault("download.progress_interval", "100ms")
	v.SetDefault("download.min_free_space_mb", 100)
	v.SetDefault("download.max_bytes_per_second", 0)
	v.SetDefault("download.report_progress", false)
	v.SetDefault("http.bind_addr", "127.0.0.1:8080")
	v.SetDefault("http.api_token", "")
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "")
	v.SetDefault("database.history_max_age", "720h")
	v.SetDefault("maintenance.stats_interval", "1m")
	v.SetDefault("maintenance.cleanup_interval", "1h")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate download config
	if c.Download.Dir == "" {
		return fmt.Errorf("download.dir is required")
	}
	if c.Download.MaxConcurrent < 1 || c.Download.MaxConcurrent > 32 {
		return fmt.Errorf("download.max_concurrent must be between 1 and 32")
	}
	if c.Download.ServerURL != "" {
		u, err := url.Parse(c.Download.ServerURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("download.server_url must be an http(s) URL")
		}
	}
	if c.Download.RetryAttempts < 1 {
		return fmt.Errorf("download.retry_attempts must be at least 1")
	}
	if c.Download.MinFreeSpaceMB < 0 {
		return fmt.Errorf("download.min_free_space_mb must not be negative")
	}
	if c.Download.MaxBytesPerSecond < 0 {
		return fmt.Errorf("download.max_bytes_per_second must not be negative")
	}

	// Validate durations
	durations := map[string]string{
		"download.request_timeout":     c.Download.RequestTimeout,
		"download.retry_backoff":       c.Download.RetryBackoff,
		"download.progress_interval":   c.Download.ProgressInterval,
		"http.read_timeout":            c.HTTP.ReadTimeout,
		"http.write_timeout":           c.HTTP.WriteTimeout,
		"http.idle_timeout":            c.HTTP.IdleTimeout,
		"database.history_max_age":     c.Database.HistoryMaxAge,
		"maintenance.stats_interval":   c.Maintenance.StatsInterval,
		"maintenance.cleanup_interval": c.Maintenance.CleanupInterval,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, _ := time.ParseDuration(s)
	if d <= 0 {
		return fallback
	}
	return d
}

// GetRequestTimeout returns the per-attempt request timeout
func (c *DownloadConfig) GetRequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeout, 300*time.Second)
}

// GetRetryBackoff returns the wait between request attempts
func (c *DownloadConfig) GetRetryBackoff() time.Duration {
	d, err := time.ParseDuration(c.RetryBackoff)
	if err != nil || d < 0 {
		return 2 * time.Second
	}
	return d
}

// GetProgressInterval returns the minimum gap between progress updates
func (c *DownloadConfig) GetProgressInterval() time.Duration {
	return parseDuration(c.ProgressInterval, 100*time.Millisecond)
}

// GetMinFreeSpace returns the preflight safety margin in bytes
func (c *DownloadConfig) GetMinFreeSpace() int64 {
	return int64(c.MinFreeSpaceMB) * 1024 * 1024
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	return parseDuration(c.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout returns the write timeout as time.Duration
func (c *HTTPConfig) GetWriteTimeout() time.Duration {
	return parseDuration(c.WriteTimeout, 30*time.Second)
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *HTTPConfig) GetIdleTimeout() time.Duration {
	return parseDuration(c.IdleTimeout, 60*time.Second)
}

// GetHistoryMaxAge returns how long history rows are kept
func (c *DatabaseConfig) GetHistoryMaxAge() time.Duration {
	return parseDuration(c.HistoryMaxAge, 30*24*time.Hour)
}

// GetDatabasePath returns the database path, defaulting to a hidden file in the download dir
func (c *Config) GetDatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Download.Dir, ".downloads.db")
}

// GetStatsInterval returns how often transfer stats are logged
func (c *MaintenanceConfig) GetStatsInterval() time.Duration {
	return parseDuration(c.StatsInterval, time.Minute)
}

// GetCleanupInterval returns how often history is pruned
func (c *MaintenanceConfig) GetCleanupInterval() time.Duration {
	return parseDuration(c.CleanupInterval, time.Hour)
}
