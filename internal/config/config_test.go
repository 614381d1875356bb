package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Download.MaxConcurrent != 3 {
		t.Errorf("MaxConcurrent = %d, want 3", cfg.Download.MaxConcurrent)
	}
	if cfg.Download.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", cfg.Download.RetryAttempts)
	}
	if got := cfg.Download.GetRequestTimeout(); got != 300*time.Second {
		t.Errorf("GetRequestTimeout() = %v, want 300s", got)
	}
	if got := cfg.Download.GetRetryBackoff(); got != 2*time.Second {
		t.Errorf("GetRetryBackoff() = %v, want 2s", got)
	}
	if got := cfg.Download.GetProgressInterval(); got != 100*time.Millisecond {
		t.Errorf("GetProgressInterval() = %v, want 100ms", got)
	}
	if got := cfg.Download.GetMinFreeSpace(); got != 100*1024*1024 {
		t.Errorf("GetMinFreeSpace() = %d, want 100 MiB", got)
	}
	if got := cfg.GetDatabasePath(); got != filepath.Join(cfg.Download.Dir, ".downloads.db") {
		t.Errorf("GetDatabasePath() = %q", got)
	}
	if cfg.HTTP.BindAddr != "127.0.0.1:8080" {
		t.Errorf("BindAddr = %q", cfg.HTTP.BindAddr)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
download:
  dir: `+dir+`
  max_concurrent: 5
  server_url: https://files.example.com
  auth_token: abc
  retry_backoff: 500ms
  report_progress: true
http:
  bind_addr: 0.0.0.0:9090
logging:
  level: debug
  format: text
database:
  path: /tmp/dm.db
  history_max_age: 48h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Download.Dir != dir || cfg.Download.MaxConcurrent != 5 {
		t.Errorf("download = %+v", cfg.Download)
	}
	if cfg.Download.ServerURL != "https://files.example.com" || cfg.Download.AuthToken != "abc" || !cfg.Download.ReportProgress {
		t.Errorf("download server settings = %+v", cfg.Download)
	}
	if got := cfg.Download.GetRetryBackoff(); got != 500*time.Millisecond {
		t.Errorf("GetRetryBackoff() = %v", got)
	}
	if cfg.GetDatabasePath() != "/tmp/dm.db" {
		t.Errorf("GetDatabasePath() = %q", cfg.GetDatabasePath())
	}
	if got := cfg.Database.GetHistoryMaxAge(); got != 48*time.Hour {
		t.Errorf("GetHistoryMaxAge() = %v", got)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DLM_DOWNLOAD_MAX_CONCURRENT", "7")
	t.Setenv("DLM_DOWNLOAD_AUTH_TOKEN", "from-env")
	t.Setenv("DLM_HTTP_API_TOKEN", "api")

	path := writeConfig(t, "download:\n  max_concurrent: 2\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Download.MaxConcurrent != 7 {
		t.Errorf("MaxConcurrent = %d, want 7 from env", cfg.Download.MaxConcurrent)
	}
	if cfg.Download.AuthToken != "from-env" || cfg.HTTP.APIToken != "api" {
		t.Errorf("tokens = %q, %q", cfg.Download.AuthToken, cfg.HTTP.APIToken)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Download: DownloadConfig{
				Dir:              "/downloads",
				MaxConcurrent:    3,
				RequestTimeout:   "300s",
				RetryAttempts:    3,
				RetryBackoff:     "2s",
				ProgressInterval: "100ms",
				MinFreeSpaceMB:   100,
			},
			HTTP:        HTTPConfig{ReadTimeout: "30s", WriteTimeout: "30s", IdleTimeout: "60s"},
			Logging:     LoggingConfig{Level: "info", Format: "json"},
			Database:    DatabaseConfig{HistoryMaxAge: "720h"},
			Maintenance: MaintenanceConfig{StatsInterval: "1m", CleanupInterval: "1h"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no dir", func(c *Config) { c.Download.Dir = "" }, "download.dir"},
		{"zero concurrency", func(c *Config) { c.Download.MaxConcurrent = 0 }, "max_concurrent"},
		{"too much concurrency", func(c *Config) { c.Download.MaxConcurrent = 33 }, "max_concurrent"},
		{"bad server url", func(c *Config) { c.Download.ServerURL = "files.example.com" }, "server_url"},
		{"no attempts", func(c *Config) { c.Download.RetryAttempts = 0 }, "retry_attempts"},
		{"negative margin", func(c *Config) { c.Download.MinFreeSpaceMB = -1 }, "min_free_space_mb"},
		{"negative bandwidth", func(c *Config) { c.Download.MaxBytesPerSecond = -1 }, "max_bytes_per_second"},
		{"bad duration", func(c *Config) { c.Download.RetryBackoff = "soon" }, "download.retry_backoff"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
