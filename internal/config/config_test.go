package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			APIKey: "test-api-key",
		},
	}
	cfg.SetDefaults()
	return cfg
}

func TestConfig_Validate_Success(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() should pass, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "missing API key",
			mutate:  func(c *Config) { c.Server.APIKey = "" },
			wantErr: true,
		},
		{
			name: "http timeout not above run timeout",
			mutate: func(c *Config) {
				c.Apify.RunTimeout = 10 * time.Minute
				c.Apify.Timeout = 10 * time.Minute
			},
			wantErr: true,
		},
		{
			name:    "negative workers",
			mutate:  func(c *Config) { c.Session.GenerationWorkers = -1 },
			wantErr: true,
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Storage.Driver = "mongo" },
			wantErr: true,
		},
		{
			name:    "postgres without DSN",
			mutate:  func(c *Config) { c.Storage.Driver = DriverPostgres },
			wantErr: true,
		},
		{
			name: "postgres with DSN",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverPostgres
				c.Storage.PostgresDSN = "postgres://u:p@localhost/xreply?sslmode=disable"
			},
			wantErr: false,
		},
		{
			name:    "sqlite",
			mutate:  func(c *Config) { c.Storage.Driver = DriverSQLite },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	if cfg.Apify.ActorID != "web.harvester~twitter-scraper" {
		t.Errorf("ActorID = %q", cfg.Apify.ActorID)
	}
	if cfg.Apify.RunTimeout != 600*time.Second {
		t.Errorf("RunTimeout = %s", cfg.Apify.RunTimeout)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" || cfg.OpenAI.MaxTokens != 280 || cfg.OpenAI.Temperature != 0.7 {
		t.Errorf("unexpected OpenAI defaults: %+v", cfg.OpenAI)
	}
	if cfg.Session.WatchdogTimeout != 10*time.Minute {
		t.Errorf("WatchdogTimeout = %s", cfg.Session.WatchdogTimeout)
	}
	if cfg.Session.AutoGenerate {
		t.Error("AutoGenerate should default to false")
	}
	if cfg.Session.GenerationWorkers != 1 {
		t.Errorf("GenerationWorkers = %d", cfg.Session.GenerationWorkers)
	}
	if cfg.Events.BufferSize != 1000 {
		t.Errorf("BufferSize = %d", cfg.Events.BufferSize)
	}
	if cfg.Storage.Driver != DriverMemory {
		t.Errorf("Driver = %q", cfg.Storage.Driver)
	}
	if cfg.Publisher.Enabled() {
		t.Error("publisher should be disabled without a URL")
	}
}

func TestServerConfig_Address(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{
			name: "default",
			cfg:  ServerConfig{Host: "0.0.0.0", Port: 9847},
			want: "0.0.0.0:9847",
		},
		{
			name: "localhost",
			cfg:  ServerConfig{Host: "localhost", Port: 8080},
			want: "localhost:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Address(); got != tt.want {
				t.Errorf("Address() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  host: "localhost"
  port: 8080
  api_key: "yaml-api-key"
session:
  watchdog_timeout: 2m
  auto_generate: true
  generation_workers: 4
storage:
  driver: sqlite
  sqlite_path: /tmp/xreply.db
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Host != "localhost" {
		t.Errorf("Host = %q, want %q", cfg.Server.Host, "localhost")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Server.APIKey != "yaml-api-key" {
		t.Errorf("APIKey = %q, want %q", cfg.Server.APIKey, "yaml-api-key")
	}
	if cfg.Session.WatchdogTimeout != 2*time.Minute {
		t.Errorf("WatchdogTimeout = %s", cfg.Session.WatchdogTimeout)
	}
	if !cfg.Session.AutoGenerate {
		t.Error("AutoGenerate should be true")
	}
	if cfg.Session.GenerationWorkers != 4 {
		t.Errorf("GenerationWorkers = %d", cfg.Session.GenerationWorkers)
	}
	if cfg.Storage.Driver != DriverSQLite || cfg.Storage.SQLitePath != "/tmp/xreply.db" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	// Untouched sections fall back to defaults.
	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q", cfg.OpenAI.Model)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  api_key: "yaml-api-key"
openai:
  model: "gpt-4o"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("API_KEY", "env-api-key")
	t.Setenv("OPENAI_MODEL", "gpt-4.1-mini")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.APIKey != "env-api-key" {
		t.Errorf("APIKey should be from env, got %q", cfg.Server.APIKey)
	}
	if cfg.OpenAI.Model != "gpt-4.1-mini" {
		t.Errorf("Model should be from env, got %q", cfg.OpenAI.Model)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("API_KEY", "test-api-key")
	t.Setenv("SESSION_WATCHDOG_TIMEOUT", "90s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.APIKey != "test-api-key" {
		t.Errorf("APIKey = %q, want %q", cfg.Server.APIKey, "test-api-key")
	}
	if cfg.Session.WatchdogTimeout != 90*time.Second {
		t.Errorf("WatchdogTimeout = %s", cfg.Session.WatchdogTimeout)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidYAML := `
server:
  host: "localhost
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load should fail for invalid YAML")
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load should fail for nonexistent file")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Setenv("API_KEY", "")

	_, err := Load("")
	if err == nil {
		t.Error("Load should fail validation without required values")
	}
}
