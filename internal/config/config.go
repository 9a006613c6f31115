package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Apify     ApifyConfig     `yaml:"apify"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Session   SessionConfig   `yaml:"session"`
	Storage   StorageConfig   `yaml:"storage"`
	Events    EventsConfig    `yaml:"events"`
	Publisher PublisherConfig `yaml:"publisher"`
	Cache     CacheConfig     `yaml:"cache"`
	LogLevel  string          `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	// AllowedOrigins configures CORS; empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"SERVER_ALLOWED_ORIGINS"`
}

// ApifyConfig holds the scraping actor configuration.
type ApifyConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"APIFY_BASE_URL"`
	ActorID string `yaml:"actor_id" envconfig:"APIFY_ACTOR_ID"`
	// RunTimeout is passed to the actor as its own run limit.
	RunTimeout time.Duration `yaml:"run_timeout" envconfig:"APIFY_RUN_TIMEOUT"`
	// Timeout bounds the blocking HTTP call and must exceed RunTimeout.
	Timeout time.Duration `yaml:"timeout" envconfig:"APIFY_TIMEOUT"`
}

// OpenAIConfig holds chat completion configuration.
type OpenAIConfig struct {
	BaseURL     string        `yaml:"base_url" envconfig:"OPENAI_BASE_URL"`
	Model       string        `yaml:"model" envconfig:"OPENAI_MODEL"`
	MaxTokens   int           `yaml:"max_tokens" envconfig:"OPENAI_MAX_TOKENS"`
	Temperature float64       `yaml:"temperature" envconfig:"OPENAI_TEMPERATURE"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"OPENAI_TIMEOUT"`
}

// SessionConfig holds orchestrator configuration.
type SessionConfig struct {
	WatchdogTimeout   time.Duration `yaml:"watchdog_timeout" envconfig:"SESSION_WATCHDOG_TIMEOUT"`
	AutoGenerate      bool          `yaml:"auto_generate" envconfig:"SESSION_AUTO_GENERATE"`
	GenerationWorkers int           `yaml:"generation_workers" envconfig:"SESSION_GENERATION_WORKERS"`
}

// StorageConfig selects the settings backend.
type StorageConfig struct {
	Driver      string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
	SQLitePath  string `yaml:"sqlite_path" envconfig:"STORAGE_SQLITE_PATH"`
	PostgresDSN string `yaml:"postgres_dsn" envconfig:"STORAGE_POSTGRES_DSN"`
	// EncryptionKey seals API keys at rest when set.
	EncryptionKey string `yaml:"encryption_key" envconfig:"STORAGE_ENCRYPTION_KEY"`
}

// EventsConfig holds log sink configuration.
type EventsConfig struct {
	BufferSize      int    `yaml:"buffer_size" envconfig:"EVENTS_BUFFER_SIZE"`
	DBPath          string `yaml:"db_path" envconfig:"EVENTS_DB_PATH"`
	RetentionDays   int    `yaml:"retention_days" envconfig:"EVENTS_RETENTION_DAYS"`
	CleanupSchedule string `yaml:"cleanup_schedule" envconfig:"EVENTS_CLEANUP_SCHEDULE"`
}

// PublisherConfig holds RabbitMQ configuration. Publishing is off when URL is empty.
type PublisherConfig struct {
	URL        string `yaml:"url" envconfig:"PUBLISHER_URL"`
	Exchange   string `yaml:"exchange" envconfig:"PUBLISHER_EXCHANGE"`
	QueueName  string `yaml:"queue_name" envconfig:"PUBLISHER_QUEUE"`
	RoutingKey string `yaml:"routing_key" envconfig:"PUBLISHER_ROUTING_KEY"`
}

// Enabled reports whether a broker is configured.
func (p PublisherConfig) Enabled() bool {
	return p.URL != ""
}

// CacheConfig holds in-process cache configuration.
type CacheConfig struct {
	SettingsTTL     time.Duration `yaml:"settings_ttl" envconfig:"CACHE_SETTINGS_TTL"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" envconfig:"CACHE_CLEANUP_INTERVAL"`
}

// Load reads configuration from file, .env and environment variables.
// Environment variables override file values; defaults fill what is left.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 9847
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Minute
	}

	if c.Apify.BaseURL == "" {
		c.Apify.BaseURL = "https://api.apify.com/v2"
	}
	if c.Apify.ActorID == "" {
		c.Apify.ActorID = "web.harvester~twitter-scraper"
	}
	if c.Apify.RunTimeout == 0 {
		c.Apify.RunTimeout = 600 * time.Second
	}
	if c.Apify.Timeout == 0 {
		c.Apify.Timeout = 11 * time.Minute
	}

	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.MaxTokens == 0 {
		c.OpenAI.MaxTokens = 280
	}
	if c.OpenAI.Temperature == 0 {
		c.OpenAI.Temperature = 0.7
	}
	if c.OpenAI.Timeout == 0 {
		c.OpenAI.Timeout = 60 * time.Second
	}

	if c.Session.WatchdogTimeout == 0 {
		c.Session.WatchdogTimeout = 10 * time.Minute
	}
	if c.Session.GenerationWorkers == 0 {
		c.Session.GenerationWorkers = 1
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMemory
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "/data/xreply.db"
	}

	if c.Events.BufferSize == 0 {
		c.Events.BufferSize = 1000
	}
	if c.Events.RetentionDays == 0 {
		c.Events.RetentionDays = 30
	}
	if c.Events.CleanupSchedule == "" {
		c.Events.CleanupSchedule = "@daily"
	}

	if c.Publisher.Exchange == "" {
		c.Publisher.Exchange = "xreply"
	}
	if c.Publisher.QueueName == "" {
		c.Publisher.QueueName = "xreply_results"
	}
	if c.Publisher.RoutingKey == "" {
		c.Publisher.RoutingKey = "results"
	}

	if c.Cache.SettingsTTL == 0 {
		c.Cache.SettingsTTL = 5 * time.Minute
	}
	if c.Cache.CleanupInterval == 0 {
		c.Cache.CleanupInterval = 10 * time.Minute
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.Apify.Timeout <= c.Apify.RunTimeout {
		return fmt.Errorf("APIFY_TIMEOUT (%s) must exceed APIFY_RUN_TIMEOUT (%s)", c.Apify.Timeout, c.Apify.RunTimeout)
	}
	if c.Session.GenerationWorkers < 1 {
		return fmt.Errorf("SESSION_GENERATION_WORKERS must be at least 1")
	}
	if c.Events.BufferSize < 1 {
		return fmt.Errorf("EVENTS_BUFFER_SIZE must be at least 1")
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("STORAGE_SQLITE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("STORAGE_POSTGRES_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
