package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the playbook engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Queue    QueueConfig    `yaml:"queue"`
	Engine   EngineConfig   `yaml:"engine"`
	Dispatch DispatchConfig `yaml:"dispatch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the configured host or the bind-all default.
func (c ServerConfig) GetHost() string {
	if c.Host == "" {
		return "0.0.0.0"
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds Redis connection settings for the live cooldown store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// QueueConfig holds the SQS signal-queue consumer settings.
type QueueConfig struct {
	Enabled         bool   `yaml:"enabled"`
	URL             string `yaml:"url"`
	Region          string `yaml:"region"`
	WaitTimeSeconds int    `yaml:"wait_time_seconds"`
	MaxMessages     int    `yaml:"max_messages"`
}

// EngineConfig holds evaluation engine settings.
type EngineConfig struct {
	DefaultOrgID    string `yaml:"default_org_id"`
	SeedDefaults    bool   `yaml:"seed_defaults"`
	ScheduleRetries int    `yaml:"schedule_retries"`
	EvaluateTimeout int    `yaml:"evaluate_timeout_seconds"`
}

// EvaluationTimeout returns the per-signal evaluation deadline.
func (c EngineConfig) EvaluationTimeout() time.Duration {
	return time.Duration(c.EvaluateTimeout) * time.Second
}

// DispatchConfig holds action dispatcher settings.
type DispatchConfig struct {
	SlackEnabled   bool   `yaml:"slack_enabled"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	DefaultChannel string `yaml:"default_channel"`
}

// Timeout returns the dispatch HTTP timeout.
func (c DispatchConfig) Timeout() time.Duration {
	if c.TimeoutSeconds == 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Queue.Region == "" {
		cfg.Queue.Region = "us-west-2"
	}
	if cfg.Queue.WaitTimeSeconds == 0 {
		cfg.Queue.WaitTimeSeconds = 20
	}
	if cfg.Queue.MaxMessages == 0 {
		cfg.Queue.MaxMessages = 10
	}
	if cfg.Engine.DefaultOrgID == "" {
		cfg.Engine.DefaultOrgID = "default"
	}
	if cfg.Engine.ScheduleRetries == 0 {
		cfg.Engine.ScheduleRetries = 1
	}
	if cfg.Engine.EvaluateTimeout == 0 {
		cfg.Engine.EvaluateTimeout = 30
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets
// can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if queueURL := os.Getenv("SIGNAL_QUEUE_URL"); queueURL != "" {
		cfg.Queue.URL = queueURL
		cfg.Queue.Enabled = true
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.Queue.Region = region
	}
	if orgID := os.Getenv("DEFAULT_ORG_ID"); orgID != "" {
		cfg.Engine.DefaultOrgID = orgID
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	return cfg, nil
}
