// Package config loads runtime configuration. Precedence is defaults, then
// an optional YAML file, then the environment, so deployments can override
// any file setting without touching it.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Supabase  SupabaseConfig  `yaml:"supabase"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Ticker    TickerConfig    `yaml:"ticker"`
	Audit     AuditConfig     `yaml:"audit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host" env:"SERVER_HOST"`
	Port            int           `yaml:"port" env:"SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// SupabaseConfig points at the backing Supabase project. URL and anon key
// have no sane defaults; startup fails without them.
type SupabaseConfig struct {
	URL       string `yaml:"url" env:"SUPABASE_URL"`
	AnonKey   string `yaml:"anon_key" env:"SUPABASE_ANON_KEY"`
	JWTSecret string `yaml:"jwt_secret" env:"SUPABASE_JWT_SECRET"`
}

// CORSConfig lists the allowed dashboard origins.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// RateLimitConfig throttles the public API.
type RateLimitConfig struct {
	RequestsPerSecond int  `yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int  `yaml:"burst" env:"RATE_LIMIT_BURST"`
	Enabled           bool `yaml:"enabled" env:"RATE_LIMIT_ENABLED"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// TickerConfig controls the price poller.
type TickerConfig struct {
	Interval time.Duration `yaml:"interval" env:"TICKER_INTERVAL"`
	Enabled  bool          `yaml:"enabled" env:"TICKER_ENABLED"`
}

// AuditConfig controls the admin audit trail sink.
type AuditConfig struct {
	// Path of the JSONL audit file. Empty keeps the in-memory ring only.
	Path string `yaml:"path" env:"AUDIT_LOG_PATH"`
	// Size of the in-memory audit ring.
	RingSize int `yaml:"ring_size" env:"AUDIT_RING_SIZE"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Ticker: TickerConfig{
			Interval: 60 * time.Second,
			Enabled:  true,
		},
		Audit: AuditConfig{
			RingSize: 256,
		},
	}
}

// Load reads configuration. A .env file is applied to the environment first
// when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// envdecode leaves fields untouched when their variable is absent.
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Supabase.URL == "" {
		return errors.New("SUPABASE_URL is required")
	}
	if c.Supabase.AnonKey == "" {
		return errors.New("SUPABASE_ANON_KEY is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}
