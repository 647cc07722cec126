package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Auth       AuthConfig
	AI         AIConfig
	Automation AutomationConfig
	Fetch      FetchConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	Compression     bool          `envconfig:"SERVER_COMPRESSION" default:"true"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Driver         string `envconfig:"STORE_DRIVER" default:"badger"`
	Path           string `envconfig:"STORE_PATH" default:"./data/orbit"`
	DSN            string `envconfig:"STORE_DSN"`
	StrictNotFound bool   `envconfig:"STORE_STRICT_NOT_FOUND" default:"false"`
}

// AuthConfig holds credential and token settings.
type AuthConfig struct {
	TokenTTL   time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"24h"`
	BcryptCost int           `envconfig:"AUTH_BCRYPT_COST" default:"10"`
}

// AIConfig holds AI provider configuration.
type AIConfig struct {
	Provider    string        `envconfig:"AI_PROVIDER" default:"openai"`
	APIKey      string        `envconfig:"OPENAI_API_KEY"`
	BaseURL     string        `envconfig:"OPENAI_BASE_URL"`
	Model       string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	Timeout     time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	Temperature float64       `envconfig:"AI_TEMPERATURE" default:"0.3"`
}

// AutomationConfig holds playback engine configuration.
type AutomationConfig struct {
	Engine       string        `envconfig:"AUTOMATION_ENGINE" default:"static"`
	Headless     bool          `envconfig:"AUTOMATION_HEADLESS" default:"true"`
	Timeout      time.Duration `envconfig:"AUTOMATION_TIMEOUT" default:"30s"`
	TemplatesDir string        `envconfig:"AUTOMATION_TEMPLATES_DIR"`
	// Install downloads the Playwright driver and Chromium on first use.
	Install bool `envconfig:"AUTOMATION_INSTALL" default:"false"`
}

// FetchConfig holds outbound page fetch limits.
type FetchConfig struct {
	Timeout           time.Duration `envconfig:"FETCH_TIMEOUT" default:"15s"`
	MaxBytes          int64         `envconfig:"FETCH_MAX_BYTES" default:"5242880"`
	RequestsPerSecond float64       `envconfig:"FETCH_RPS" default:"5"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// CORSConfig lists allowed browser origins.
type CORSConfig struct {
	Origins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			Compression:     true,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver: "badger",
			Path:   "./data/orbit",
		},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			BcryptCost: 10,
		},
		AI: AIConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     60 * time.Second,
			Temperature: 0.3,
		},
		Automation: AutomationConfig{
			Engine:   "static",
			Headless: true,
			Timeout:  30 * time.Second,
		},
		Fetch: FetchConfig{
			Timeout:           15 * time.Second,
			MaxBytes:          5 << 20,
			RequestsPerSecond: 5,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		CORS: CORSConfig{
			Origins: []string{"*"},
		},
	}
}

// Validate rejects unknown drivers and out-of-range values.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "badger":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("STORE_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	switch strings.ToLower(c.AI.Provider) {
	case "openai", "disabled":
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AI.Provider)
	}

	switch c.Automation.Engine {
	case "playwright", "static":
	default:
		return fmt.Errorf("unknown AUTOMATION_ENGINE %q", c.Automation.Engine)
	}

	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("AUTH_BCRYPT_COST must be between 4 and 31")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL must be positive")
	}
	if c.Fetch.MaxBytes <= 0 {
		return fmt.Errorf("FETCH_MAX_BYTES must be positive")
	}
	return nil
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}
