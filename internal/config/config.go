// Package config loads settings for the pennywise binaries from a .env
// file, a YAML config file and PENNYWISE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Backends
const (
	BackendREST   = "rest"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// EnvPrefix prefixes every environment variable, e.g. PENNYWISE_API_KEY
const EnvPrefix = "PENNYWISE"

type Config struct {
	// Backend selection: rest, sqlite or memory
	Backend string `mapstructure:"backend"`

	// Hosted backend
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	SessionFile string        `mapstructure:"session_file"`
	SessionKey  string        `mapstructure:"session_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`

	// Local backend
	SQLitePath string `mapstructure:"sqlite_path"`
	LocalUser  string `mapstructure:"local_user"`

	// Providers
	LoadTimeout time.Duration `mapstructure:"load_timeout"`

	// Change events, disabled when AMQPURL is empty
	AMQPURL      string `mapstructure:"amqp_url"`
	AMQPExchange string `mapstructure:"amqp_exchange"`

	// Google Sheets export
	GoogleSpreadsheetID   string `mapstructure:"google_spreadsheet_id"`
	GoogleCredentialsFile string `mapstructure:"google_credentials_file"`

	// Error tracking
	SentryDSN   string `mapstructure:"sentry_dsn"`
	Environment string `mapstructure:"environment"`

	Logging Logging `mapstructure:"logging"`
}

type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Dir returns the per-user configuration directory
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pennywise"
	}
	return filepath.Join(home, ".config", "pennywise")
}

// SetDefaults registers every key so environment variables are picked up
func SetDefaults(v *viper.Viper) {
	dir := Dir()
	v.SetDefault("backend", BackendREST)
	v.SetDefault("base_url", "https://api.pennywise.app")
	v.SetDefault("api_key", "")
	v.SetDefault("session_file", filepath.Join(dir, "session.json"))
	v.SetDefault("session_key", "")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("max_retries", 3)
	v.SetDefault("sqlite_path", filepath.Join(dir, "pennywise.db"))
	v.SetDefault("local_user", "local")
	v.SetDefault("load_timeout", 5*time.Second)
	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "pennywise.events")
	v.SetDefault("google_spreadsheet_id", "")
	v.SetDefault("google_credentials_file", "")
	v.SetDefault("sentry_dsn", "")
	v.SetDefault("environment", "production")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads .env (when present), the config file and the environment.
// An empty configFile searches ~/.config/pennywise and the working directory.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(Dir())
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Validate returns every configuration problem in one error
func (c *Config) Validate() error {
	var problems []string

	switch c.Backend {
	case BackendREST:
		if u, err := url.Parse(c.BaseURL); err != nil || u.Host == "" {
			problems = append(problems, fmt.Sprintf("invalid base URL '%s'", c.BaseURL))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			problems = append(problems, fmt.Sprintf("invalid base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
		if c.APIKey == "" {
			problems = append(problems, "API key is required when using the rest backend")
		}
		if c.Timeout < time.Second {
			problems = append(problems, fmt.Sprintf("invalid timeout %v: must be at least 1 second", c.Timeout))
		}
		if c.MaxRetries < 0 || c.MaxRetries > 10 {
			problems = append(problems, fmt.Sprintf("invalid max retries %d: must be between 0 and 10", c.MaxRetries))
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			problems = append(problems, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLitePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				problems = append(problems, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
		if c.LocalUser == "" {
			problems = append(problems, "local user cannot be empty when using sqlite backend")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("invalid backend '%s': must be one of [%s %s %s]",
			c.Backend, BackendREST, BackendSQLite, BackendMemory))
	}

	if c.LoadTimeout < 100*time.Millisecond || c.LoadTimeout > time.Minute {
		problems = append(problems, fmt.Sprintf("invalid load timeout %v: must be between 100ms and 1m", c.LoadTimeout))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			problems = append(problems, "invalid AMQP URL: must start with amqp:// or amqps://")
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log level '%s'", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format '%s'", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}
