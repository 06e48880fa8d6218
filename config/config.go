/*
Package config loads server settings from the environment.

SOURCES (later wins):
  1. Defaults below
  2. A .env file in the given directory, if present
  3. Process environment

KEYS:
  SERVER_PORT           HTTP port (default 8080)
  DATABASE_DRIVER       sqlite | postgres (default sqlite)
  DATABASE_URL          SQLite path or PostgreSQL DSN; defaults to ./data/ledger.db
                        for sqlite and is required for postgres
  LOG_LEVEL             debug | info | warn | error (default info)
  LOG_FORMAT            json | console (default json)
  CORS_ALLOWED_ORIGINS  comma-separated origins (default *)
  SHUTDOWN_TIMEOUT      Go duration (default 10s)

cmd/server exports .env into the process environment with godotenv, calls
Read, applies its flags over the port and database, then Validate.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config stores all configuration for the server.
type Config struct {
	ServerPort         string        `mapstructure:"SERVER_PORT"`
	DatabaseDriver     string        `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	LogFormat          string        `mapstructure:"LOG_FORMAT"`
	CORSAllowedOrigins string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	ShutdownTimeout    time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var defaults = map[string]any{
	"SERVER_PORT":          "8080",
	"DATABASE_DRIVER":      DriverSQLite,
	"DATABASE_URL":         "",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "json",
	"CORS_ALLOWED_ORIGINS": "*",
	"SHUTDOWN_TIMEOUT":     "10s",
}

// DefaultSQLitePath is used when the sqlite driver has no DATABASE_URL.
const DefaultSQLitePath = "./data/ledger.db"

// Load reads configuration from dir/.env and the environment and validates it.
func Load(dir string) (Config, error) {
	cfg, err := Read(dir)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that override values first.
func Read(dir string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, value := range defaults {
		v.SetDefault(key, value)
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	if cfg.DatabaseDriver == DriverSQLite && strings.TrimSpace(cfg.DatabaseURL) == "" {
		cfg.DatabaseURL = DefaultSQLitePath
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DatabaseDriver)
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required for the %s driver", c.DatabaseDriver)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
