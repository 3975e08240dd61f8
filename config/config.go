// Package config loads task-tracker settings.
//
// Values are applied in priority order:
//  1. Defaults
//  2. Config file (.toml, .yaml or .yml), when a path is given
//  3. Environment variables
//
// Command-line flags are applied on top by main.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the full service configuration.
type Config struct {
	Env             string        `toml:"env" yaml:"env"`
	HTTP            HTTPConfig    `toml:"http" yaml:"http"`
	Store           StoreConfig   `toml:"store" yaml:"store"`
	Cache           CacheConfig   `toml:"cache" yaml:"cache"`
	Auth            AuthConfig    `toml:"auth" yaml:"auth"`
	Timezone        string        `toml:"timezone" yaml:"timezone"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// HTTPConfig configures the API server. A RateLimit of zero disables
// per-client request limiting.
type HTTPConfig struct {
	Addr       string        `toml:"addr" yaml:"addr"`
	RateLimit  int           `toml:"rate_limit" yaml:"rate_limit"`
	RateWindow time.Duration `toml:"rate_window" yaml:"rate_window"`
}

// StoreConfig selects and configures the task store.
type StoreConfig struct {
	Driver      string `toml:"driver" yaml:"driver"`
	SQLitePath  string `toml:"sqlite_path" yaml:"sqlite_path"`
	PostgresURL string `toml:"postgres_url" yaml:"postgres_url"`
	Debug       bool   `toml:"debug" yaml:"debug"`
}

// CacheConfig configures the optional Redis stats cache. An empty RedisAddr
// disables it.
type CacheConfig struct {
	RedisAddr string        `toml:"redis_addr" yaml:"redis_addr"`
	Password  string        `toml:"password" yaml:"password"`
	DB        int           `toml:"db" yaml:"db"`
	Prefix    string        `toml:"prefix" yaml:"prefix"`
	TTL       time.Duration `toml:"ttl" yaml:"ttl"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret" yaml:"jwt_secret"`
	Issuer    string `toml:"issuer" yaml:"issuer"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Env:  "development",
		HTTP: HTTPConfig{
			Addr:       ":5000",
			RateLimit:  100,
			RateWindow: 15 * time.Minute,
		},
		Store: StoreConfig{
			Driver:     DriverSQLite,
			SQLitePath: "tasks.db",
		},
		Cache: CacheConfig{
			Prefix: "tasktracker:",
			TTL:    30 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret: "dev-secret-key-change-in-production",
		},
		Timezone:        "UTC",
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load builds the configuration from defaults, the optional file at path
// and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.DecodeFile(path, cfg)
		return err
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

func loadFromEnv(cfg *Config) error {
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)

	var err error
	if cfg.HTTP.RateLimit, err = getEnvInt("RATE_LIMIT", cfg.HTTP.RateLimit); err != nil {
		return err
	}
	if cfg.HTTP.RateWindow, err = getEnvDuration("RATE_WINDOW", cfg.HTTP.RateWindow); err != nil {
		return err
	}

	cfg.Store.Driver = getEnv("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.SQLitePath = getEnv("DB_PATH", cfg.Store.SQLitePath)
	cfg.Store.PostgresURL = getEnv("DATABASE_URL", cfg.Store.PostgresURL)
	if v := os.Getenv("DB_DEBUG"); v != "" {
		cfg.Store.Debug = v == "true"
	}

	cfg.Cache.RedisAddr = getEnv("REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.Password = getEnv("REDIS_PASSWORD", cfg.Cache.Password)
	cfg.Cache.Prefix = getEnv("CACHE_PREFIX", cfg.Cache.Prefix)

	if cfg.Cache.DB, err = getEnvInt("REDIS_DB", cfg.Cache.DB); err != nil {
		return err
	}
	if cfg.Cache.TTL, err = getEnvDuration("CACHE_TTL", cfg.Cache.TTL); err != nil {
		return err
	}

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET_KEY", cfg.Auth.JWTSecret)
	cfg.Auth.Issuer = getEnv("JWT_ISSUER", cfg.Auth.Issuer)

	cfg.Timezone = getEnv("TZ_NAME", cfg.Timezone)
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr must not be empty"))
	}
	if c.HTTP.RateLimit < 0 {
		errs = append(errs, errors.New("http.rate_limit must not be negative"))
	}
	if c.HTTP.RateLimit > 0 && c.HTTP.RateWindow <= 0 {
		errs = append(errs, errors.New("http.rate_window must be positive when rate limiting is on"))
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.Store.PostgresURL == "" {
			errs = append(errs, errors.New("store.postgres_url is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.CacheEnabled() && c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret must not be empty"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// CacheEnabled reports whether a Redis address is configured.
func (c *Config) CacheEnabled() bool {
	return c.Cache.RedisAddr != ""
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// getEnvDuration returns the environment variable as duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
