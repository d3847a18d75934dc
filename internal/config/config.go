// Package config loads service configuration from a YAML file overlaid with
// TASKQ_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goliatone/go-errors"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/roach88/taskq/internal/auth"
	"github.com/roach88/taskq/internal/logging"
	"github.com/roach88/taskq/internal/store"
)

// Defaults.
const (
	DefaultListen          = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultLogLevel        = "info"
	DefaultExpirySchedule  = "@every 1h"
)

// Config is the service configuration.
type Config struct {
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
	Store           Store         `mapstructure:"store"`
	Auth            Auth          `mapstructure:"auth"`
	Expiry          Expiry        `mapstructure:"expiry"`
}

// Store selects the storage backend.
type Store struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	RedisURL string `mapstructure:"redis_url"`
}

// Address is the connection string handed to store.Open.
func (s Store) Address() string {
	if s.Driver == store.DriverRedis && s.DSN == "" {
		return s.RedisURL
	}
	return s.DSN
}

// Auth configures callers. With Enabled false every request is authorized.
type Auth struct {
	Enabled bool          `mapstructure:"enabled"`
	Clients []auth.Client `mapstructure:"clients"`
}

// Expiry configures the sweeper. An empty schedule disables it.
type Expiry struct {
	Schedule string `mapstructure:"schedule"`
}

// envKeys maps environment variables to config paths.
var envKeys = map[string]string{
	"TASKQ_LISTEN":           "listen",
	"TASKQ_SHUTDOWN_TIMEOUT": "shutdown_timeout",
	"TASKQ_LOG_LEVEL":        "log_level",
	"TASKQ_STORE_DRIVER":     "store.driver",
	"TASKQ_STORE_DSN":        "store.dsn",
	"TASKQ_REDIS_URL":        "store.redis_url",
	"TASKQ_AUTH_ENABLED":     "auth.enabled",
	"TASKQ_EXPIRY_SCHEDULE":  "expiry.schedule",
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Listen:          DefaultListen,
		ShutdownTimeout: DefaultShutdownTimeout,
		LogLevel:        DefaultLogLevel,
		Store:           Store{Driver: store.DriverMemory},
		Auth:            Auth{Enabled: true},
		Expiry:          Expiry{Schedule: DefaultExpirySchedule},
	}
}

// Load reads path (optional) and the process environment.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	raw := map[string]any{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	for env, key := range envKeys {
		if v, ok := lookup(env); ok {
			setPath(raw, key, v)
		}
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setPath assigns value at a dotted key, creating intermediate maps.
func setPath(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []errors.FieldError

	if c.Listen == "" {
		errs = append(errs, errors.FieldError{Field: "listen", Message: "is required"})
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.FieldError{Field: "shutdown_timeout", Message: "must be positive", Value: c.ShutdownTimeout.String()})
	}
	if !logging.ValidLevel(c.LogLevel) {
		errs = append(errs, errors.FieldError{
			Field:   "log_level",
			Message: "must be one of " + strings.Join(logging.Levels, ", "),
			Value:   c.LogLevel,
		})
	}

	switch c.Store.Driver {
	case store.DriverMemory:
	case store.DriverSQLite, store.DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.FieldError{Field: "store.dsn", Message: "is required for " + c.Store.Driver})
		}
	case store.DriverRedis:
		if c.Store.Address() == "" {
			errs = append(errs, errors.FieldError{Field: "store.redis_url", Message: "is required for redis"})
		}
	default:
		errs = append(errs, errors.FieldError{Field: "store.driver", Message: "unknown driver", Value: c.Store.Driver})
	}

	if c.Auth.Enabled {
		if _, err := auth.NewClients(c.Auth.Clients); err != nil {
			errs = append(errs, errors.FieldError{Field: "auth.clients", Message: err.Error()})
		}
	}

	if c.Expiry.Schedule != "" {
		if _, err := cron.ParseStandard(c.Expiry.Schedule); err != nil {
			errs = append(errs, errors.FieldError{Field: "expiry.schedule", Message: err.Error(), Value: c.Expiry.Schedule})
		}
	}

	if len(errs) > 0 {
		return errors.NewValidation("invalid configuration", errs...)
	}
	return nil
}
