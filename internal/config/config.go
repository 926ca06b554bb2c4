package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	KVBackendRedis  = "redis"
	KVBackendSQLite = "sqlite"
	KVBackendMemory = "memory"
)

type Config struct {
	Environment string `toml:"-"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`

	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	// key-value persistence for the step counter and the weight unit preference
	KVBackend  string `toml:"kv_backend"`
	SQLitePath string `toml:"sqlite_path"`

	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// steps
	Timezone               string   `toml:"timezone"`
	RolloverCheckInterval  Duration `toml:"rollover_check_interval"`
	SensorSamplesPerMinute int      `toml:"sensor_samples_per_minute"`

	// workouts
	ExerciseDBURL string `toml:"exercise_db_url"`
	ProgramsPath  string `toml:"programs_path"`
}

// Duration lets TOML values like "1m" or "30s" be used in the config.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return fromToml(env, &t)
}

func LoadFromString(env, data string) (*Config, error) {
	var t Toml
	if _, err := toml.Decode(data, &t); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return fromToml(env, &t)
}

func fromToml(env string, t *Toml) (*Config, error) {
	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config for env [%s] missing", env)
	}

	cfg.Environment = strings.ToLower(env)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.KVBackend == "" {
		c.KVBackend = KVBackendRedis
	}
	if c.RolloverCheckInterval.Duration == 0 {
		c.RolloverCheckInterval.Duration = time.Minute
	}
	if c.SensorSamplesPerMinute == 0 {
		c.SensorSamplesPerMinute = 120
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch c.KVBackend {
	case KVBackendRedis, KVBackendMemory:
	case KVBackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite kv backend needs sqlite_path")
		}
	default:
		return fmt.Errorf("unknown kv backend: %s", c.KVBackend)
	}
	if c.RolloverCheckInterval.Duration <= 0 {
		return fmt.Errorf("invalid rollover check interval: %s", c.RolloverCheckInterval.Duration)
	}
	if c.SensorSamplesPerMinute <= 0 {
		return fmt.Errorf("invalid sensor samples per minute: %d", c.SensorSamplesPerMinute)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location is the timezone used for calendar-day comparisons.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
