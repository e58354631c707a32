// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

// Environment variables consulted when a credential is absent from the file.
const (
	EnvClientID     = "MERCADOLIBRE_CLIENT_ID"
	EnvClientSecret = "MERCADOLIBRE_CLIENT_SECRET"
	EnvRefreshToken = "MERCADOLIBRE_REFRESH_TOKEN" //nolint:gosec // variable name, not a credential
	EnvAccountID    = "MERCADOLIBRE_USER_ID"
)

// Sink names accepted in harvest.sinks.
const (
	SinkFile     = "file"
	SinkPostgres = "postgres"
	SinkRedis    = "redis"
	SinkRabbitMQ = "rabbitmq"
)

var knownSinks = []string{SinkFile, SinkPostgres, SinkRedis, SinkRabbitMQ}

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	RabbitMQ      RabbitMQConfig      `yaml:"rabbitmq"`
	Meli          MeliConfig          `yaml:"meli"`
	Harvest       HarvestConfig       `yaml:"harvest"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig defines PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s pool_max_conns=%d",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode, d.PoolSize,
	)
}

// RedisConfig defines the Redis snapshot cache and token store.
type RedisConfig struct {
	Addr          string        `yaml:"addr"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	SnapshotKey   string        `yaml:"snapshot_key"`
	SnapshotTTL   time.Duration `yaml:"snapshot_ttl"`
	TokenKey      string        `yaml:"token_key"`
	PersistTokens bool          `yaml:"persist_tokens"`
}

// RabbitMQConfig defines where run completion events are published.
type RabbitMQConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

// MeliConfig defines marketplace credentials and access policy.
type MeliConfig struct {
	ClientID         string          `yaml:"client_id"`
	ClientSecret     string          `yaml:"client_secret"`
	RefreshToken     string          `yaml:"refresh_token"`
	AccountID        string          `yaml:"account_id"`
	APIBase          string          `yaml:"api_base"`
	RateLimit        RateLimitConfig `yaml:"rate_limit"`
	PageSize         int             `yaml:"page_size"`
	OffsetCap        int             `yaml:"offset_cap"`
	PageDelay        time.Duration   `yaml:"page_delay"`
	ItemDelay        time.Duration   `yaml:"item_delay"`
	FallbackStatuses []int           `yaml:"fallback_statuses"`
}

// Credentials returns the four values needed to act for the seller account.
func (m *MeliConfig) Credentials() domain.Credentials {
	return domain.Credentials{
		ClientID:     m.ClientID,
		ClientSecret: m.ClientSecret,
		RefreshToken: m.RefreshToken,
		AccountID:    m.AccountID,
	}
}

// RateLimitConfig defines API rate limiting settings. A zero daily limit
// disables the daily budget.
type RateLimitConfig struct {
	PerSecond  float64 `yaml:"per_second"`
	Burst      int     `yaml:"burst"`
	DailyLimit int64   `yaml:"daily_limit"`
}

// HarvestConfig defines scheduling and result sinks.
type HarvestConfig struct {
	ScheduleEnabled bool          `yaml:"schedule_enabled"`
	Interval        time.Duration `yaml:"interval"`
	OutputDir       string        `yaml:"output_dir"`
	Sinks           []string      `yaml:"sinks"`
}

// HasSink reports whether name is among the configured sinks.
func (h *HarvestConfig) HasSink(name string) bool {
	return slices.Contains(h.Sinks, name)
}

// NotificationsConfig defines notification targets.
type NotificationsConfig struct {
	Discord DiscordConfig `yaml:"discord"`
}

// DiscordConfig defines Discord webhook settings.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// TelemetryConfig defines OpenTelemetry trace and metric export.
type TelemetryConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Endpoint       string        `yaml:"endpoint"`
	Insecure       bool          `yaml:"insecure"`
	ServiceName    string        `yaml:"service_name"`
	SampleRatio    float64       `yaml:"sample_ratio"`
	MetricInterval time.Duration `yaml:"metric_interval"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// MissingError names every required setting that was not provided.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "missing required configuration: " + strings.Join(e.Keys, ", ")
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation. An empty path loads defaults and environment
// credentials only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		// Expand environment variables in the YAML content.
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
	}

	applyCredentialEnv(&cfg.Meli)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyCredentialEnv(m *MeliConfig) {
	fill := func(dst *string, env string) {
		if *dst == "" {
			*dst = os.Getenv(env)
		}
	}
	fill(&m.ClientID, EnvClientID)
	fill(&m.ClientSecret, EnvClientSecret)
	fill(&m.RefreshToken, EnvRefreshToken)
	fill(&m.AccountID, EnvAccountID)
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyRedisDefaults(&cfg.Redis)
	applyRabbitMQDefaults(&cfg.RabbitMQ)
	applyMeliDefaults(&cfg.Meli)
	applyHarvestDefaults(&cfg.Harvest)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 10
	}
}

func applyRedisDefaults(r *RedisConfig) {
	if r.SnapshotKey == "" {
		r.SnapshotKey = "meli-harvester:snapshot"
	}
	if r.TokenKey == "" {
		r.TokenKey = "meli-harvester:refresh-token"
	}
	if r.SnapshotTTL == 0 {
		r.SnapshotTTL = 48 * time.Hour
	}
}

func applyRabbitMQDefaults(r *RabbitMQConfig) {
	if r.Queue == "" {
		r.Queue = "extraction.completed"
	}
}

func applyMeliDefaults(m *MeliConfig) {
	if m.APIBase == "" {
		m.APIBase = "https://api.mercadolibre.com"
	}
	if m.PageSize == 0 {
		m.PageSize = 50
	}
	if m.OffsetCap == 0 {
		m.OffsetCap = 1000
	}
	if m.PageDelay == 0 {
		m.PageDelay = 500 * time.Millisecond
	}
	if m.ItemDelay == 0 {
		m.ItemDelay = 800 * time.Millisecond
	}
	if len(m.FallbackStatuses) == 0 {
		m.FallbackStatuses = []int{403}
	}
	if m.RateLimit.PerSecond == 0 {
		m.RateLimit.PerSecond = 5.0
	}
	if m.RateLimit.Burst == 0 {
		m.RateLimit.Burst = 5
	}
}

func applyHarvestDefaults(h *HarvestConfig) {
	if h.Interval == 0 {
		h.Interval = 24 * time.Hour
	}
	if h.OutputDir == "" {
		h.OutputDir = "data"
	}
	if len(h.Sinks) == 0 {
		h.Sinks = []string{SinkFile}
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.ServiceName == "" {
		t.ServiceName = "meli-harvester"
	}
	if t.Endpoint == "" {
		t.Endpoint = "localhost:4317"
	}
	if t.MetricInterval == 0 {
		t.MetricInterval = time.Minute
	}
	if t.SampleRatio == 0 {
		t.SampleRatio = 1.0
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	if err := validateCredentials(&cfg.Meli); err != nil {
		errs = append(errs, err)
	}

	for _, s := range cfg.Harvest.Sinks {
		if !slices.Contains(knownSinks, s) {
			errs = append(errs, fmt.Errorf(
				"harvest.sinks: unknown sink %q (want one of: %s)",
				s, strings.Join(knownSinks, ", "),
			))
		}
	}

	if cfg.Harvest.HasSink(SinkPostgres) {
		if cfg.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required when the postgres sink is enabled"))
		}
		if cfg.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.name is required when the postgres sink is enabled"))
		}
		if cfg.Database.User == "" {
			errs = append(errs, fmt.Errorf("database.user is required when the postgres sink is enabled"))
		}
	}
	if (cfg.Harvest.HasSink(SinkRedis) || cfg.Redis.PersistTokens) && cfg.Redis.Addr == "" {
		errs = append(errs, fmt.Errorf("redis.addr is required when redis is used"))
	}
	if cfg.Harvest.HasSink(SinkRabbitMQ) && cfg.RabbitMQ.URL == "" {
		errs = append(errs, fmt.Errorf("rabbitmq.url is required when the rabbitmq sink is enabled"))
	}

	if cfg.Notifications.Discord.Enabled && cfg.Notifications.Discord.WebhookURL == "" {
		errs = append(errs, fmt.Errorf("notifications.discord.webhook_url is required when discord is enabled"))
	}

	if cfg.Meli.PageSize < 1 {
		errs = append(errs, fmt.Errorf("meli.page_size must be positive (got %d)", cfg.Meli.PageSize))
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf(
			"telemetry.sample_ratio must be between 0 and 1 (got %g)",
			cfg.Telemetry.SampleRatio,
		))
	}

	return errors.Join(errs...)
}

func validateCredentials(m *MeliConfig) error {
	var missing []string
	check := func(val, key, env string) {
		if val == "" {
			missing = append(missing, fmt.Sprintf("%s (%s)", key, env))
		}
	}
	check(m.ClientID, "meli.client_id", EnvClientID)
	check(m.ClientSecret, "meli.client_secret", EnvClientSecret)
	check(m.RefreshToken, "meli.refresh_token", EnvRefreshToken)
	check(m.AccountID, "meli.account_id", EnvAccountID)

	if len(missing) == 0 {
		return nil
	}
	return &MissingError{Keys: missing}
}
