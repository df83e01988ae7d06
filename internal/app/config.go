package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the gigbook backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Booking     BookingConfig     `mapstructure:"booking"`
	Matching    MatchingConfig    `mapstructure:"matching"`
	Events      EventsConfig      `mapstructure:"events"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	LogFormat       string          `mapstructure:"log_format"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	// IdempotencyTTL is how long responses to keyed POSTs are replayed.
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// RateLimitConfig bounds requests per actor and route.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	LogLevel        string        `mapstructure:"log_level"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Postgres        DBAuthConfig  `mapstructure:"postgres"`
	MySQL           DBAuthConfig  `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Prefix   string        `mapstructure:"prefix"`
}

// AuthConfig captures token verification settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	Leeway   time.Duration `mapstructure:"leeway"`
	TTL      time.Duration `mapstructure:"access_token_ttl"`
}

// BookingConfig holds the booking policy switches.
type BookingConfig struct {
	AutoConfirmSingleCandidate bool               `mapstructure:"auto_confirm_single_candidate"`
	Cancellation               CancellationConfig `mapstructure:"cancellation"`
}

// CancellationConfig tunes late and frequent cancellation suspensions.
// A frequency threshold of 0 disables the frequency rule.
type CancellationConfig struct {
	LateWindow         time.Duration `mapstructure:"late_window"`
	SuspensionLength   time.Duration `mapstructure:"suspension_length"`
	FrequencyThreshold int           `mapstructure:"frequency_threshold"`
	FrequencyWindow    time.Duration `mapstructure:"frequency_window"`
}

// MatchingConfig configures candidate matching.
type MatchingConfig struct {
	Travel TravelConfig `mapstructure:"travel"`
}

// TravelConfig parameterises the driving-time estimate.
type TravelConfig struct {
	AverageSpeedKph float64       `mapstructure:"average_speed_kph"`
	RoadFactor      float64       `mapstructure:"road_factor"`
	FixedOverhead   time.Duration `mapstructure:"fixed_overhead"`
}

// EventsConfig tunes outbox delivery retries.
type EventsConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	BatchSize   int           `mapstructure:"batch_size"`
	// MaxLag is how long an event may stay pending before readiness degrades.
	MaxLag time.Duration `mapstructure:"max_lag"`
}

// MaintenanceConfig schedules background jobs with cron specs.
type MaintenanceConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	RedeliverySchedule    string        `mapstructure:"redelivery_schedule"`
	NotificationSchedule  string        `mapstructure:"notification_schedule"`
	NotificationRetention time.Duration `mapstructure:"notification_retention"`
	EventRetention        time.Duration `mapstructure:"event_retention"`
	CacheSchedule         string        `mapstructure:"cache_schedule"`
	StaleAfter            time.Duration `mapstructure:"stale_after"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("GIGBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.rate_limit.requests", 120)
	v.SetDefault("server.rate_limit.window", "1m")
	v.SetDefault("server.idempotency_ttl", "24h")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/gigbook.sqlite")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.postgres.enabled", false)
	v.SetDefault("database.postgres.host", "")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "")
	v.SetDefault("database.postgres.username", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.mysql.enabled", false)
	v.SetDefault("database.mysql.host", "")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.database", "")
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")
	v.SetDefault("cache.redis.prefix", "gigbook:")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "")
	v.SetDefault("auth.jwt.audience", "")
	v.SetDefault("auth.jwt.leeway", "30s")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("booking.auto_confirm_single_candidate", false)
	v.SetDefault("booking.cancellation.late_window", "24h")
	v.SetDefault("booking.cancellation.suspension_length", "168h") // 7 days
	v.SetDefault("booking.cancellation.frequency_threshold", 3)
	v.SetDefault("booking.cancellation.frequency_window", "720h") // 30 days

	v.SetDefault("matching.travel.average_speed_kph", 50)
	v.SetDefault("matching.travel.road_factor", 1.3)
	v.SetDefault("matching.travel.fixed_overhead", "5m")

	v.SetDefault("events.max_attempts", 8)
	v.SetDefault("events.base_backoff", "30s")
	v.SetDefault("events.max_backoff", "1h")
	v.SetDefault("events.batch_size", 100)
	v.SetDefault("events.max_lag", "15m")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.redelivery_schedule", "@every 1m")
	v.SetDefault("maintenance.notification_schedule", "@daily")
	v.SetDefault("maintenance.notification_retention", "2160h") // 90 days
	v.SetDefault("maintenance.event_retention", "720h")
	v.SetDefault("maintenance.cache_schedule", "@hourly")
	v.SetDefault("maintenance.stale_after", "48h")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
	v.SetDefault("monitoring.health_check.timeout", "2s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
