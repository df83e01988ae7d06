package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gigbook/internal/auth"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig("testdata")
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.AllowedOrigins)
	require.Equal(t, 30, cfg.Server.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)
	require.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "redis.example.com:6380", cfg.Cache.Redis.Address)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)

	require.True(t, cfg.Booking.AutoConfirmSingleCandidate)
	require.Equal(t, 12*time.Hour, cfg.Booking.Cancellation.LateWindow)
	require.Equal(t, 0, cfg.Booking.Cancellation.FrequencyThreshold)
	require.Equal(t, 7*24*time.Hour, cfg.Booking.Cancellation.SuspensionLength)

	require.InDelta(t, 60, cfg.Matching.Travel.AverageSpeedKph, 0.001)
	require.InDelta(t, 1.3, cfg.Matching.Travel.RoadFactor, 0.001)
	require.Equal(t, 4, cfg.Events.MaxAttempts)
	require.Equal(t, "@every 30s", cfg.Maintenance.RedeliverySchedule)
	require.Equal(t, "@daily", cfg.Maintenance.NotificationSchedule)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
	require.False(t, cfg.Booking.AutoConfirmSingleCandidate)
	require.Equal(t, 24*time.Hour, cfg.Booking.Cancellation.LateWindow)
	require.Equal(t, 3, cfg.Booking.Cancellation.FrequencyThreshold)
	require.Equal(t, 30*24*time.Hour, cfg.Booking.Cancellation.FrequencyWindow)
	require.Equal(t, 8, cfg.Events.MaxAttempts)
	require.True(t, cfg.Maintenance.Enabled)
	require.True(t, cfg.Monitoring.Health.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}

func TestLoadConfigEnvironmentOverride(t *testing.T) {
	t.Setenv("GIGBOOK_SERVER_PORT", "7070")
	t.Setenv("GIGBOOK_AUTH_JWT_SECRET", "from-env")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "from-env", cfg.Auth.JWT.Secret)
}

func TestJWTServiceConfig(t *testing.T) {
	cfg := AuthConfig{JWT: JWTSettings{Secret: "s", Issuer: " gigbook ", Audience: "gigbook-api", Leeway: -time.Second}}
	out := cfg.JWTServiceConfig()
	require.Equal(t, "s", out.Secret)
	require.Equal(t, "gigbook", out.Issuer)
	require.Equal(t, "gigbook-api", out.Audience)
	require.Zero(t, out.Leeway)
	require.Equal(t, auth.DefaultAccessTokenTTL, out.AccessTokenTTL)

	cfg.JWT.TTL = time.Hour
	require.Equal(t, time.Hour, cfg.JWTServiceConfig().AccessTokenTTL)
}

func TestRedisClientConfig(t *testing.T) {
	cfg := CacheConfig{Redis: RedisCacheConfig{
		Address: " localhost:6379 ",
		DB:      2,
		TLS:     true,
		Timeout: time.Second,
		Prefix:  "gb:",
	}}
	out := cfg.RedisClientConfig()
	require.Equal(t, "localhost:6379", out.Address)
	require.Equal(t, 2, out.DB)
	require.True(t, out.TLS)
	require.Equal(t, time.Second, out.Timeout)
	require.Equal(t, "gb:", out.Prefix)
}

func TestDatabaseOpenConfig(t *testing.T) {
	sqlite := DatabaseConfig{Path: "./data/db.sqlite", MaxOpenConns: 4}.OpenConfig()
	require.Equal(t, "sqlite", sqlite.Driver)
	require.Equal(t, "./data/db.sqlite", sqlite.Path)
	require.Equal(t, 4, sqlite.MaxOpenConns)

	pg := DatabaseConfig{
		Driver:   "PostgreSQL",
		Postgres: DBAuthConfig{Host: "db", Port: 5432, Database: "gigbook", Username: "u", Password: "p"},
	}.OpenConfig()
	require.Equal(t, "postgres", pg.Driver)
	require.Equal(t, "db", pg.Host)
	require.Equal(t, 5432, pg.Port)
	require.Equal(t, "gigbook", pg.Name)

	my := DatabaseConfig{Driver: "mysql", MySQL: DBAuthConfig{Host: "mysql", Port: 3306}}.OpenConfig()
	require.Equal(t, "mysql", my.Driver)
	require.Equal(t, "mysql", my.Host)

	unknown := DatabaseConfig{Driver: "oracle"}.OpenConfig()
	require.Equal(t, "oracle", unknown.Driver)
	require.Empty(t, unknown.Host)
}

func TestBookingAdapters(t *testing.T) {
	booking := BookingConfig{Cancellation: CancellationConfig{
		LateWindow:         6 * time.Hour,
		SuspensionLength:   48 * time.Hour,
		FrequencyThreshold: 2,
		FrequencyWindow:    7 * 24 * time.Hour,
	}}
	policyCfg := booking.CancellationPolicyConfig()
	require.Equal(t, 6*time.Hour, policyCfg.LateWindow)
	require.Equal(t, 48*time.Hour, policyCfg.SuspensionLength)
	require.Equal(t, 2, policyCfg.FrequencyThreshold)
	require.Equal(t, 7*24*time.Hour, policyCfg.FrequencyWindow)

	events := EventsConfig{MaxAttempts: 3, BaseBackoff: time.Second, MaxBackoff: time.Minute}
	require.Len(t, events.DispatcherOptions(), 2)

	estimator := MatchingConfig{Travel: TravelConfig{AverageSpeedKph: 60, RoadFactor: 1, FixedOverhead: 0}}.Estimator()
	require.Equal(t, 60, estimator.EstimateMinutes(60))
}
