package database

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// postgresDefaults apply unless overridden through Config.Options. Booking
// times are stored and compared in UTC.
var postgresDefaults = map[string]string{
	"sslmode":          "disable",
	"TimeZone":         "UTC",
	"application_name": "gigbook",
}

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.New(postgres.Config{DSN: dsn}), gormConfig(cfg))
}

// buildPostgresDSN returns a keyword/value connection string. Explicit DSNs
// are passed through after pgconn has checked that they parse.
func buildPostgresDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		if _, err := pgconn.ParseConfig(dsn); err != nil {
			return "", fmt.Errorf("invalid postgres dsn: %w", err)
		}
		return dsn, nil
	}

	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	params := map[string]string{
		"host":   valueOr(cfg.Host, "localhost"),
		"port":   fmt.Sprint(intOr(cfg.Port, 5432)),
		"user":   cfg.User,
		"dbname": cfg.Name,
	}
	if cfg.Password != "" {
		params["password"] = cfg.Password
	}
	for key, value := range postgresDefaults {
		params[key] = value
	}
	for key, value := range cfg.Options {
		params[key] = value
	}

	// connection identity first, then options in a stable order
	head := []string{"host", "port", "user", "dbname", "password"}
	parts := make([]string, 0, len(params))
	for _, key := range head {
		if value, ok := params[key]; ok {
			parts = append(parts, key+"="+quotePostgresValue(value))
			delete(params, key)
		}
	}
	rest := make([]string, 0, len(params))
	for key := range params {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	for _, key := range rest {
		parts = append(parts, key+"="+quotePostgresValue(params[key]))
	}

	return strings.Join(parts, " "), nil
}

// quotePostgresValue quotes values containing spaces or quotes, as libpq expects.
func quotePostgresValue(value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return value
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return "'" + escaped + "'"
}

func valueOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func intOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
