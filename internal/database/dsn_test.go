package database

import (
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "gigbook", Name: "gigbook"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=gigbook dbname=gigbook TimeZone=UTC application_name=gigbook sslmode=disable", dsn)
}

func TestBuildPostgresDSNParsesWithOptions(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "booker",
		Name:     "gigs",
		Host:     "db.example.com",
		Port:     6543,
		Password: "it's secret",
		Options: map[string]string{
			"sslmode":     "require",
			"search_path": "booking",
		},
	})
	require.NoError(t, err)

	parsed, err := pgconn.ParseConfig(dsn)
	require.NoError(t, err)
	require.Equal(t, "db.example.com", parsed.Host)
	require.Equal(t, uint16(6543), parsed.Port)
	require.Equal(t, "booker", parsed.User)
	require.Equal(t, "gigs", parsed.Database)
	require.Equal(t, "it's secret", parsed.Password)
	require.Equal(t, "booking", parsed.RuntimeParams["search_path"])
	require.Equal(t, "gigbook", parsed.RuntimeParams["application_name"])
}

func TestBuildPostgresDSNValidatesOverride(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "postgres://u:p@localhost:5432/gigs"})
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@localhost:5432/gigs", dsn)

	_, err = buildPostgresDSN(Config{DSN: "postgres://u:p@localhost:notaport/gigs"})
	require.Error(t, err)
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	_, err := buildPostgresDSN(Config{})
	require.Error(t, err)
}

func TestBuildMySQLDSNDefaults(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "gigbook", Name: "gigbook"})
	require.NoError(t, err)

	parsed, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "gigbook", parsed.User)
	require.Equal(t, "127.0.0.1:3306", parsed.Addr)
	require.Equal(t, "gigbook", parsed.DBName)
	require.True(t, parsed.ParseTime)
	require.Equal(t, time.UTC, parsed.Loc)
	require.Contains(t, dsn, "charset=utf8mb4")
}

func TestBuildMySQLDSNWithOptions(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "user",
		Password: "secret",
		Name:     "db",
		Host:     "db.example.com",
		Port:     3307,
		Options:  map[string]string{"tls": "skip-verify", "timeout": "5s"},
	})
	require.NoError(t, err)

	parsed, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "secret", parsed.Passwd)
	require.Equal(t, "db.example.com:3307", parsed.Addr)
	require.Equal(t, "skip-verify", parsed.TLSConfig)
	require.Equal(t, 5*time.Second, parsed.Timeout)
}

func TestBuildMySQLDSNRequiresUserAndName(t *testing.T) {
	_, err := buildMySQLDSN(Config{Host: "localhost"})
	require.Error(t, err)

	_, err = buildMySQLDSN(Config{DSN: "not a dsn"})
	require.Error(t, err)
}

func TestQuotePostgresValue(t *testing.T) {
	require.Equal(t, "plain", quotePostgresValue("plain"))
	require.Equal(t, "''", quotePostgresValue(""))
	require.Equal(t, `'a b'`, quotePostgresValue("a b"))
	require.Equal(t, `'it\'s'`, quotePostgresValue("it's"))
}
