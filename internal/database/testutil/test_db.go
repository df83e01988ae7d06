package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/gigbook/internal/database"
)

// TestDBOption customises the behaviour of MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	migrate  bool
	seed     bool
	fixtures []any
}

// WithAutoMigrate creates the booking schema after opening the database.
func WithAutoMigrate() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.migrate = true
	}
}

// WithSeedData migrates and inserts the demo organizer and musicians.
func WithSeedData() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.migrate = true
		cfg.seed = true
	}
}

// WithFixtures migrates and inserts rows in order, so gigs can precede the
// roles and invites that reference them.
func WithFixtures(rows ...any) TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.migrate = true
		cfg.fixtures = append(cfg.fixtures, rows...)
	}
}

// MustOpenTestDB opens a private in-memory SQLite database. Every call is
// named uniquely so parallel tests never share rows. t.Cleanup closes it.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	var cfg testDBConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := database.Open(database.Config{Driver: "sqlite", Name: "test_" + uuid.NewString()})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	switch {
	case cfg.seed:
		require.NoError(t, database.AutoMigrateAndSeed(db))
	case cfg.migrate:
		require.NoError(t, database.AutoMigrate(db))
	}
	Seed(t, db, cfg.fixtures...)
	return db
}

// Seed inserts each row, failing the test on the first error.
func Seed(t *testing.T, db *gorm.DB, rows ...any) {
	t.Helper()
	for _, row := range rows {
		require.NoError(t, db.Create(row).Error, "seed %T", row)
	}
}
