package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sqliteTxParams takes the write lock when a transaction begins. Confirmation
// and invite transitions read then write, and a deferred lock upgrade would
// fail with SQLITE_BUSY instead of waiting.
const sqliteTxParams = "_foreign_keys=1&_txlock=immediate"

func openSQLite(cfg Config) (*gorm.DB, error) {
	dsn := cfg.DSN
	memory := false

	if dsn == "" {
		path := strings.TrimSpace(cfg.Path)
		switch {
		case path == "", strings.EqualFold(path, ":memory:"):
			memory = true
			dsn = memoryDSN(cfg.Name)
		default:
			if err := ensureDir(path); err != nil {
				return nil, err
			}
			dsn = fmt.Sprintf("file:%s?%s&_journal_mode=WAL&_busy_timeout=5000", filepath.ToSlash(path), sqliteTxParams)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(cfg))
	if err != nil {
		return nil, err
	}

	if err := enableForeignKeys(db); err != nil {
		return nil, err
	}

	// a shared in-memory database only tolerates one writer
	if memory && cfg.MaxOpenConns == 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

func memoryDSN(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "file::memory:?cache=shared&" + sqliteTxParams
	}
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", name, sqliteTxParams)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func enableForeignKeys(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil && err != sql.ErrConnDone {
		return err
	}
	return nil
}
