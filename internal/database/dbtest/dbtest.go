// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"testing"

	"taskhub/backend/internal/database"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a migrated database that lives as long as the test. The pool is
// pinned to a single connection so every query sees the same in-memory
// database; concurrent callers are serialized by database/sql.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:       database.DriverSQLite,
		DSN:          "file::memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     logger.Silent,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := pool.Migrate(); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	return pool.DB
}
