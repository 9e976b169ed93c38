// Package dbtest provides migrated in-memory databases for tests.
package dbtest

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"authmedia/internal/db"
)

// New returns a fresh, fully migrated in-memory SQLite database that is
// closed when the test ends.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	gdb, err := db.OpenAndMigrate(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}
