package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_pragma=foreign_keys(1)&_time_format=sqlite", buildDSN(":memory:"))
	assert.Contains(t, buildDSN("./data/sqlite.db"), "journal_mode(WAL)")
	assert.Contains(t, buildDSN("file:x?mode=memory"), "file:x?mode=memory&_pragma=foreign_keys(1)")
}

func TestOpenAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sqlite.db")

	db, err := OpenAndMigrate(context.Background(), path)
	require.NoError(t, err)
	defer Close(db)

	var tables []string
	require.NoError(t, db.Raw("SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ('user','session','account','verification','media') ORDER BY name").Scan(&tables).Error)
	assert.Equal(t, []string{"account", "media", "session", "user", "verification"}, tables)

	var fk int
	require.NoError(t, db.Raw("PRAGMA foreign_keys").Scan(&fk).Error)
	assert.Equal(t, 1, fk)

	// Applying again is a no-op.
	assert.NoError(t, Migrate(context.Background(), db))
}
