package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDSNDefaultsSSLMode(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "bot", Password: "p w", Name: "memes"}
	assert.Equal(t, "user=bot password=p w host=db port=5432 dbname=memes sslmode=disable", cfg.DSN())
	assert.Equal(t, "postgres://bot:p%20w@db:5432/memes?sslmode=disable", cfg.URL())
}

func TestListMigrationFilesFiltersAndSorts(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0002_b.up.sql":   {Data: []byte("")},
		"migrations/0001_a.up.sql":   {Data: []byte("")},
		"migrations/0001_a.down.sql": {Data: []byte("")},
	}
	files := listMigrationFiles(fsys, "migrations")
	require.Equal(t, []string{"0001_a.up.sql", "0002_b.up.sql"}, files)
	assert.Equal(t, []string{"0002_b.up.sql"}, selectApplied(files, 1, 2))
	assert.Empty(t, selectApplied(files, 2, 2))
	assert.Equal(t, uint64(2), parseVersion("0002_b.up.sql"))
}

func TestListMigrationFilesOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"m/10_late.up.sql": {Data: []byte("")},
		"m/9_early.up.sql": {Data: []byte("")},
		"m/sub/1_x.up.sql": {Data: []byte("")},
	}
	assert.Equal(t, []string{"9_early.up.sql", "10_late.up.sql"}, listMigrationFiles(fsys, "m"))
	assert.Nil(t, listMigrationFiles(fsys, "missing"))
}

func TestWaitReadyRetriesUntilPingSucceeds(t *testing.T) {
	calls := 0
	err := waitReady(context.Background(), time.Second, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWaitReadyReportsLastError(t *testing.T) {
	refused := errors.New("connection refused")
	err := waitReady(context.Background(), 20*time.Millisecond, 5*time.Millisecond, func(context.Context) error {
		return refused
	})
	require.ErrorIs(t, err, refused)
}

func TestConfigLogAttrs(t *testing.T) {
	attrs := Config{Host: "db", Port: "5432", Name: "memes", MaxConnections: 4}.logAttrs()
	got := map[string]string{}
	for _, a := range attrs {
		got[a.Key] = a.Value.String()
	}
	assert.Equal(t, map[string]string{
		"driver": "postgres", "host": "db", "port": "5432", "db": "memes", "pool_open": "4",
	}, got)
}
