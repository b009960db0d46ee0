package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memebot/memebot/favorites"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("MEMEBOT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MEMEBOT_TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := Migrations.ReadFile(MigrationsDir + "/0001_create_favorites.up.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)
	_, err = db.Exec(`TRUNCATE favorites`)
	require.NoError(t, err)
	return db
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := New(openTestDB(t))

	doc, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc)

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Format(time.RFC3339)
	doc = favorites.Document{
		"1": {Favorites: []favorites.Meme{{URL: "u1", Top: "a", Bottom: "b", CreatedAt: created}}},
		"2": {Favorites: []favorites.Meme{}},
	}
	require.NoError(t, repo.Save(ctx, doc))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	delete(doc, "1")
	require.NoError(t, repo.Save(ctx, doc))
	got, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "2")
}

func TestStoreOverPostgres(t *testing.T) {
	ctx := context.Background()
	s := favorites.NewStore(New(openTestDB(t)))
	require.NoError(t, s.Add(ctx, 9, favorites.Meme{URL: "u", Top: "t", Bottom: "b"}))
	require.ErrorIs(t, s.Add(ctx, 9, favorites.Meme{URL: "u", Top: "t", Bottom: "b"}), favorites.ErrDuplicate)
	require.NoError(t, s.Clear(ctx, 9))
	n, err := s.Count(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := Migrations.ReadDir(MigrationsDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
