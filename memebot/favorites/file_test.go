package favorites

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRepositoryMissingFileIsEmpty(t *testing.T) {
	repo := NewFileRepository(filepath.Join(t.TempDir(), "nested", "favorites.json"))
	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestFileRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "favorites.json")
	repo := NewFileRepository(path)

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format(time.RFC3339)
	doc := Document{"42": {Favorites: []Meme{{
		URL:        "https://api.memegen.link/images/custom/a/b.png?background=x&y=1",
		Top:        "a",
		Bottom:     "b",
		CreatedAt:  created,
		IsUploaded: true,
	}}}}
	require.NoError(t, repo.Save(ctx, doc))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "background=x&y=1")
	assert.Contains(t, string(raw), "\n  \"42\": {")

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestFileRepositoryFailedSaveKeepsPreviousFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	target := filepath.Join(dir, "favorites.json")

	// A non-empty directory at the target path makes the final rename fail.
	require.NoError(t, os.MkdirAll(filepath.Join(target, "keep"), 0o755))
	repo := NewFileRepository(target)

	err := repo.Save(ctx, Document{"1": {Favorites: []Meme{{URL: "u"}}}})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
	info, err := os.Stat(filepath.Join(target, "keep"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileRepositoryRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "favorites.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := NewFileRepository(path).Load(context.Background())
	require.Error(t, err)
}

func TestFileRepositoryBackedStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "favorites.json")
	s := NewStore(NewFileRepository(path))
	require.NoError(t, s.Add(ctx, 5, Meme{URL: "u", Top: "t", Bottom: "b"}))

	reopened := NewStore(NewFileRepository(path))
	list, err := reopened.List(ctx, 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "t", list[0].Top)
}

func TestFileRepositoryLoadsLegacyTimestamps(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "favorites.json")
	legacy := `{
  "42": {"favorites": [
    {"url": "https://cdn.test/a.jpg", "top": "A", "bottom": "B", "created_at": "2024-05-01 10:00:00+00:00"},
    {"url": "AgACAgIAAxkBAAIB", "top": "", "bottom": "", "created_at": "", "is_uploaded": true}
  ]}
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	s := NewStore(NewFileRepository(path))
	list, err := s.List(ctx, 42)
	require.NoError(t, err)
	require.Len(t, list, 2)

	created, ok := list[0].Created()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), created.UTC())
	_, ok = list[1].Created()
	assert.False(t, ok)

	require.NoError(t, s.Add(ctx, 99, Meme{URL: "u", Top: "t", Bottom: "b"}))
	list, err = s.List(ctx, 99)
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, ok = list[0].Created()
	assert.True(t, ok)
}
