package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memebot/memebot/favorites"
	"github.com/m3rciful/memebot/memebot/favorites/pgstore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: abc\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DriverFile, cfg.Storage.Driver)
	assert.Equal(t, "favorites.json", cfg.Storage.FavoritesPath)
	assert.Equal(t, "longpoll", cfg.Telegram.RunMode)
	assert.Zero(t, cfg.Storage.FavoritesLimit)
	assert.Empty(t, cfg.Metrics.Listen)
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadConfigReadsNestedSections(t *testing.T) {
	path := writeConfig(t, `telegram:
  token: abc
storage:
  driver: Postgres
  favorites_limit: 25
database:
  host: db
  name: memes
providers:
  memegen_url: https://memes.local
  render_timeout_ms: 1500
metrics:
  listen: ":9090"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 25, cfg.Storage.FavoritesLimit)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "https://memes.local", cfg.Providers.MemegenURL)
	assert.Equal(t, 1500*time.Millisecond, millis(cfg.Providers.RenderTimeoutMS))
	assert.Equal(t, ":9090", cfg.Metrics.Listen)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: abc\nstorage:\n  favorites_path: from-file.json\n")
	t.Setenv("FAVORITES_PATH", "/data/favorites.json")
	t.Setenv("CAT_API_KEY", "secret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/favorites.json", cfg.Storage.FavoritesPath)
	assert.Equal(t, "secret", cfg.Providers.CatAPIKey)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"unknown driver":   "telegram:\n  token: abc\nstorage:\n  driver: redis\n",
		"postgres no host": "telegram:\n  token: abc\nstorage:\n  driver: postgres\ndatabase:\n  name: memes\n",
		"negative limit":   "telegram:\n  token: abc\nstorage:\n  favorites_limit: -1\n",
		"negative timeout": "telegram:\n  token: abc\nproviders:\n  fetch_timeout_ms: -5\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadConfigRequiresToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	_, err := LoadConfig(writeConfig(t, "storage:\n  driver: file\n"))
	require.Error(t, err)
}

func TestNewRepositorySelectsDriver(t *testing.T) {
	fileCfg := &Config{Storage: StorageConfig{Driver: DriverFile, FavoritesPath: "favs.json"}}
	repo, err := newRepository(fileCfg, nil)
	require.NoError(t, err)
	fileRepo, ok := repo.(*favorites.FileRepository)
	require.True(t, ok)
	assert.Equal(t, "favs.json", fileRepo.Path())

	pgCfg := &Config{Storage: StorageConfig{Driver: DriverPostgres}}
	_, err = newRepository(pgCfg, nil)
	require.Error(t, err)

	repo, err = newRepository(pgCfg, &sqlx.DB{})
	require.NoError(t, err)
	assert.IsType(t, &pgstore.Repository{}, repo)
}
