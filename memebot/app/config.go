package app

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/memebot/core/config"
	coredatabase "github.com/m3rciful/memebot/core/database"
)

const (
	// DriverFile keeps favorites in a JSON document on disk.
	DriverFile = "file"
	// DriverPostgres keeps favorites in Postgres.
	DriverPostgres = "postgres"

	defaultFavoritesPath = "favorites.json"
	defaultDBPort        = "5432"
)

// StorageConfig selects where favorites are persisted.
type StorageConfig struct {
	Driver         string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
	FavoritesPath  string `yaml:"favorites_path" envconfig:"FAVORITES_PATH"`
	FavoritesLimit int    `yaml:"favorites_limit" envconfig:"FAVORITES_LIMIT"`
}

// ProvidersConfig configures the image source and the meme renderer.
// Zero timeouts fall back to the client defaults.
type ProvidersConfig struct {
	CatAPIURL         string `yaml:"cat_api_url" envconfig:"CAT_API_URL"`
	CatAPIKey         string `yaml:"cat_api_key" envconfig:"CAT_API_KEY"`
	MemegenURL        string `yaml:"memegen_url" envconfig:"MEMEGEN_URL"`
	FetchTimeoutMS    int    `yaml:"fetch_timeout_ms" envconfig:"FETCH_TIMEOUT_MS"`
	RenderTimeoutMS   int    `yaml:"render_timeout_ms" envconfig:"RENDER_TIMEOUT_MS"`
	DownloadTimeoutMS int    `yaml:"download_timeout_ms" envconfig:"DOWNLOAD_TIMEOUT_MS"`
	HealthTimeoutMS   int    `yaml:"health_timeout_ms" envconfig:"HEALTH_TIMEOUT_MS"`
}

// MetricsConfig controls the Prometheus listener. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Storage   StorageConfig       `yaml:"storage"`
	Database  coredatabase.Config `yaml:"database"`
	Providers ProvidersConfig     `yaml:"providers"`
	Metrics   MetricsConfig       `yaml:"metrics"`
}

// CoreConfig exposes the framework part of the configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// LoadConfig reads path and the environment, then validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	driver := strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if driver == "" {
		driver = DriverFile
	}
	switch driver {
	case DriverFile:
		if strings.TrimSpace(c.Storage.FavoritesPath) == "" {
			c.Storage.FavoritesPath = defaultFavoritesPath
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.Host) == "" || strings.TrimSpace(c.Database.Name) == "" {
			return fmt.Errorf("database.host and database.name are required when storage.driver is 'postgres'")
		}
		if c.Database.Port == "" {
			c.Database.Port = defaultDBPort
		}
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: file, postgres", c.Storage.Driver)
	}
	c.Storage.Driver = driver

	if c.Storage.FavoritesLimit < 0 {
		return fmt.Errorf("storage.favorites_limit must be >= 0")
	}
	for name, v := range map[string]int{
		"providers.fetch_timeout_ms":    c.Providers.FetchTimeoutMS,
		"providers.render_timeout_ms":   c.Providers.RenderTimeoutMS,
		"providers.download_timeout_ms": c.Providers.DownloadTimeoutMS,
		"providers.health_timeout_ms":   c.Providers.HealthTimeoutMS,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	return nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
