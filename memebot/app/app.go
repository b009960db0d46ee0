// Package app wires configuration, storage, providers and handlers into a
// runnable Telegram bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/memebot/core/bootstrap"
	"github.com/m3rciful/memebot/core/logger"
	"github.com/m3rciful/memebot/core/telegram"
	"github.com/m3rciful/memebot/memebot/composer"
	"github.com/m3rciful/memebot/memebot/engine"
	"github.com/m3rciful/memebot/memebot/favorites"
	"github.com/m3rciful/memebot/memebot/favorites/pgstore"
	"github.com/m3rciful/memebot/memebot/handlers"
	"github.com/m3rciful/memebot/memebot/health"
	"github.com/m3rciful/memebot/memebot/imagecache"
	"github.com/m3rciful/memebot/memebot/metrics"
	"github.com/m3rciful/memebot/memebot/providers/catapi"
	"github.com/m3rciful/memebot/memebot/providers/memegen"
)

// App holds the initialized bot components.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	metrics  *metrics.Metrics
	registry *telegram.Registry
	handlers *handlers.Handlers

	stopMetrics context.CancelFunc
	background  *errgroup.Group
}

// Bootstrap initializes logging, storage and every collaborator of the bot.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config provided")
	}

	opts := bootstrap.Options{Config: &cfg.Config}
	if cfg.Storage.Driver == DriverPostgres {
		db := cfg.Database
		opts.Database = &db
		opts.Migrations = pgstore.Migrations
		opts.MigrationsDir = pgstore.MigrationsDir
	}
	res, err := bootstrap.Run(ctx, opts)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	repo, err := newRepository(cfg, res.DB)
	if err != nil {
		return nil, err
	}
	store := favorites.NewStore(repo,
		favorites.WithLimit(cfg.Storage.FavoritesLimit),
		favorites.WithMetrics(m),
	)

	cache := imagecache.New(imagecache.DefaultCapacity)
	cats := catapi.New(catapi.Config{
		URL:          cfg.Providers.CatAPIURL,
		APIKey:       cfg.Providers.CatAPIKey,
		FetchTimeout: millis(cfg.Providers.FetchTimeoutMS),
	}, cache, m)
	renderer := memegen.New(memegen.Config{
		BaseURL:         cfg.Providers.MemegenURL,
		RenderTimeout:   millis(cfg.Providers.RenderTimeoutMS),
		DownloadTimeout: millis(cfg.Providers.DownloadTimeoutMS),
	}, m)

	var composerOpts []composer.Option
	if cfg.Providers.RenderTimeoutMS > 0 {
		composerOpts = append(composerOpts, composer.WithTimeout(millis(cfg.Providers.RenderTimeoutMS)))
	}
	comp := composer.New(renderer, composerOpts...)

	eng := engine.New(engine.NewSessions(), engine.Deps{
		Composer:  comp,
		Favorites: store,
		Source:    cats,
		Recent:    cache,
		Metrics:   m,
	})

	h, err := handlers.New(handlers.Deps{
		Engine:    eng,
		Favorites: store,
		Cats:      cats,
		Recorder:  cache,
		Deliverer: comp,
		Health:    health.New(cats, renderer, millis(cfg.Providers.HealthTimeoutMS)),
	})
	if err != nil {
		closeDB(res.DB)
		return nil, err
	}

	reg := telegram.NewRegistry()
	if err := h.Register(reg); err != nil {
		closeDB(res.DB)
		return nil, err
	}

	logger.Info(ctx, "app", "bootstrap",
		slog.String("status", "ok"),
		slog.String("storage", cfg.Storage.Driver),
		slog.Int("favorites_limit", cfg.Storage.FavoritesLimit),
		slog.Bool("metrics", cfg.Metrics.Listen != ""),
	)

	return &App{
		cfg:      cfg,
		db:       res.DB,
		metrics:  m,
		registry: reg,
		handlers: h,
	}, nil
}

func newRepository(cfg *Config, db *sqlx.DB) (favorites.Repository, error) {
	switch cfg.Storage.Driver {
	case DriverPostgres:
		if db == nil {
			return nil, fmt.Errorf("app: postgres storage selected but no database connection")
		}
		return pgstore.New(db), nil
	default:
		return favorites.NewFileRepository(cfg.Storage.FavoritesPath), nil
	}
}

func closeDB(db *sqlx.DB) {
	if db != nil {
		_ = db.Close()
	}
}

// TelegramRunOptions builds the options for telegram.RunTelegram.
func (a *App) TelegramRunOptions() (telegram.RunOptions, error) {
	return telegram.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    a.registry,
		Middlewares: telegram.DefaultMiddlewares(),
		Routes:      a.handlers.Routes(a.registry),
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, _ telegram.Runtime) error {
	listen := a.cfg.Metrics.Listen
	if listen == "" {
		return nil
	}
	mctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(mctx)
	g.Go(func() error {
		if err := a.metrics.Serve(gctx, listen); err != nil {
			logger.Error(gctx, "app", "metrics.serve",
				slog.String("status", "fail"),
				slog.String("listen", listen),
				slog.String("err", err.Error()),
			)
			return err
		}
		return nil
	})
	a.stopMetrics = cancel
	a.background = g
	return nil
}

func (a *App) onStop(context.Context, telegram.Runtime) error {
	var errs []error
	if a.stopMetrics != nil {
		a.stopMetrics()
		if err := a.background.Wait(); err != nil {
			errs = append(errs, fmt.Errorf("app: metrics server: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("app: close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
