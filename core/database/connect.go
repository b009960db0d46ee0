package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/memebot/core/logger"
)

const (
	driverName     = "postgres"
	connectTimeout = 5 * time.Second
	readyInterval  = 2 * time.Second
)

// Connect opens a pooled connection and pings it before returning.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := open(ctx, cfg)
	attrs := append(cfg.logAttrs(), slog.Duration("duration", logger.RoundMS(time.Since(start))))
	if err != nil {
		logger.Error(ctx, "db", "db.connect",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...,
		)
		return nil, err
	}
	logger.Info(ctx, "db", "db.connect", append(attrs, slog.String("status", "ok"))...)
	return db, nil
}

func open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if n := cfg.MaxConnections; n > 0 {
		db.SetMaxOpenConns(n)
		db.SetMaxIdleConns(n)
	}
	return db, nil
}

func (c Config) logAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("driver", driverName),
		slog.String("host", c.Host),
		slog.String("port", c.Port),
		slog.String("db", c.Name),
		slog.Int("pool_open", c.MaxConnections),
	}
}

// WaitForPostgres pings dsn every couple of seconds until it answers or
// timeout elapses.
func WaitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	return waitReady(ctx, timeout, readyInterval, func(ctx context.Context) error {
		db, err := sql.Open(driverName, dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.PingContext(ctx)
	})
}

func waitReady(ctx context.Context, timeout, interval time.Duration, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	err := backoff.Retry(func() error {
		lastErr = ping(ctx)
		return lastErr
	}, backoff.WithContext(backoff.NewConstantBackOff(interval), ctx))
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return fmt.Errorf("timeout reached waiting for database: %w", lastErr)
	}
	return nil
}
