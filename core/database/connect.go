package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	coreconfig "github.com/m3rciful/pestbot/core/config"
	"github.com/m3rciful/pestbot/core/logger"
)

const (
	connectTimeout = 5 * time.Second
	pollInterval   = 2 * time.Second
)

// Connect opens and pings the database and sizes the pool. For PostgreSQL a
// positive wait keeps retrying until the server answers or wait elapses.
func Connect(cfg Config, wait time.Duration) (*sqlx.DB, error) {
	ctx := context.Background()
	attrs := []slog.Attr{
		slog.String("event", "db.connect"),
		slog.String("db", cfg.Driver),
		slog.String("host", cfg.Host),
		slog.String("target", target(cfg)),
	}

	start := time.Now()
	db, attempts, err := open(cfg, wait)
	attrs = append(attrs,
		slog.Int("attempts", attempts),
		slog.Duration("duration", time.Since(start)),
	)
	if err != nil {
		attrs = append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))
		logger.DB.LogAttrs(ctx, slog.LevelError, "db connect failed", attrs...)
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	if cfg.Driver == coreconfig.DriverSQLite {
		// An in-memory database lives only as long as its connection.
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}
	attrs = append(attrs, slog.String("status", "ok"), slog.Int("count", cfg.MaxConnections))
	logger.DB.LogAttrs(ctx, slog.LevelInfo, "db connected", attrs...)
	return db, nil
}

func open(cfg Config, wait time.Duration) (*sqlx.DB, int, error) {
	deadline := time.Now().Add(wait)
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		db, err := sqlx.ConnectContext(ctx, cfg.Driver, DSN(cfg))
		cancel()
		if err == nil {
			return db, attempt, nil
		}
		if cfg.Driver != coreconfig.DriverPostgres || time.Now().Add(pollInterval).After(deadline) {
			return nil, attempt, err
		}
		logger.DB.LogAttrs(context.Background(), slog.LevelDebug, "db not ready",
			slog.String("event", "db.wait"),
			slog.Int("attempts", attempt),
			slog.String("err", err.Error()),
		)
		time.Sleep(pollInterval)
	}
}

func target(cfg Config) string {
	if cfg.Driver == coreconfig.DriverSQLite {
		return cfg.Path
	}
	return cfg.Name
}
