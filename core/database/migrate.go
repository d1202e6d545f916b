package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	migsqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/pestbot/core/config"
	"github.com/m3rciful/pestbot/core/logger"
	"github.com/m3rciful/pestbot/migrations"
)

// RunMigrations brings the schema for cfg.Driver up to the newest embedded
// version. SQLite migrates through db itself so ":memory:" sees the tables.
func RunMigrations(cfg Config, db *sqlx.DB) error {
	ctx := context.Background()
	ups := upFiles(migrations.FS, cfg.Driver)
	logger.MIG.LogAttrs(ctx, slog.LevelDebug, "migrations resolved",
		slog.String("event", "db.migrate.resolve"),
		slog.String("db", cfg.Driver),
		slog.Int("count", len(ups)),
		slog.String("files", logger.Preview(ups, 6)),
	)

	m, err := migrator(cfg, db)
	if err != nil {
		logger.MIG.LogAttrs(ctx, slog.LevelError, "migrator init failed",
			slog.String("event", "db.migrate"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("database: init migrations: %w", err)
	}

	from := version(m)
	start := time.Now()
	err = m.Up()
	took := time.Since(start)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.MIG.LogAttrs(ctx, slog.LevelError, "migration failed",
			slog.String("event", "db.migrate"),
			slog.String("status", "fail"),
			slog.Uint64("from_ver", from),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("database: apply migrations: %w", err)
	}

	to := version(m)
	applied := between(ups, from, to)
	logger.MIG.LogAttrs(ctx, slog.LevelInfo, "schema ready",
		slog.String("event", "db.migrate"),
		slog.String("status", "ok"),
		slog.Uint64("from_ver", from),
		slog.Uint64("to_ver", to),
		slog.Int("count", len(applied)),
		slog.String("files", logger.Preview(applied, 6)),
		slog.Duration("duration", took),
	)
	return nil
}

// migrator is never closed: with WithInstance that would close db as well.
func migrator(cfg Config, db *sqlx.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	switch cfg.Driver {
	case coreconfig.DriverSQLite:
		drv, err := migsqlite.WithInstance(db.DB, &migsqlite.Config{})
		if err != nil {
			return nil, err
		}
		return migrate.NewWithInstance("iofs", src, coreconfig.DriverSQLite, drv)
	case coreconfig.DriverPostgres:
		return migrate.NewWithSourceInstance("iofs", src, postgresURL(cfg))
	}
	return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
}

// version reports the current schema version; zero when none is recorded.
func version(m *migrate.Migrate) uint64 {
	v, _, err := m.Version()
	if err != nil {
		return 0
	}
	return uint64(v)
}

// upFiles lists the sorted *.up.sql names under dir.
func upFiles(fsys fs.FS, dir string) []string {
	names, _ := fs.Glob(fsys, path.Join(dir, "*.up.sql"))
	for i, n := range names {
		names[i] = path.Base(n)
	}
	sort.Strings(names)
	return names
}

// between keeps the files whose numeric prefix lies in (from, to].
func between(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err == nil && v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
