package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/pestbot/core/config"
	coredatabase "github.com/m3rciful/pestbot/core/database"
	"github.com/m3rciful/pestbot/core/logger"
)

// DefaultWaitTimeout bounds how long Run waits for PostgreSQL to come up.
const DefaultWaitTimeout = 30 * time.Second

// Options control the bootstrap pipeline shared by the server and the CLI.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(cfg coredatabase.Config, wait time.Duration) (*sqlx.DB, error)
	Migrate    func(cfg coredatabase.Config, db *sqlx.DB) error

	// WaitTimeout of zero uses DefaultWaitTimeout; negative disables waiting.
	WaitTimeout time.Duration
	// SkipMigrations leaves the schema untouched.
	SkipMigrations bool

	Modules Modules
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger, connects to the database, applies migrations and
// runs the seeders in order. The connection is closed on any failure.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	wait := opts.WaitTimeout
	switch {
	case wait == 0:
		wait = DefaultWaitTimeout
	case wait < 0:
		wait = 0
	}
	db, err := connect(opts.Config.Database, wait)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	if !opts.SkipMigrations {
		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(opts.Config.Database, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	}

	for i, s := range opts.Modules.Seeders {
		if err := s.Seed(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: seeder %d failed: %w", i, err)
		}
	}
	if n := len(opts.Modules.Seeders); n > 0 {
		logger.SEED.Debug("seeders applied",
			slog.String("event", "seed.done"),
			slog.Int("count", n),
		)
	}

	return &Result{DB: db}, nil
}
