// Package app wires configuration, storage, services and transports into the
// running system.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pestbot/core/bootstrap"
	coreconfig "github.com/m3rciful/pestbot/core/config"
	"github.com/m3rciful/pestbot/core/logger"
	coretelegram "github.com/m3rciful/pestbot/core/telegram"
	"github.com/m3rciful/pestbot/internal/notify"
	"github.com/m3rciful/pestbot/internal/service"
	"github.com/m3rciful/pestbot/internal/storage"
)

// App holds the infrastructure shared by the server and one-shot commands.
type App struct {
	Config      *coreconfig.Config
	DB          *sqlx.DB
	Store       *storage.Store
	Technicians *service.Technicians
	Orders      *service.Orders
}

// OpenOptions tweak Open; the zero value is what the server uses.
type OpenOptions struct {
	// Bootstrap overrides individual pipeline steps, mostly in tests.
	Bootstrap bootstrap.Options
	// Notifier receives order events; nil keeps them silent.
	Notifier service.Notifier
}

// Open initializes logging, connects and migrates the database, registers the
// configured seed technicians and builds the services.
func Open(ctx context.Context, cfg *coreconfig.Config, opts OpenOptions) (*App, error) {
	bo := opts.Bootstrap
	bo.Config = cfg
	bo.Modules.Seeders = append(bo.Modules.Seeders, technicianSeeder(cfg))
	res, err := bootstrap.Run(ctx, bo)
	if err != nil {
		return nil, err
	}
	store := storage.New(res.DB, cfg.Database.Driver)
	return &App{
		Config:      cfg,
		DB:          res.DB,
		Store:       store,
		Technicians: service.NewTechnicians(store),
		Orders:      service.NewOrders(store, opts.Notifier),
	}, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func technicianSeeder(cfg *coreconfig.Config) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
		if len(cfg.Seed.Technicians) == 0 {
			return nil
		}
		seeds := make([]service.SeedTechnician, 0, len(cfg.Seed.Technicians))
		for _, t := range cfg.Seed.Technicians {
			seeds = append(seeds, service.SeedTechnician{Name: t.Name, Contact: t.Contact, Credential: t.Credential})
		}
		techs := service.NewTechnicians(storage.New(db, cfg.Database.Driver))
		n, err := techs.Seed(ctx, seeds)
		if err != nil {
			return fmt.Errorf("seed technicians: %w", err)
		}
		logger.SEED.InfoContext(ctx, "technicians seeded",
			slog.String("event", "seed.technicians"),
			slog.Int("created", n),
			slog.Int("configured", len(seeds)),
		)
		return nil
	})
}

// OfflineNotifier builds a synchronous notifier on send-only bots for
// commands that change orders outside the running server.
func OfflineNotifier(cfg *coreconfig.Config) (*notify.Notifier, error) {
	techBot, err := coretelegram.NewOfflineBot(cfg.TechnicianBot.Token)
	if err != nil {
		return nil, err
	}
	clientBot, err := coretelegram.NewOfflineBot(cfg.ClientBot.Token)
	if err != nil {
		return nil, err
	}
	return notify.New(techBot, clientBot, cfg.Telegram.AdminID, nil), nil
}
