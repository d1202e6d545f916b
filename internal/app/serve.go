package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/pestbot/core/config"
	"github.com/m3rciful/pestbot/core/logger"
	coretelegram "github.com/m3rciful/pestbot/core/telegram"
	tghelpers "github.com/m3rciful/pestbot/core/telegram/helpers"
	"github.com/m3rciful/pestbot/core/telegram/sender"
	"github.com/m3rciful/pestbot/internal/adminapi"
	"github.com/m3rciful/pestbot/internal/clientbot"
	"github.com/m3rciful/pestbot/internal/notify"
	"github.com/m3rciful/pestbot/internal/service"
	"github.com/m3rciful/pestbot/internal/techbot"
)

// Serve runs both bots, the admin API and the session sweepers until ctx is
// done or one of them fails.
func Serve(ctx context.Context, cfg *coreconfig.Config) error {
	startedAt := time.Now()

	a, err := Open(ctx, cfg, OpenOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	clientTG, err := coretelegram.NewBot("client", cfg.ClientBot)
	if err != nil {
		return err
	}
	techTG, err := coretelegram.NewBot("technician", cfg.TechnicianBot)
	if err != nil {
		return err
	}

	disp := sender.NewDispatcher(sender.Options{MaxRetries: 3, RetryBackoff: 500 * time.Millisecond})
	defer disp.Close()
	tghelpers.SetDispatcher(disp)

	orders := service.NewOrders(a.Store, notify.New(techTG, clientTG, cfg.Telegram.AdminID, disp))

	sessions, err := OpenSessions(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer sessions.Close()

	client := clientbot.New(orders, sessions.Forms, cfg.Telegram.AdminID)
	clientReg, clientRoutes, err := client.Wire()
	if err != nil {
		return err
	}
	tech := techbot.New(orders, a.Technicians, sessions.Dialogues)
	techReg, techRoutes, err := tech.Wire()
	if err != nil {
		return err
	}

	limited := func(c tele.Context) error {
		return tghelpers.SendText(c, "Too many messages, please slow down.")
	}
	ready := func(ctx context.Context, name string) error {
		logger.L.LogAttrs(ctx, slog.LevelInfo, "bot ready",
			slog.String("component", "app"),
			slog.String("event", "ready"),
			slog.String("bot", name),
			slog.Duration("startup_duration", time.Since(startedAt)),
		)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return coretelegram.RunTelegram(gctx, coretelegram.RunOptions{
			Name:        "client",
			Config:      cfg.ClientBot,
			Bot:         clientTG,
			Registry:    clientReg,
			Middlewares: coretelegram.DefaultMiddlewares("client", cfg.RateLimit, limited),
			Routes:      clientRoutes,
			OnStart:     ready,
		})
	})
	g.Go(func() error {
		return coretelegram.RunTelegram(gctx, coretelegram.RunOptions{
			Name:        "technician",
			Config:      cfg.TechnicianBot,
			Bot:         techTG,
			Registry:    techReg,
			Middlewares: coretelegram.DefaultMiddlewares("technician", cfg.RateLimit, limited),
			Routes:      techRoutes,
			OnStart:     ready,
		})
	})
	if cfg.HTTP.Listen != "" {
		engine := adminapi.NewHandler(orders, a.Technicians).Router(cfg.HTTP.APIToken)
		g.Go(func() error { return adminapi.Serve(gctx, cfg.HTTP.Listen, engine) })
	}
	for _, sweep := range sessions.Sweepers {
		g.Go(func() error { return sweep(gctx) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
