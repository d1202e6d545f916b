// Package telegram runs Telegram bots: building the telebot instance, its
// command registry and the update loop.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/pestbot/core/config"
	"github.com/m3rciful/pestbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Route binds a handler to a telebot endpoint such as tele.OnText or "/start".
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions describes one bot for RunTelegram.
type RunOptions struct {
	// Name tags every log line of this bot, e.g. "client".
	Name     string
	Config   coreconfig.BotConfig
	Bot      *tele.Bot
	Registry *Registry

	Middlewares []tele.MiddlewareFunc
	Routes      []Route

	// OnStart runs after wiring, right before updates are consumed.
	OnStart func(ctx context.Context, name string) error
}

func newPoller(cfg coreconfig.BotConfig) tele.Poller {
	if strings.EqualFold(cfg.RunMode, coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	timeout := 10 * time.Second
	if cfg.LongPollTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.LongPollTimeoutSeconds) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout}
}

// NewBot builds the bot for cfg without consuming updates, so it can send
// notifications before RunTelegram starts it.
func NewBot(name string, cfg coreconfig.BotConfig) (*tele.Bot, error) {
	start := time.Now()
	poller := newPoller(cfg)
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token, Poller: poller, Client: BuildHTTPClient()})
	if err != nil {
		return nil, fmt.Errorf("telegram: %s bot: %w", name, err)
	}

	attrs := []slog.Attr{
		slog.String("event", "mode"),
		slog.String("bot", name),
		slog.Duration("duration", time.Since(start)),
	}
	if wh, ok := poller.(*tele.Webhook); ok {
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", wh.Listen),
			slog.String("public_url", wh.Endpoint.PublicURL),
		)
	} else {
		attrs = append(attrs, slog.String("mode", coreconfig.RunModeLongpoll))
	}
	logger.TG.LogAttrs(context.Background(), slog.LevelInfo, "bot created", attrs...)
	return bot, nil
}

// NewOfflineBot builds a send-only bot. It skips getMe and never polls, so
// one-shot commands can deliver notifications without a running bot.
func NewOfflineBot(token string) (*tele.Bot, error) {
	bot, err := tele.NewBot(tele.Settings{Token: token, Offline: true, Client: BuildHTTPClient()})
	if err != nil {
		return nil, fmt.Errorf("telegram: offline bot: %w", err)
	}
	return bot, nil
}

// RunTelegram wires opts into the bot and consumes updates until ctx is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	bot := opts.Bot
	if bot == nil {
		var err error
		if bot, err = NewBot(opts.Name, opts.Config); err != nil {
			return err
		}
	}
	log := logger.TWire.With("bot", opts.Name)

	if !strings.EqualFold(opts.Config.RunMode, coreconfig.RunModeWebhook) {
		// A webhook left over from an earlier deployment blocks getUpdates.
		if err := bot.RemoveWebhook(); err != nil {
			log.Warn("webhook removal failed", slog.String("event", "webhook.remove"), slog.String("status", "fail"), slog.String("err", err.Error()))
		}
	}

	bot.Use(opts.Middlewares...)
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	if opts.Registry != nil {
		menu := opts.Registry.Menu()
		if err := bot.SetCommands(menu); err != nil {
			log.Error("command menu not set", slog.String("event", "commands.set"), slog.String("status", "fail"), slog.String("err", err.Error()))
		}
		log.Info("wired",
			slog.String("event", "wire"),
			slog.String("status", "ok"),
			slog.Int("routes", len(opts.Routes)),
			slog.Int("count", len(menu)),
		)
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, opts.Name); err != nil {
			return err
		}
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-stopped
	case <-stopped:
	}
	return nil
}
