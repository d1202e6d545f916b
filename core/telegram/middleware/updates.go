// Package middleware holds the telebot middlewares every bot runs.
package middleware

import (
	"log/slog"

	"github.com/m3rciful/pestbot/core/logger"
	"github.com/m3rciful/pestbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/pestbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Updates opens the log context of each update received by bot and logs a
// sample of the receipts at debug level.
func Updates(bot string) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			tghelpers.TagBot(c, bot)
			ctx := tghelpers.BuildContext(c)
			if logger.ShouldSampleDebug() {
				logger.TG.LogAttrs(ctx, slog.LevelDebug, "update received", receipt(c)...)
			}
			return next(c)
		}
	}
}

func receipt(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("event", "update.received"),
		slog.String("kind", UpdateKind(c.Update())),
	}
	if u := c.Sender(); u != nil && u.Username != "" {
		attrs = append(attrs, slog.String("username", logger.SanitizeLimit(u.Username, 64)))
	}
	if cb := c.Callback(); cb != nil {
		unique, payload := callbacks.Split(cb)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(unique, 64)),
			slog.String("payload", logger.SanitizeLimit(payload, 128)),
		)
	} else if text := c.Text(); text != "" {
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(text, 128)))
	}
	return attrs
}

// UpdateKind names the kind of u as used by the rate limit exclusions.
func UpdateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return "callback"
	case u.Message != nil:
		return "message"
	case u.Query != nil:
		return "inline_query"
	}
	return "other"
}
