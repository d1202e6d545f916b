package middleware

import (
	"log/slog"

	"github.com/m3rciful/pestbot/core/logger"
	tghelpers "github.com/m3rciful/pestbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOnly passes updates of the administrator and hands the rest to
// onReject. A zero adminID rejects everyone.
func AdminOnly(adminID int64, onReject tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if u := c.Sender(); adminID != 0 && u != nil && u.ID == adminID {
				return next(c)
			}
			logger.TG.LogAttrs(tghelpers.BuildContext(c), slog.LevelWarn, "admin command rejected",
				slog.String("event", "access.denied"),
				slog.String("status", "skip"),
			)
			if onReject != nil {
				return onReject(c)
			}
			return nil
		}
	}
}
