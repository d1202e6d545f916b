package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/pestbot/core/logger"
	tghelpers "github.com/m3rciful/pestbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Recover turns a handler panic into a logged error so one bad update does
// not stop the poller.
func Recover(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.TG.LogAttrs(tghelpers.BuildContext(c), slog.LevelError, "handler panic",
				slog.String("event", "handler.panic"),
				slog.String("status", "fail"),
				slog.String("err", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
			err = nil
		}()
		return next(c)
	}
}
