package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/pestbot/core/logger"
	tghelpers "github.com/m3rciful/pestbot/core/telegram/helpers"
	"github.com/m3rciful/pestbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

func summarize(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		tghelpers.Annotate(c, logger.Meta{Handler: name})
		err := h(c)

		replies := middleware.ReplyStats(c)
		level, status := slog.LevelInfo, "ok"
		attrs := []slog.Attr{
			slog.Int("replies", replies.Sent()),
			slog.Bool("kb", replies.Keyboard()),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			level, status = slog.LevelWarn, "fail"
			attrs = append(attrs,
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				slog.String("err_code", errCode(err)),
			)
		}
		attrs = append(attrs, slog.String("event", "handler.done"), slog.String("status", status), slog.String("outcome", status))
		// Handlers may annotate the context, so read it afterwards.
		logger.TG.LogAttrs(tghelpers.BuildContext(c), level, "handled", attrs...)
		return err
	}
}

func skip(c tele.Context, name string) error {
	ctx := tghelpers.Annotate(c, logger.Meta{Handler: name})
	logger.TG.LogAttrs(ctx, slog.LevelDebug, "ignored",
		slog.String("event", "handler.done"),
		slog.String("status", "skip"),
	)
	return nil
}

// errCode prefers a Code() method anywhere in the chain and falls back to
// the dynamic type name.
func errCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return strings.ToUpper(coded.Code())
	}
	name := fmt.Sprintf("%T", err)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToUpper(name)
}
