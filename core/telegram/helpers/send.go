package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/m3rciful/pestbot/core/logger"
	"github.com/m3rciful/pestbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// pushTimeout bounds how long a reply waits for room behind earlier replies
// to the same chat before it is sent inline.
const pushTimeout = 5 * time.Second

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes replies through d. With no dispatcher replies are
// sent inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// SendText replies with plain text.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var o *tele.SendOptions
	if len(opts) > 0 && opts[0] != nil {
		o = opts[0]
	}
	return deliver(c, "reply.text", func() error {
		if o == nil {
			return c.Send(text)
		}
		return c.Send(text, o)
	})
}

// SendMDV2 replies with MarkdownV2 text and an optional keyboard.
func SendMDV2(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	o := &tele.SendOptions{ParseMode: tele.ModeMarkdownV2}
	if len(markup) > 0 {
		o.ReplyMarkup = markup[0]
	}
	return SendText(c, text, o)
}

func deliver(c tele.Context, action string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	var chat int64
	if ch := c.Chat(); ch != nil {
		chat = ch.ID
	}
	err := d.Push(ctx, chat, action, run, pushTimeout)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Sender.LogAttrs(ctx, slog.LevelWarn, "queue unavailable, sending inline",
			slog.String("event", "send.inline"),
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}
