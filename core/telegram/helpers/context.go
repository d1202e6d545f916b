// Package helpers holds the per-update plumbing shared by handlers: the log
// context of an update and outbound message helpers.
package helpers

import (
	"context"

	"github.com/m3rciful/pestbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	ctxKey = "log.ctx"
	botKey = "log.bot"
)

// TagBot records which bot received the update. Call it before the first
// BuildContext of the update.
func TagBot(c tele.Context, name string) {
	c.Set(botKey, name)
}

// BuildContext returns the context of the current update, creating and
// caching it on first use. It carries the correlation Meta used by every
// logger and is detached from the poller, so it is never cancelled.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(ctxKey).(context.Context); ok {
		return ctx
	}
	m := logger.Meta{UpdateID: c.Update().ID}
	m.Bot, _ = c.Get(botKey).(string)
	if u := c.Sender(); u != nil {
		m.UserID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		m.ChatID = ch.ID
	}
	m.RID = logger.BuildRID(m.UpdateID, m.ChatID, m.UserID)
	ctx := logger.WithMeta(context.Background(), m)
	c.Set(ctxKey, ctx)
	return ctx
}

// Annotate merges m into the context of the current update and returns it.
func Annotate(c tele.Context, m logger.Meta) context.Context {
	ctx := logger.WithMeta(BuildContext(c), m)
	c.Set(ctxKey, ctx)
	return ctx
}
