// Package router turns a bot's Registry and conversation into telebot routes.
// Every route logs one summary line per handled update.
package router

import (
	"strings"

	tg "github.com/m3rciful/pestbot/core/telegram"
	"github.com/m3rciful/pestbot/core/telegram/callbacks"
	"github.com/m3rciful/pestbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation receives free input while the sender has a dialogue open.
type Conversation interface {
	Active(c tele.Context) bool
	Handle(c tele.Context) error
}

// Options configures Routes.
type Options struct {
	// AdminID gates AdminOnly commands; OnAdminReject answers everyone else.
	AdminID       int64
	OnAdminReject tele.HandlerFunc
	// Idle answers text and contacts sent outside a dialogue.
	Idle tele.HandlerFunc
}

type table struct {
	reg      *tg.Registry
	conv     Conversation
	idle     tele.HandlerFunc
	commands map[string]tele.HandlerFunc
}

// Routes returns the command, text, contact and callback routes of a bot.
func Routes(reg *tg.Registry, conv Conversation, opts Options) []tg.Route {
	t := &table{reg: reg, conv: conv, idle: opts.Idle, commands: map[string]tele.HandlerFunc{}}
	var routes []tg.Route
	for _, name := range reg.Names() {
		_, cmd, _ := reg.Lookup(name)
		h := cmd.Handler
		if cmd.AdminOnly {
			h = middleware.AdminOnly(opts.AdminID, opts.OnAdminReject)(h)
		}
		t.commands[name] = h
		routes = append(routes, tg.Route{Endpoint: name, Handler: summarize(strings.TrimPrefix(name, "/"), h)})
	}
	return append(routes,
		tg.Route{Endpoint: tele.OnText, Handler: t.text},
		tg.Route{Endpoint: tele.OnContact, Handler: t.contact},
		tg.Route{Endpoint: tele.OnCallback, Handler: t.callback},
	)
}

// text resolves aliases such as /stop, then feeds the open dialogue.
func (t *table) text(c tele.Context) error {
	if text := strings.TrimSpace(c.Text()); strings.HasPrefix(text, "/") {
		if name, _, ok := t.reg.Lookup(text); ok {
			return summarize(strings.TrimPrefix(name, "/"), t.commands[name])(c)
		}
	}
	return t.input(c, "conversation")
}

func (t *table) contact(c tele.Context) error {
	return t.input(c, "conversation.contact")
}

func (t *table) input(c tele.Context, name string) error {
	if t.conv != nil && t.conv.Active(c) {
		return summarize(name, t.conv.Handle)(c)
	}
	if t.idle != nil {
		return summarize("idle", t.idle)(c)
	}
	return skip(c, "idle")
}

func (t *table) callback(c tele.Context) error {
	unique := callbacks.Unique(c)
	h, _ := t.reg.CallbackHandler(unique)
	_ = c.Respond()
	return summarize("callback."+unique, h)(c)
}
