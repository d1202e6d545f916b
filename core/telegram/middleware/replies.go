package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const repliesKey = "replies"

// Replies counts what a handler sent back. Sends may complete on dispatcher
// workers, so the fields are atomic.
type Replies struct {
	sent     atomic.Int32
	keyboard atomic.Bool
}

// Sent returns the number of delivered replies.
func (r *Replies) Sent() int { return int(r.sent.Load()) }

// Keyboard reports whether any reply carried a keyboard.
func (r *Replies) Keyboard() bool { return r.keyboard.Load() }

func (r *Replies) count(err error, opts []any) error {
	if err != nil {
		return err
	}
	r.sent.Add(1)
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				r.keyboard.Store(true)
			}
		case *tele.ReplyMarkup:
			if v != nil {
				r.keyboard.Store(true)
			}
		}
	}
	return nil
}

type countingContext struct {
	tele.Context
	r *Replies
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.r.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.r.count(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what any, opts ...any) error {
	return c.r.count(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.r.count(c.Context.EditOrSend(what, opts...), opts)
}

// CountReplies makes ReplyStats available to the handler chain.
func CountReplies(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		r := &Replies{}
		c.Set(repliesKey, r)
		return next(countingContext{Context: c, r: r})
	}
}

// ReplyStats returns the counters of the current update, or an empty set
// when CountReplies is not installed.
func ReplyStats(c tele.Context) *Replies {
	if r, ok := c.Get(repliesKey).(*Replies); ok {
		return r
	}
	return &Replies{}
}
