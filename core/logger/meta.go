package logger

import (
	"context"
	"strconv"
	"strings"
)

type metaKey struct{}

// Meta is the correlation data attached to every record logged with ctx.
type Meta struct {
	RID     string
	TraceID string
	SpanID  string
	// Bot names the Telegram bot that received the update.
	Bot      string
	Handler  string
	UpdateID int
	UserID   int64
	ChatID   int64
	// Order is the order code the request operates on.
	Order        string
	TechnicianID int64
}

// WithMeta returns ctx carrying the existing Meta overlaid with the non-zero
// fields of m.
func WithMeta(ctx context.Context, m Meta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, metaKey{}, MetaFrom(ctx).merge(m))
}

// MetaFrom returns the Meta stored in ctx, or the zero value.
func MetaFrom(ctx context.Context) Meta {
	if ctx == nil {
		return Meta{}
	}
	m, _ := ctx.Value(metaKey{}).(Meta)
	return m
}

func (m Meta) merge(o Meta) Meta {
	setString(&m.RID, o.RID)
	setString(&m.TraceID, o.TraceID)
	setString(&m.SpanID, o.SpanID)
	setString(&m.Bot, o.Bot)
	setString(&m.Handler, o.Handler)
	setString(&m.Order, o.Order)
	if o.UpdateID != 0 {
		m.UpdateID = o.UpdateID
	}
	if o.UserID != 0 {
		m.UserID = o.UserID
	}
	if o.ChatID != 0 {
		m.ChatID = o.ChatID
	}
	if o.TechnicianID != 0 {
		m.TechnicianID = o.TechnicianID
	}
	return m
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// each calls fn for every populated field, using log keys.
func (m Meta) each(fn func(key string, val any)) {
	for _, f := range []struct {
		key string
		val any
		set bool
	}{
		{"rid", m.RID, m.RID != ""},
		{"trace_id", m.TraceID, m.TraceID != ""},
		{"span_id", m.SpanID, m.SpanID != ""},
		{"bot", m.Bot, m.Bot != ""},
		{"update_id", int64(m.UpdateID), m.UpdateID != 0},
		{"user_id", m.UserID, m.UserID != 0},
		{"chat_id", m.ChatID, m.ChatID != 0},
		{"handler", m.Handler, m.Handler != ""},
		{"order", m.Order, m.Order != ""},
		{"technician_id", m.TechnicianID, m.TechnicianID != 0},
	} {
		if f.set {
			fn(f.key, f.val)
		}
	}
}

// BuildRID derives a short correlation id from a Telegram update: the
// update, chat and user ids in base36, joined by dots.
func BuildRID(updateID int, chatID, userID int64) string {
	parts := []string{
		strconv.FormatInt(int64(updateID), 36),
		strconv.FormatInt(chatID, 36),
		strconv.FormatInt(userID, 36),
	}
	return strings.Join(parts, ".")
}
