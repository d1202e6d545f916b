package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/pestbot/core/logger"
	tghelpers "github.com/m3rciful/pestbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures RateLimit.
type RateLimitOptions struct {
	// Interval is the minimum gap between two updates of one user.
	Interval time.Duration
	// Skip lists update kinds (see UpdateKind) exempt from limiting.
	Skip      map[string]bool
	OnLimited tele.HandlerFunc
}

type limiter struct {
	interval time.Duration
	mu       sync.Mutex
	last     map[int64]time.Time
	swept    time.Time
}

// allow records a hit of user at now and reports whether it passes.
func (l *limiter) allow(user int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.swept) > time.Minute {
		for id, at := range l.last {
			if now.Sub(at) >= l.interval {
				delete(l.last, id)
			}
		}
		l.swept = now
	}
	if at, ok := l.last[user]; ok && now.Sub(at) < l.interval {
		return false
	}
	l.last[user] = now
	return true
}

// RateLimit drops updates arriving faster than opts.Interval per user.
func RateLimit(opts RateLimitOptions) tele.MiddlewareFunc {
	l := &limiter{interval: opts.Interval, last: map[int64]time.Time{}}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			u := c.Sender()
			kind := UpdateKind(c.Update())
			if u == nil || opts.Interval <= 0 || opts.Skip[kind] || l.allow(u.ID, time.Now()) {
				return next(c)
			}
			logger.TG.LogAttrs(tghelpers.BuildContext(c), slog.LevelWarn, "rate limited",
				slog.String("event", "update.limited"),
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				return opts.OnLimited(c)
			}
			return nil
		}
	}
}
