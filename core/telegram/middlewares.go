package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/pestbot/core/config"
	"github.com/m3rciful/pestbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares returns a fresh chain for the bot called name. Build
// one per bot: the rate limiter state lives in the chain.
func DefaultMiddlewares(name string, cfg coreconfig.RateLimitConfig, onLimited tele.HandlerFunc) []tele.MiddlewareFunc {
	chain := []tele.MiddlewareFunc{middleware.Updates(name), middleware.Recover}
	if cfg.IntervalMS > 0 {
		skip := make(map[string]bool, len(cfg.ExcludeUpdates))
		for _, kind := range cfg.ExcludeUpdates {
			skip[strings.ToLower(strings.TrimSpace(kind))] = true
		}
		chain = append(chain, middleware.RateLimit(middleware.RateLimitOptions{
			Interval:  time.Duration(cfg.IntervalMS) * time.Millisecond,
			Skip:      skip,
			OnLimited: onLimited,
		}))
	}
	return append(chain, middleware.CountReplies)
}
