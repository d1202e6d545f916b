package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	coreconfig "github.com/m3rciful/pestbot/core/config"
	"github.com/m3rciful/pestbot/core/logger"
	"github.com/m3rciful/pestbot/core/telegram/state"
	"github.com/m3rciful/pestbot/internal/intake"
	"github.com/m3rciful/pestbot/internal/lifecycle"
)

const redisPrefix = "pestbot:session:"

// Sessions bundles the conversation stores of both bots.
type Sessions struct {
	Forms     state.Store[*intake.Form]
	Dialogues state.Store[*lifecycle.Dialogue]

	// Sweepers run until ctx is done; only the memory backend needs them.
	Sweepers []func(ctx context.Context) error
	close    func() error
}

// Close releases the backend connection, if any.
func (s *Sessions) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenSessions builds the conversation stores selected by cfg.
func OpenSessions(ctx context.Context, cfg coreconfig.SessionConfig) (*Sessions, error) {
	switch cfg.Backend {
	case coreconfig.SessionRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPass,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("session redis %s: %w", cfg.RedisAddr, err)
		}
		logger.Session.Info("session backend ready",
			slog.String("event", "session.open"),
			slog.String("backend", coreconfig.SessionRedis),
			slog.String("addr", cfg.RedisAddr),
		)
		return &Sessions{
			Forms:     state.NewRedis[*intake.Form](client, redisPrefix, cfg.IdleTimeout),
			Dialogues: state.NewRedis[*lifecycle.Dialogue](client, redisPrefix, cfg.IdleTimeout),
			close:     client.Close,
		}, nil
	default:
		forms := state.NewMemory[*intake.Form](cfg.IdleTimeout)
		dialogues := state.NewMemory[*lifecycle.Dialogue](cfg.IdleTimeout)
		logger.Session.Info("session backend ready",
			slog.String("event", "session.open"),
			slog.String("backend", coreconfig.SessionMemory),
			slog.Duration("idle_timeout", cfg.IdleTimeout),
		)
		return &Sessions{
			Forms:     forms,
			Dialogues: dialogues,
			Sweepers:  []func(context.Context) error{forms.Run, dialogues.Run},
		}, nil
	}
}
