package logger

import (
	"log/slog"
	"strings"
)

// outcomeValues is the closed outcome vocabulary; other values are dropped.
// Status values pass through lowercased.
var outcomeValues = vocabulary("ok", "fail", "skip", "cancelled", "rate_limited")

func vocabulary(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// defaultKeyOrder leads every line; other keys follow alphabetically.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"bot",
	"trace_id",
	"span_id",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"order",
	"technician_id",
	"client_id",
	"step",
	"role",
	"op",
	"cb_key",
	"outcome",
	"duration_ms",
	"count",
	"method",
	"path",
	"code",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"db",
	"host",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
}
