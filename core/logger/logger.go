// Package logger provides the process-wide structured loggers. Every
// component logs through its own *slog.Logger tagged with a component
// attribute; correlation data travels in the context (see Meta).
package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/pestbot/core/buildinfo"
	coreconfig "github.com/m3rciful/pestbot/core/config"
)

var (
	// L is the base logger. It falls back to slog.Default until InitLogger runs.
	L *slog.Logger

	DB, MIG, SEED                        *slog.Logger
	TG, TWire, Sender                    *slog.Logger
	SVCIntake, SVCOrders, SVCTechnicians *slog.Logger
	Notify, Session, HTTP                *slog.Logger
)

var components = []struct {
	dst  **slog.Logger
	name string
}{
	{&DB, "db"},
	{&MIG, "db.migrate"},
	{&SEED, "db.seed"},
	{&TG, "tg"},
	{&TWire, "tg.wire"},
	{&Sender, "tg.sender"},
	{&SVCIntake, "service.intake"},
	{&SVCOrders, "service.orders"},
	{&SVCTechnicians, "service.technicians"},
	{&Notify, "notify"},
	{&Session, "session"},
	{&HTTP, "http"},
}

var (
	initOnce sync.Once
	level    slog.LevelVar
	sampled  sampler
	traceAll bool

	closeMu sync.Mutex
	out     *sink
	files   []io.Closer
)

func init() {
	L = slog.Default()
	bindComponents()
}

func bindComponents() {
	for _, c := range components {
		*c.dst = L.With("component", c.name)
	}
}

// settings is the logging configuration after defaults are applied.
type settings struct {
	level   slog.Level
	format  logFormat
	order   []string
	num     int
	den     int
	profile string
	file    string
}

func newSettings(cfg *coreconfig.Config) settings {
	s := settings{format: formatJSON, order: defaultKeyOrder, num: 1, den: 50, profile: "prod"}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging
	s.level = parseLevel(lc.Level)
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}
	if keys := splitList(lc.KeysOrder); len(keys) > 0 && lc.KeysOrder != "default" {
		s.order = keys
	}
	if raw := strings.TrimSpace(lc.DebugSample); raw != "" {
		if num, den := parseRatio(raw); num > 0 && den > 0 {
			s.num, s.den = num, den
		} else if raw == "0" || raw == "0/0" {
			s.num, s.den = 0, 0
		}
	}
	if dir, file := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.File); dir != "" && file != "" {
		s.file = filepath.Join(dir, file)
	}
	return s
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// InitLogger configures the global structured logger. Calls after the first
// are no-ops.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		s := newSettings(cfg)
		level.Set(s.level)
		sampled.Set(s.num, s.den)
		traceAll = envFlag("TRACE") || envFlag("LOG_TRACE")

		writers := []io.Writer{os.Stdout}
		if s.file != "" {
			if f, err := openLogFile(s.file); err != nil {
				log.Printf("logger: %v", err)
			} else {
				writers = append(writers, f)
				files = append(files, f)
			}
		}
		out = newSink(writers, 64*1024)

		L = slog.New(newHandler(handlerOptions{level: &level, out: out, format: s.format, order: s.order}))
		slog.SetDefault(L)
		bindComponents()

		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("go_version", runtime.Version()),
			slog.String("build", buildinfo.String()),
			slog.String("cfg_profile", s.profile),
		)
	})
	return nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Shutdown flushes buffered output and closes the log files. It is safe to
// call more than once.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	var errs []error
	if out != nil {
		errs = append(errs, out.Flush(), out.Close())
		out = nil
	}
	for _, c := range files {
		errs = append(errs, c.Close())
	}
	files = nil
	return errors.Join(errs...)
}

// ShouldSampleDebug reports whether a high-volume debug event should be
// logged. TRACE=1 in the environment disables sampling.
func ShouldSampleDebug() bool {
	return traceAll || sampled.Allow()
}
