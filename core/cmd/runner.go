package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/pestbot/core/config"
	"github.com/m3rciful/pestbot/core/logger"
)

// DefaultConfigEnvVar names the variable consulted for the config path.
const DefaultConfigEnvVar = "CONFIG_PATH"

// Options describe how to load configuration and run the long-lived process.
type Options struct {
	// ConfigPath wins over the environment when set, e.g. from a flag.
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (*coreconfig.Config, error)
	Serve      func(ctx context.Context, cfg *coreconfig.Config) error

	ShutdownLogger func() error
}

// ResolveConfigPath picks the explicit path, then the env variable, then fallback.
func ResolveConfigPath(explicit, envVar, fallback string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if envVar == "" {
		envVar = DefaultConfigEnvVar
	}
	if p := os.Getenv(envVar); p != "" {
		return p, nil
	}
	if fallback == "" {
		return "", fmt.Errorf("cmd: config path not provided via flag, %s or default", envVar)
	}
	return fallback, nil
}

// Load resolves the config path from opts and loads it.
func Load(opts Options) (*coreconfig.Config, error) {
	path, err := ResolveConfigPath(opts.ConfigPath, opts.ConfigEnvVar, opts.DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	load := opts.LoadConfig
	if load == nil {
		load = coreconfig.Load
	}
	log.Printf("loading config: %s", path)
	cfg, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("cmd: failed to load config: %w", err)
	}
	return cfg, nil
}

// Run loads configuration and runs Serve until SIGINT or SIGTERM arrives.
func Run(ctx context.Context, opts Options) error {
	if opts.Serve == nil {
		return fmt.Errorf("cmd: Serve is required")
	}
	cfg, err := Load(opts)
	if err != nil {
		return err
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startedAt := time.Now()
	err = opts.Serve(ctx, cfg)
	logger.L.With("component", "app").Info("shutting down...",
		slog.String("event", "shutdown"),
		slog.Duration("uptime", logger.RoundMS(time.Since(startedAt))),
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
