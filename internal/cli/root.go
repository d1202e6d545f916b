// Package cli holds the pestbot command tree.
package cli

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/m3rciful/pestbot/core/bootstrap"
	"github.com/m3rciful/pestbot/core/buildinfo"
	corecmd "github.com/m3rciful/pestbot/core/cmd"
	coreconfig "github.com/m3rciful/pestbot/core/config"
	"github.com/m3rciful/pestbot/core/logger"
	"github.com/m3rciful/pestbot/internal/app"
)

// DefaultConfigPath is used when neither --config nor CONFIG_PATH is set.
const DefaultConfigPath = "config.yaml"

// Overridden in tests.
var (
	bootstrapOptions = bootstrap.Options{}
	shutdownLogger   = logger.Shutdown
	loadConfig       = coreconfig.Load
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	warnMark = color.New(color.FgYellow).Sprint("!")
)

// RootCmd builds the pestbot command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "pestbot",
		Short:   "Pest-control request coordination over Telegram",
		Version: buildinfo.String(),
		Long: `pestbot runs the client and technician Telegram bots, assigns incoming
requests to technicians and exposes an admin API.

One-shot commands operate on the same database as the server.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "config file (default $CONFIG_PATH or "+DefaultConfigPath+")")

	root.AddCommand(ServeCmd())
	root.AddCommand(MigrateCmd())
	root.AddCommand(TechnicianCmd())
	root.AddCommand(OrdersCmd())
	root.AddCommand(VersionCmd())
	return root
}

func configOptions(cmd *cobra.Command) corecmd.Options {
	path, _ := cmd.Flags().GetString("config")
	return corecmd.Options{
		ConfigPath:        path,
		DefaultConfigPath: DefaultConfigPath,
		LoadConfig:        loadConfig,
		ShutdownLogger:    shutdownLogger,
	}
}

// prepareFunc derives app options from the loaded config.
type prepareFunc func(cfg *coreconfig.Config) (app.OpenOptions, error)

// withApp opens the database for a one-shot command and closes it afterwards.
// Log output is limited to warnings unless debug logging is configured.
func withApp(cmd *cobra.Command, prepare prepareFunc, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := corecmd.Load(configOptions(cmd))
	if err != nil {
		return err
	}
	if !strings.EqualFold(cfg.Logging.Level, "debug") {
		cfg.Logging.Level = "warn"
	}
	var opts app.OpenOptions
	if prepare != nil {
		if opts, err = prepare(cfg); err != nil {
			return err
		}
	}
	opts.Bootstrap = bootstrapOptions
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Open(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()
	return fn(ctx, a)
}

// VersionCmd prints build information.
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pestbot %s\n", buildinfo.String())
		},
	}
}
