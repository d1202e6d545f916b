package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/pestbot/core/cmd"
	"github.com/m3rciful/pestbot/internal/app"
)

// ServeCmd runs both bots and the admin API until interrupted.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bots and the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := configOptions(cmd)
			opts.Serve = app.Serve
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return corecmd.Run(ctx, opts)
		},
	}
}

// MigrateCmd applies pending migrations and the configured seed data.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed technicians",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
				fmt.Fprintf(cmd.OutOrStdout(), "%s Database is up to date (%s)\n", okMark, a.Config.Database.Driver)
				return nil
			})
		},
	}
}
