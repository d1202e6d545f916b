package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	coreconfig "github.com/m3rciful/pestbot/core/config"
	"github.com/m3rciful/pestbot/core/telegram/format"
	"github.com/m3rciful/pestbot/internal/app"
	"github.com/m3rciful/pestbot/internal/domain"
	"github.com/m3rciful/pestbot/internal/intake"
)

// OrdersCmd groups order inspection and completion commands.
func OrdersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orders",
		Aliases: []string{"order"},
		Short:   "Inspect and complete orders",
	}
	cmd.AddCommand(ordersListCmd())
	cmd.AddCommand(ordersShowCmd())
	cmd.AddCommand(ordersStatsCmd())
	cmd.AddCommand(ordersCompleteCmd())
	return cmd
}

func ordersListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			techID, _ := cmd.Flags().GetInt64("technician")
			status, _ := cmd.Flags().GetString("status")
			f := domain.OrderFilter{TechnicianID: techID, Status: domain.OrderStatus(strings.TrimSpace(status))}
			return withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
				orders, err := a.Orders.List(ctx, f)
				if err != nil {
					return fmt.Errorf("failed to list orders: %w", err)
				}
				if len(orders) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%s No orders found\n", warnMark)
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CODE\tSTATUS\tCLIENT\tPHONE\tTECHNICIAN\tCREATED")
				for _, o := range orders {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						o.Code, o.Status, o.ClientName, o.ClientPhone,
						format.StrOr(o.TechnicianName, "-"), o.CreatedAt.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().Int64("technician", 0, "only orders of this technician id")
	cmd.Flags().String("status", "", "only orders in this status (new, in_progress, declined, done)")
	return cmd
}

func ordersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [code]",
		Short: "Show a single order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
				o, err := a.Orders.Order(ctx, strings.ToUpper(args[0]))
				if err != nil {
					return fmt.Errorf("failed to load order %s: %w", args[0], err)
				}
				printOrder(cmd.OutOrStdout(), o)
				return nil
			})
		},
	}
}

func printOrder(out io.Writer, o domain.OrderView) {
	fmt.Fprintf(out, "Order %s (%s)\n", o.Code, o.Status)
	fmt.Fprintf(out, "  Client:     %s, %s\n", o.ClientName, o.ClientPhone)
	fmt.Fprintf(out, "  Address:    %s\n", o.ClientAddress)
	fmt.Fprintf(out, "  Object:     %s\n", domain.OptionLabel(intake.ObjectTypes, o.ObjectType))
	fmt.Fprintf(out, "  Quantity:   %s\n", domain.OptionLabel(intake.QuantityBrackets, o.InsectQuantity))
	fmt.Fprintf(out, "  Technician: %s\n", format.StrOr(o.TechnicianName, "-"))
	if o.Area != nil || o.EstimatedPrice != nil {
		fmt.Fprintf(out, "  Poison:     %s\n", format.StrOr(o.PoisonType, "-"))
		fmt.Fprintf(out, "  Insect:     %s\n", format.StrOr(o.InsectType, "-"))
		fmt.Fprintf(out, "  Area:       %s\n", format.NumberOr(o.Area, "-"))
		fmt.Fprintf(out, "  Estimate:   %s\n", format.NumberOr(o.EstimatedPrice, "-"))
	}
	if o.FinalPrice != nil {
		fmt.Fprintf(out, "  Final:      %s\n", format.NumberOr(o.FinalPrice, "-"))
	}
}

func ordersStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Order counts per technician",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
				stats, err := a.Orders.Stats(ctx)
				if err != nil {
					return fmt.Errorf("failed to load stats: %w", err)
				}
				if len(stats) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%s No technicians registered\n", warnMark)
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTECHNICIAN\tTOTAL\tDONE\tIN PROGRESS")
				for _, s := range stats {
					fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\n", s.TechnicianID, s.Name, s.Total, s.Done, s.InProgress)
				}
				return w.Flush()
			})
		},
	}
}

func ordersCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete [code]",
		Short: "Mark an order in progress as done and notify the client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, _ := cmd.Flags().GetFloat64("final-price")
			silent, _ := cmd.Flags().GetBool("no-notify")

			prepare := func(cfg *coreconfig.Config) (app.OpenOptions, error) {
				if silent {
					return app.OpenOptions{}, nil
				}
				n, err := app.OfflineNotifier(cfg)
				if err != nil {
					return app.OpenOptions{}, err
				}
				return app.OpenOptions{Notifier: n}, nil
			}
			return withApp(cmd, prepare, func(ctx context.Context, a *app.App) error {
				o, err := a.Orders.Complete(ctx, strings.ToUpper(args[0]), 0, price)
				if err != nil {
					return fmt.Errorf("failed to complete order %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Order %s completed, final price %s\n",
					okMark, o.Code, format.NumberOr(o.FinalPrice, "-"))
				return nil
			})
		},
	}
	cmd.Flags().Float64("final-price", 0, "final price charged to the client")
	cmd.Flags().Bool("no-notify", false, "do not message the client")
	_ = cmd.MarkFlagRequired("final-price")
	return cmd
}
