package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/m3rciful/pestbot/internal/app"
)

// TechnicianCmd groups technician directory commands.
func TechnicianCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "technician",
		Aliases: []string{"tech"},
		Short:   "Manage technicians",
	}
	cmd.AddCommand(technicianRegisterCmd())
	cmd.AddCommand(technicianListCmd())
	return cmd
}

func technicianRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a technician and print their sign-in credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			contact, _ := cmd.Flags().GetString("contact")
			credential, _ := cmd.Flags().GetString("credential")
			return withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
				t, err := a.Technicians.Register(ctx, name, contact, credential)
				if err != nil {
					return fmt.Errorf("failed to register technician: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s Registered technician #%d: %s (%s)\n", okMark, t.ID, t.Name, t.Contact)
				fmt.Fprintf(out, "  Credential: %s\n", t.Credential)
				fmt.Fprintf(out, "  Sign in by sending /start %s to the technician bot\n", t.Credential)
				return nil
			})
		},
	}
	cmd.Flags().String("name", "", "technician display name")
	cmd.Flags().String("contact", "", "contact handle, unique per technician")
	cmd.Flags().String("credential", "", "sign-in credential (generated when empty)")
	_ = cmd.MarkFlagRequired("contact")
	return cmd
}

func technicianListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List technicians in registration order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
				techs, err := a.Technicians.List(ctx)
				if err != nil {
					return fmt.Errorf("failed to list technicians: %w", err)
				}
				if len(techs) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%s No technicians registered\n", warnMark)
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tCONTACT\tSIGNED IN\tREGISTERED")
				for _, t := range techs {
					signedIn := "no"
					if t.Bound() {
						signedIn = "yes"
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Contact, signedIn, t.CreatedAt.Format("2006-01-02"))
				}
				return w.Flush()
			})
		},
	}
}
