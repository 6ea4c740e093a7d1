package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/arnold/achievements-api/internal/database"
	"github.com/spf13/cobra"
)

// NewAdminCommand creates the admin command group.
func NewAdminCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}
	cmd.AddCommand(newAdminCreateCommand(rootOpts))
	return cmd
}

func newAdminCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an admin account",
		Long:  "Create an admin account. The password comes from --password or ADMIN_PASSWORD.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			if password == "" {
				return errors.New("a password is required (--password or ADMIN_PASSWORD)")
			}
			return withBackend(cmd, rootOpts, func(b *Backend) error {
				admin, err := database.CreateAdmin(b.DB, args[0], password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", admin.Username, admin.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "password for the new admin")
	return cmd
}
