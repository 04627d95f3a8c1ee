package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/ragcrawl/internal/app"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Tenant maintenance",
}

var tenantPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every document, stored file and vector of a tenant",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tenant, _ := cmd.Flags().GetString("tenant")
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return errors.New("refusing to purge without --yes")
		}
		return withApp(cmd, func(a *app.App) error {
			n, err := a.Documents.PurgeTenant(cmd.Context(), tenant)
			if err != nil {
				return err
			}
			cmd.Printf("purged tenant %s: %d documents removed\n", tenant, n)
			return nil
		})
	},
}

func init() {
	tenantPurgeCmd.Flags().String("tenant", "", "tenant id (required)")
	tenantPurgeCmd.Flags().Bool("yes", false, "confirm the purge")
	_ = tenantPurgeCmd.MarkFlagRequired("tenant")
	tenantCmd.AddCommand(tenantPurgeCmd)
	rootCmd.AddCommand(tenantCmd)
}
