package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Restore the last backup and restart the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		om, err := newOperationManager()
		if err != nil {
			return err
		}
		defer om.Close()

		rec, err := om.Rollback(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", rec.Name)
		return nil
	},
}
