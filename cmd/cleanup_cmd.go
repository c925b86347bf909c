package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var keepLast int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete backups beyond the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("keep") {
			cfg.Retention.KeepLast = keepLast
		}

		om, err := newOperationManager()
		if err != nil {
			return err
		}
		defer om.Close()

		report, err := om.Cleanup()
		out := cmd.OutOrStdout()
		for _, name := range report.Removed {
			fmt.Fprintf(out, "removed %s\n", name)
		}
		for _, name := range report.Staging {
			fmt.Fprintf(out, "removed %s (interrupted backup)\n", name)
		}
		if report.Protected != "" {
			fmt.Fprintf(out, "kept %s (last backup)\n", report.Protected)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d backups kept, %d removed\n", len(report.Kept), len(report.Removed))
		return nil
	},
}

func init() {
	cleanupCmd.Flags().
		IntVar(&keepLast, "keep", 0, "override retention.keep_last")
}
