package cmd

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the configuration, data and logs without deploying",
	RunE: func(cmd *cobra.Command, args []string) error {
		om, err := newOperationManager()
		if err != nil {
			return err
		}
		defer om.Close()

		rec, err := om.Backup(cmd.Context())
		if err != nil {
			return err
		}

		size := "unknown size"
		if meta, err := om.BackupManager().Metadata(rec); err == nil {
			size = units.HumanSize(float64(meta.SizeBytes))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", rec.Path, size)
		return nil
	},
}
