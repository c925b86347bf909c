package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
)

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		om, err := newOperationManager()
		if err != nil {
			return err
		}
		defer om.Close()

		infos, err := om.ListBackups()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no backups in %s\n", cfg.Backup.Directory)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCREATED\tSIZE\tREASON\tLAST")
		for _, info := range infos {
			last := ""
			if info.Latest {
				last = "*"
			}
			reason := info.Metadata.Reason
			if reason == "" {
				reason = "-"
			}
			fmt.Fprintf(w, "%s\t%s ago\t%s\t%s\t%s\n",
				info.Record.Name,
				units.HumanDuration(time.Since(info.Record.CreatedAt)),
				units.HumanSize(float64(info.Metadata.SizeBytes)),
				reason,
				last,
			)
		}
		return w.Flush()
	},
}
