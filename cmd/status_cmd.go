package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kebairia/deployctl/internal/operations"
)

var (
	statusCheck  bool
	statusOutput string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show containers, the last deployment and backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch statusOutput {
		case "text", "json", "yaml":
		default:
			return fmt.Errorf("unknown output format %q (want text, json or yaml)", statusOutput)
		}

		om, err := newOperationManager()
		if err != nil {
			return err
		}
		defer om.Close()

		st, err := om.Status(cmd.Context(), statusCheck)
		if err != nil {
			return err
		}

		if err := writeStatus(cmd.OutOrStdout(), st, statusOutput); err != nil {
			return err
		}
		if st.Check != nil && !st.Check.Healthy {
			return fmt.Errorf("%w: %s", ErrNotReady, st.Check.Message)
		}
		return nil
	},
}

func writeStatus(out io.Writer, st *operations.Status, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(st); err != nil {
			return err
		}
		return enc.Close()
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Service:\t%s (project %s)\n", st.Service, st.Project)

	switch {
	case st.RuntimeError != "":
		fmt.Fprintf(w, "Containers:\tunavailable: %s\n", st.RuntimeError)
	case len(st.Containers) == 0:
		fmt.Fprintf(w, "Containers:\tnone\n")
	default:
		for i, c := range st.Containers {
			label := ""
			if i == 0 {
				label = "Containers:"
			}
			fmt.Fprintf(w, "%s\t%s %s (%s, created %s ago)\n",
				label, c.Name, c.State, c.Status, units.HumanDuration(time.Since(c.Created)))
		}
	}

	if a := st.LastAttempt; a != nil {
		fmt.Fprintf(w, "Last %s:\t%s at %s (%s)\n", a.Kind, a.Outcome, a.FinishedAt.Format(time.RFC3339), a.Phase)
		if a.Rollback != "" {
			fmt.Fprintf(w, "Rollback:\t%s\n", a.Rollback)
		}
		if a.Error != "" {
			fmt.Fprintf(w, "Error:\t%s\n", a.Error)
		}
	} else {
		fmt.Fprintf(w, "Last deploy:\tnever\n")
	}

	if h := st.LastHealth; h != nil {
		fmt.Fprintf(w, "Last health:\t%s at %s\n", h.Message, h.CheckedAt.Format(time.RFC3339))
	}
	if c := st.Check; c != nil {
		state := "ready"
		if !c.Healthy {
			state = "not ready"
		}
		fmt.Fprintf(w, "Check:\t%s (%s in %s)\n", state, c.Message, c.Duration.Round(time.Millisecond))
	}

	last := st.LastBackup
	if last == "" {
		last = "none"
	}
	fmt.Fprintf(w, "Backups:\t%d (last: %s)\n", st.Backups, last)
	return w.Flush()
}

func init() {
	statusCmd.Flags().
		BoolVar(&statusCheck, "check", false, "probe the readiness endpoint once")
	statusCmd.Flags().
		StringVarP(&statusOutput, "output", "o", "text", "output format: text, json or yaml")
}
