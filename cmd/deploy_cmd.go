package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kebairia/deployctl/internal/operations"
)

var skipVerify bool

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Back up, rebuild, restart and health-check the service",
	Long: `deploy runs one deployment attempt:

  validate → backup → build → verify → stop → start → poll health

If the service never becomes ready the last backup is restored and the
service restarted; the command still exits non-zero.`,
	RunE: runDeploy,
}

func runDeploy(cmd *cobra.Command, args []string) error {
	om, err := newOperationManager()
	if err != nil {
		return err
	}
	defer om.Close()

	attempt, err := om.Deploy(cmd.Context(), skipVerify)
	printAttempt(cmd, attempt)
	return err
}

func printAttempt(cmd *cobra.Command, a *operations.Attempt) {
	if a == nil {
		return
	}
	out := cmd.OutOrStdout()
	if a.Outcome == operations.OutcomeSuccess {
		fmt.Fprintf(out, "deploy %s succeeded in %s (backup %s, %d health attempts)\n",
			a.ID, a.Duration().Round(time.Millisecond), a.Backup, a.PollAttempts)
		return
	}
	fmt.Fprintf(out, "deploy %s failed during %s after %s\n", a.ID, a.FailedPhase, a.Duration().Round(time.Millisecond))
	switch a.Rollback {
	case operations.RollbackSucceeded:
		fmt.Fprintf(out, "rolled back to %s\n", a.Backup)
	case operations.RollbackFailed:
		fmt.Fprintf(out, "rollback failed: %s\n", a.RollbackError)
	}
}

func init() {
	deployCmd.Flags().
		BoolVar(&skipVerify, "skip-verify", false, "do not run the verification suite")
}
