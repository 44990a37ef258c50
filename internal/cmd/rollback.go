package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gantry-sh/gantry/internal/deployer"
	"github.com/gantry-sh/gantry/internal/gcloud"
	"github.com/gantry-sh/gantry/internal/history"
	"github.com/gantry-sh/gantry/internal/ui"
)

var (
	rollbackRevision string
	rollbackYes      bool
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Shift all traffic back to a retained prior revision",
	Long: `Rollback is a manual operation: a failed verification never triggers
it automatically. Without --revision the previous retained revision is
chosen; either way the target must be confirmed unless --yes is given.`,
	RunE: runRollbackCmd,
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
	rollbackCmd.Flags().StringVar(&rollbackRevision, "revision", "", "Revision to shift traffic to (default: the previous one)")
	rollbackCmd.Flags().BoolVar(&rollbackYes, "yes", false, "Skip the confirmation prompt")
}

func runRollbackCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cloud, err := gcloud.NewExecutor(verbose)
	if err != nil {
		return err
	}

	d := deployer.New(cloud, deployer.Target{
		Project: settings.Project,
		Region:  settings.Region,
		Service: settings.Service,
	}, nil)

	target := rollbackRevision
	if target == "" {
		revisions, err := d.Revisions(ctx)
		if err != nil {
			return err
		}
		if len(revisions) < 2 {
			return fmt.Errorf("service %s has no prior revision to roll back to", settings.Service)
		}

		fmt.Println("Retained revisions (newest first):")
		for _, rev := range revisions {
			marker := "  "
			if rev.Active {
				marker = "* "
			}
			fmt.Printf("  %s%s\n", marker, rev.Name)
		}
		// Revisions come back newest first; the second is the previous one.
		target = revisions[1].Name
	}

	if !rollbackYes {
		ok, err := ui.Confirm(fmt.Sprintf("Shift 100%% of %s traffic to %s", settings.Service, target))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Rollback cancelled.")
			return nil
		}
	}

	fmt.Printf("⏪ Rolling back %s to %s\n", settings.Service, target)
	if err := d.Rollback(ctx, target); err != nil {
		return err
	}

	recordRollback(cmd, target)
	fmt.Printf("✅ %s now serves revision %s\n", settings.Service, target)
	return nil
}

func recordRollback(cmd *cobra.Command, revision string) {
	store, err := history.Open(historyPath())
	if err != nil {
		slog.Warn("history ledger unavailable", "error", err)
		return
	}
	defer store.Close()

	_, err = store.Append(cmd.Context(), history.Run{
		Service: settings.Service,
		Project: settings.Project,
		Region:  settings.Region,
		Tag:     revision,
		Image:   revision,
		Outcome: history.OutcomeRollback,
	})
	if err != nil {
		slog.Warn("failed to record rollback", "error", err)
	}
}
