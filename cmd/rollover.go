package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dayfold/dayfold/internal/output"
	"github.com/dayfold/dayfold/internal/rollover"
)

var rolloverCmd = &cobra.Command{
	Use:   "rollover",
	Short: "Run the daily branch rollover now",
	Long: `Check whether a new day has started and, if so, fold the previous
daily branch toward trunk and create today's branches. With --dry-run
the plan is printed without touching the repository.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return rolloverRun(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rolloverCmd)
}

func rolloverRun(cmd *cobra.Command) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	d := eng.RolloverPlan(ctx)
	ui.Info("rollover state: %s", output.StateColor(string(d.State)))

	switch d.State {
	case rollover.StateNotNeeded:
		ui.Info("today's branch %s already exists", d.DailyBranch)
		return nil
	case rollover.StateBlocked:
		ui.Warning("working tree is dirty, commit or stash before rolling over")
		printSteps(d.Plan)
		return fmt.Errorf("rollover blocked by a dirty tree")
	}

	printSteps(d.Plan)
	if dryRun {
		ui.DryRunMsg("Would execute the plan above")
		return nil
	}

	if !eng.Rollover(ctx) {
		return fmt.Errorf("rollover failed")
	}
	ui.Success("rollover complete, now on %s", d.DailyBranch)
	return nil
}

func printSteps(plan []rollover.Step) {
	for _, step := range plan {
		ui.Info("  plan: %s", step)
	}
}
