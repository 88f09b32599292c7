package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dayfold/dayfold/internal/engine"
	"github.com/dayfold/dayfold/internal/output"
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Run one commit cycle and exit",
	Long: `Run a single commit cycle: roll over if a new day started, stage
changes, apply the message gate, commit, and push. Useful from scripts
and hooks when the watcher is not running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return commitRun(cmd)
	},
}

func init() {
	rootCmd.AddCommand(commitCmd)
}

func commitRun(cmd *cobra.Command) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	outcome := eng.CommitOnce(cmd.Context())
	ui.Info("commit cycle: %s", output.StateColor(string(outcome)))

	switch outcome {
	case engine.OutcomeCommitFailed, engine.OutcomePushFailed, engine.OutcomeRolloverFailed:
		return fmt.Errorf("commit cycle failed: %s", outcome)
	}
	return nil
}
