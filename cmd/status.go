package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dayfold/dayfold/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show branch, rollover state, and message readiness",
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun(cmd)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusRun(cmd *cobra.Command) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	st := eng.Snapshot(cmd.Context())

	ready := "no"
	if st.MessageReady {
		ready = "yes"
	} else if st.MessageReason != "" {
		ready = fmt.Sprintf("no (%s)", st.MessageReason)
	}

	table := ui.Table([]string{"field", "value"})
	table.Append([]string{"branch", st.Branch})
	table.Append([]string{"branch kind", string(st.BranchKind)})
	table.Append([]string{"rollover", output.StateColor(string(st.RolloverState))})
	table.Append([]string{"daily branch", st.DailyBranch})
	table.Append([]string{"message file", st.MessagePath})
	table.Append([]string{"message ready", ready})
	table.Append([]string{"last change", output.Timestamp(st.LastChange)})
	table.Render()
	return nil
}
