package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dayfold/dayfold/internal/config"
	"github.com/dayfold/dayfold/internal/repl"
	"github.com/dayfold/dayfold/internal/rollover"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the working tree and commit continuously",
	Long: `Watch the repository for changes, commit when the message file is
ready, and push with retries. This is also what running bare 'dayfold'
does. Type 'help' at the prompt for interactive commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(ctx context.Context) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	c := eng.Config()

	input := repl.NewInput(os.Stdin, ui.Out)
	r := repl.New(eng, ui, settingsRows(c))

	// Rollover confirmation shares stdin with the command loop.
	if c.RolloverPrompt && !c.AutoConfirm {
		eng.SetConfirm(func(plan []rollover.Step) bool {
			return input.Ask("a new day needs a rollover, run it now?")
		})
	}

	banner(c)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return eng.Run(ctx, input.Lines(), r.Handle)
}

func banner(c *config.Config) {
	ui.Info("dayfold %s watching for changes (type 'help' for commands)", buildVersion)

	table := ui.Table([]string{"setting", "value"})
	for _, row := range settingsRows(c) {
		table.Append(row)
	}
	table.Render()
}

// settingsRows renders the resolved configuration for the banner and
// the REPL settings command.
func settingsRows(c *config.Config) [][]string {
	branchMode := "daily"
	if c.StaticBranch != "" {
		branchMode = fmt.Sprintf("static (%s)", c.StaticBranch)
	}
	trigger := fmt.Sprintf("message file, %s debounce", c.MessageDebounce)
	if !c.TriggerOnMessage {
		trigger = fmt.Sprintf("quiet period, %s", c.QuietPeriod)
	}
	msgFile := c.MessageFile
	if msgFile == "" {
		msgFile = "(auto-detect)"
	}

	return [][]string{
		{"branch mode", branchMode},
		{"trunk", c.Trunk},
		{"daily prefix", c.DailyPrefix},
		{"version prefix", c.VersionPrefix},
		{"base ref", c.BaseRef},
		{"timezone", c.Timezone},
		{"trigger", trigger},
		{"message file", msgFile},
		{"require message", fmt.Sprintf("%t", c.RequireMessage)},
		{"auto push", fmt.Sprintf("%t", c.AutoPush)},
		{"clear message", string(c.ClearMessage)},
		{"ignore dirs", strings.Join(c.IgnoreDirs, ", ")},
	}
}
