// Package repl provides the interactive command surface shown while
// the watcher runs. Commands operate on the engine only through its
// public operations.
package repl

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dayfold/dayfold/internal/engine"
	"github.com/dayfold/dayfold/internal/output"
)

// Ops is the slice of engine behavior the REPL is allowed to use.
type Ops interface {
	Snapshot(ctx context.Context) engine.Status
	CommitOnce(ctx context.Context) engine.Outcome
	PushCurrent(ctx context.Context) bool
	Rollover(ctx context.Context) bool
	ClearMessageFile() error
}

// Command is one REPL command. Run returns true to exit the loop.
type Command struct {
	Name string
	Help string
	Run  func(ctx context.Context, r *REPL, args []string) bool
}

// REPL dispatches typed lines against a command table.
type REPL struct {
	ops      Ops
	ui       *output.UI
	settings [][]string
	cmds     map[string]Command
}

// New builds the REPL. settings is the resolved configuration as
// name/value rows, rendered verbatim by the settings command.
func New(ops Ops, ui *output.UI, settings [][]string) *REPL {
	r := &REPL{ops: ops, ui: ui, settings: settings}
	r.cmds = commandTable()
	return r
}

// Handle runs one input line. Returns true when the loop should exit.
func (r *REPL) Handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, ok := r.cmds[fields[0]]
	if !ok {
		r.ui.Warning("unknown command %q, try \"help\"", fields[0])
		return false
	}
	return cmd.Run(ctx, r, fields[1:])
}

func commandTable() map[string]Command {
	return map[string]Command{
		"help": {
			Name: "help",
			Help: "list available commands",
			Run: func(_ context.Context, r *REPL, _ []string) bool {
				r.printHelp()
				return false
			},
		},
		"status": {
			Name: "status",
			Help: "show branch, rollover state, and message readiness",
			Run: func(ctx context.Context, r *REPL, _ []string) bool {
				r.printStatus(r.ops.Snapshot(ctx))
				return false
			},
		},
		"settings": {
			Name: "settings",
			Help: "show the resolved configuration",
			Run: func(_ context.Context, r *REPL, _ []string) bool {
				table := r.ui.Table([]string{"setting", "value"})
				for _, row := range r.settings {
					table.Append(row)
				}
				table.Render()
				return false
			},
		},
		"verbose": {
			Name: "verbose",
			Help: "toggle debug output (verbose [on|off])",
			Run: func(_ context.Context, r *REPL, args []string) bool {
				v := !r.ui.IsVerbose()
				if len(args) > 0 {
					v = args[0] == "on"
				}
				r.ui.SetVerbose(v)
				if v {
					r.ui.Info("verbose output on")
				} else {
					r.ui.Info("verbose output off")
				}
				return false
			},
		},
		"commit": {
			Name: "commit",
			Help: "run one commit cycle now",
			Run: func(ctx context.Context, r *REPL, _ []string) bool {
				outcome := r.ops.CommitOnce(ctx)
				r.ui.Info("commit cycle: %s", output.StateColor(string(outcome)))
				return false
			},
		},
		"push": {
			Name: "push",
			Help: "push the current branch with retries",
			Run: func(ctx context.Context, r *REPL, _ []string) bool {
				if r.ops.PushCurrent(ctx) {
					r.ui.Success("pushed")
				} else {
					r.ui.Error("push failed")
				}
				return false
			},
		},
		"rollover": {
			Name: "rollover",
			Help: "run the daily rollover check now",
			Run: func(ctx context.Context, r *REPL, _ []string) bool {
				if r.ops.Rollover(ctx) {
					r.ui.Success("rollover check done")
				} else {
					r.ui.Error("rollover failed")
				}
				return false
			},
		},
		"clear": {
			Name: "clear",
			Help: "truncate the commit message file",
			Run: func(_ context.Context, r *REPL, _ []string) bool {
				if err := r.ops.ClearMessageFile(); err != nil {
					r.ui.Error("cannot clear message file: %v", err)
				} else {
					r.ui.Info("message file cleared")
				}
				return false
			},
		},
		"exit": {
			Name: "exit",
			Help: "commit pending changes and quit",
			Run: func(_ context.Context, _ *REPL, _ []string) bool {
				return true
			},
		},
	}
}

func (r *REPL) printHelp() {
	names := make([]string, 0, len(r.cmds))
	for name := range r.cmds {
		names = append(names, name)
	}
	sort.Strings(names)

	table := r.ui.Table([]string{"command", "description"})
	for _, name := range names {
		table.Append([]string{name, r.cmds[name].Help})
	}
	table.Render()
}

func (r *REPL) printStatus(st engine.Status) {
	ready := "no"
	if st.MessageReady {
		ready = "yes"
	} else if st.MessageReason != "" {
		ready = fmt.Sprintf("no (%s)", st.MessageReason)
	}

	table := r.ui.Table([]string{"field", "value"})
	table.Append([]string{"branch", st.Branch})
	table.Append([]string{"branch kind", string(st.BranchKind)})
	table.Append([]string{"rollover", output.StateColor(string(st.RolloverState))})
	table.Append([]string{"daily branch", st.DailyBranch})
	table.Append([]string{"message file", st.MessagePath})
	table.Append([]string{"message ready", ready})
	table.Append([]string{"last change", output.Timestamp(st.LastChange)})
	table.Append([]string{"last outcome", output.StateColor(string(st.LastOutcome))})
	table.Append([]string{"commits", fmt.Sprintf("%d", st.Commits)})
	table.Append([]string{"pushes", fmt.Sprintf("%d", st.Pushes)})
	table.Render()
}
