// Package output provides colored terminal output for the dayfold engine.
package output

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// UI provides colored output and respects the verbose/dry-run modes.
// Verbose is togglable at runtime (the REPL's `verbose` command flips it
// while the engine is logging from another goroutine).
type UI struct {
	DryRun bool
	Out    io.Writer
	ErrOut io.Writer

	verbose atomic.Bool
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	debugPrefix   = color.New(color.FgHiBlack).Sprint("  →")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
)

// Cyan returns a cyan-colored string.
func Cyan(s string) string { return cyan(s) }

// Green returns a green-colored string.
func Green(s string) string { return green(s) }

// Yellow returns a yellow-colored string.
func Yellow(s string) string { return yellow(s) }

// Red returns a red-colored string.
func Red(s string) string { return red(s) }

// Timestamp renders a status timestamp; the zero time reads "never".
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02 15:04:05")
}

// StateColor returns the string colored by rollover/engine state.
func StateColor(state string) string {
	switch state {
	case "idle", "complete", "not_needed", "committed", "pushed":
		return green(state)
	case "pending_confirmation", "in_progress":
		return yellow(state)
	case "blocked_dirty_tree", "failed", "commit_failed", "push_failed", "rollover_failed":
		return red(state)
	default:
		return state
	}
}

// SetVerbose enables or disables debug output.
func (u *UI) SetVerbose(v bool) { u.verbose.Store(v) }

// IsVerbose reports whether debug output is enabled.
func (u *UI) IsVerbose() bool { return u.verbose.Load() }

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

// Debug logs only when verbose mode is on. Git command lines are logged
// through this so every subprocess invocation is auditable.
func (u *UI) Debug(format string, a ...any) {
	if u.verbose.Load() {
		fmt.Fprintf(u.Out, "%s %s\n", debugPrefix, fmt.Sprintf(format, a...))
	}
}

func (u *UI) DryRunMsg(format string, a ...any) {
	if u.DryRun {
		u.Warning("[DRY-RUN] "+format, a...)
	}
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}
