// Package gitx wraps the git binary behind a narrow Runner interface.
//
// Runner never returns a Go error: a non-zero exit is reported as
// Result{OK: false} and the failing command's stderr is logged. Callers
// treat OK:false as "the operation did not happen" and decide locally
// whether that is fatal to the current step. The whole orchestration
// layer is testable against an in-memory Runner with zero real git
// invocations.
package gitx

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/dayfold/dayfold/internal/output"
)

// Result is the outcome of one git invocation.
type Result struct {
	OK     bool
	Stdout string
}

// Runner executes a single git subcommand in the repository.
type Runner interface {
	Run(ctx context.Context, args ...string) Result
}

// ExecRunner runs `git -C <dir> <args...>` via os/exec.
type ExecRunner struct {
	Dir string
	UI  *output.UI
}

// NewExecRunner returns a Runner bound to the repository at dir.
func NewExecRunner(dir string, ui *output.UI) *ExecRunner {
	return &ExecRunner{Dir: dir, UI: ui}
}

// Run executes the git command and captures stdout. Every invocation is
// logged at debug level with the literal command line.
func (r *ExecRunner) Run(ctx context.Context, args ...string) Result {
	r.UI.Debug("git %s", strings.Join(args, " "))

	fullArgs := append([]string{"-C", r.Dir}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		r.UI.Debug("git %s: %s", strings.Join(args, " "), msg)
		return Result{OK: false, Stdout: strings.TrimSpace(stdout.String())}
	}
	return Result{OK: true, Stdout: strings.TrimSpace(stdout.String())}
}

// IsRepository reports whether path is inside a git working tree.
func IsRepository(path string) bool {
	return exec.Command("git", "-C", path, "rev-parse", "--is-inside-work-tree").Run() == nil
}
