// Package engine orchestrates the commit cycle: rollover-if-due, branch
// checkout, staging, message gating, commit, and push. A single-slot
// try-lock keeps at most one cycle in flight; overlapping triggers are
// dropped rather than queued because every debounce period captures the
// latest filesystem state anyway.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dayfold/dayfold/internal/branch"
	"github.com/dayfold/dayfold/internal/config"
	"github.com/dayfold/dayfold/internal/gitx"
	"github.com/dayfold/dayfold/internal/infra"
	"github.com/dayfold/dayfold/internal/message"
	"github.com/dayfold/dayfold/internal/output"
	"github.com/dayfold/dayfold/internal/rollover"
)

// msgFileName is the temporary commit message file inside the git
// directory (resolved per linked worktree).
const msgFileName = "DAYFOLD_COMMIT_MSG"

// Outcome summarizes one commit cycle for logs, status, and tests.
type Outcome string

const (
	OutcomeBusy            Outcome = "busy"
	OutcomeRolloverFailed  Outcome = "rollover_failed"
	OutcomeNoChanges       Outcome = "no_changes"
	OutcomeMessageNotReady Outcome = "message_not_ready"
	OutcomeCommitFailed    Outcome = "commit_failed"
	OutcomeCommitted       Outcome = "committed"
	OutcomePushed          Outcome = "pushed"
	OutcomePushFailed      Outcome = "push_failed"
	OutcomeDryRun          Outcome = "dry_run"
)

// ConfirmFunc answers whether a pending rollover plan may execute.
type ConfirmFunc func(plan []rollover.Step) bool

// Engine is the commit/rollover orchestrator.
type Engine struct {
	cfg      *config.Config
	ui       *output.UI
	repo     *gitx.Repo
	namer    *branch.Namer
	planner  *rollover.Planner
	executor *rollover.Executor
	gate     *message.Gate
	repoRoot string

	// busy is the re-entrancy guard: at most one commit cycle in flight.
	busy chan struct{}

	now     func() time.Time
	confirm ConfirmFunc

	mu               sync.Mutex
	lastAnyChange    time.Time
	lastNonMsgChange time.Time
	lastOutcome      Outcome
	commits          int
	pushes           int
}

// New wires an Engine from its dependencies. repoRoot must be the working
// tree root the repo's Runner is bound to.
func New(cfg *config.Config, ui *output.UI, repo *gitx.Repo, repoRoot string) *Engine {
	e := &Engine{
		cfg:      cfg,
		ui:       ui,
		repo:     repo,
		namer:    branch.NewNamer(cfg),
		gate:     message.NewGate(cfg, repoRoot),
		repoRoot: repoRoot,
		busy:     make(chan struct{}, 1),
		now:      time.Now,
	}
	e.planner = rollover.NewPlanner(cfg, e.namer, repo, e.gate.IsMessagePath)
	e.executor = rollover.NewExecutor(repo, ui, e.PushBranch)
	e.confirm = func([]rollover.Step) bool { return cfg.AutoConfirm }
	return e
}

// Config returns the engine configuration (read-only).
func (e *Engine) Config() *config.Config { return e.cfg }

// Gate returns the message gate, for watcher event classification.
func (e *Engine) Gate() *message.Gate { return e.gate }

// SetNow overrides the clock. Test hook.
func (e *Engine) SetNow(now func() time.Time) { e.now = now }

// SetConfirm installs an interactive rollover confirmation.
func (e *Engine) SetConfirm(f ConfirmFunc) { e.confirm = f }

// NoteChange records a filesystem change in the engine's timestamps; the
// watcher loop calls this for every event.
func (e *Engine) NoteChange(isMessage bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	e.lastAnyChange = now
	if !isMessage {
		e.lastNonMsgChange = now
	}
}

// tryLock acquires the re-entrancy guard without blocking.
func (e *Engine) tryLock() bool {
	select {
	case e.busy <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *Engine) unlock() { <-e.busy }

// CommitOnce runs one commit cycle. A cycle already in flight drops the
// call. Each step is gated on the previous: rollover check, branch
// checkout, staging, message gate, commit, push.
func (e *Engine) CommitOnce(ctx context.Context) Outcome {
	if !e.tryLock() {
		e.ui.Debug("commit cycle already in flight, dropping trigger")
		return OutcomeBusy
	}
	defer e.unlock()

	outcome := e.commitCycle(ctx)

	e.mu.Lock()
	e.lastOutcome = outcome
	e.mu.Unlock()
	return outcome
}

func (e *Engine) commitCycle(ctx context.Context) Outcome {
	if e.ui.DryRun {
		return e.dryRunCycle(ctx)
	}

	target, ok := e.ensureBranch(ctx)
	if !ok {
		return OutcomeRolloverFailed
	}

	files := e.repo.ChangedFiles(ctx)
	if len(files) == 0 {
		e.ui.Debug("no changes to commit")
		return OutcomeNoChanges
	}

	msgPath := e.gate.Locate()
	report := infra.Classify(e.nonMessageFiles(files))

	if !e.repo.AddAll(ctx) {
		return OutcomeCommitFailed
	}
	// Message files must never ride along in their own commit; that
	// includes stale session files, not just the active one.
	for _, f := range files {
		if e.gate.IsMessagePath(f) {
			e.repo.Unstage(ctx, f)
		}
	}
	if !e.repo.HasStaged(ctx) {
		e.ui.Debug("nothing staged after excluding the message file")
		return OutcomeNoChanges
	}

	msg, ok := e.resolveMessage(msgPath)
	if !ok {
		return OutcomeMessageNotReady
	}

	if report.HasInfraChanges {
		msg = infra.RewriteMessage(msg, report)
		if err := infra.AppendChangelog(e.repoRoot, report, message.Header(msg)); err != nil {
			e.ui.Warning("cannot append infra changelog: %v", err)
		}
	}

	if !e.commit(ctx, msg) {
		return OutcomeCommitFailed
	}
	e.mu.Lock()
	e.commits++
	e.mu.Unlock()
	e.ui.Success("committed: %s", message.Header(msg))

	if e.cfg.ClearMessage == config.ClearOnCommit {
		e.clearMessage(msgPath)
	}

	if !e.cfg.AutoPush {
		return OutcomeCommitted
	}
	if !e.PushBranch(ctx, target) {
		return OutcomePushFailed
	}
	e.mu.Lock()
	e.pushes++
	e.mu.Unlock()

	if e.cfg.ClearMessage == config.ClearOnPush {
		e.clearMessage(msgPath)
	}
	return OutcomePushed
}

// dryRunCycle reports what a commit cycle would do without touching the
// repository: no rollover execution, no checkout, no staging, no push.
func (e *Engine) dryRunCycle(ctx context.Context) Outcome {
	target := e.cfg.StaticBranch
	if target == "" {
		today := branch.Today(e.now(), e.cfg.Location(), e.cfg.DateStyle)
		d := e.planner.Decide(ctx, today)
		target = d.DailyBranch

		switch d.State {
		case rollover.StateBlocked:
			e.ui.DryRunMsg("Rollover is blocked by a dirty tree; would keep the previous daily branch")
			if d.ExistingDaily != "" {
				target = d.ExistingDaily
			}
		case rollover.StatePending, rollover.StateInProgress:
			e.ui.DryRunMsg("Would run the rollover:")
			e.printPlan(d.Plan)
		}
	}

	files := e.nonMessageFiles(e.repo.ChangedFiles(ctx))
	if len(files) == 0 {
		e.ui.DryRunMsg("Nothing to commit")
		return OutcomeDryRun
	}

	msgPath := e.gate.Locate()
	msg, ok := e.resolveMessage(msgPath)
	if !ok {
		e.ui.DryRunMsg("Would skip the cycle: message file not ready")
		return OutcomeDryRun
	}

	header := message.Header(msg)
	if report := infra.Classify(files); report.HasInfraChanges {
		header = message.Header(infra.RewriteMessage(msg, report))
	}

	e.ui.DryRunMsg("Would commit %d file(s) to %s: %s", len(files), target, header)
	if e.cfg.AutoPush {
		e.ui.DryRunMsg("Would push %s", target)
	}
	return OutcomeDryRun
}

// ensureBranch runs the rollover check and leaves the repository on the
// branch commits should land on. Returns that branch name.
func (e *Engine) ensureBranch(ctx context.Context) (string, bool) {
	if e.cfg.StaticBranch != "" {
		return e.ensureStatic(ctx)
	}

	today := branch.Today(e.now(), e.cfg.Location(), e.cfg.DateStyle)
	d := e.planner.Decide(ctx, today)

	switch d.State {
	case rollover.StateNotNeeded:
		return d.DailyBranch, e.checkoutIfNeeded(ctx, d.DailyBranch)

	case rollover.StateBlocked:
		e.ui.Warning("rollover blocked: working tree has uncommitted changes")
		e.printPlan(d.Plan)
		if d.ExistingDaily != "" {
			// Never fabricate a new daily branch while the tree is
			// dirty; keep committing to the previous day's branch.
			return d.ExistingDaily, e.checkoutIfNeeded(ctx, d.ExistingDaily)
		}
		cur, ok := e.repo.CurrentBranch(ctx)
		return cur, ok

	case rollover.StatePending:
		e.printPlan(d.Plan)
		if !e.confirm(d.Plan) {
			e.ui.Info("rollover deferred by operator")
			if d.ExistingDaily != "" {
				return d.ExistingDaily, e.checkoutIfNeeded(ctx, d.ExistingDaily)
			}
			cur, ok := e.repo.CurrentBranch(ctx)
			return cur, ok
		}
		fallthrough

	case rollover.StateInProgress:
		if e.executor.Execute(ctx, d.Plan) != rollover.StateComplete {
			return "", false
		}
		e.ui.Success("rollover complete, now on %s", d.DailyBranch)
		return d.DailyBranch, true
	}

	return "", false
}

func (e *Engine) ensureStatic(ctx context.Context) (string, bool) {
	name := e.cfg.StaticBranch
	if e.repo.BranchExists(ctx, name) {
		return name, e.checkoutIfNeeded(ctx, name)
	}
	return name, e.repo.CreateBranch(ctx, name, "")
}

func (e *Engine) checkoutIfNeeded(ctx context.Context, name string) bool {
	cur, ok := e.repo.CurrentBranch(ctx)
	if !ok {
		return false
	}
	if cur == name {
		return true
	}
	return e.repo.Checkout(ctx, name)
}

func (e *Engine) printPlan(plan []rollover.Step) {
	for _, step := range plan {
		e.ui.Info("  plan: %s", step)
	}
}

// resolveMessage applies the readiness gate and returns the commit
// message text. With require_message off, a generated header is used
// when the message file is not ready.
func (e *Engine) resolveMessage(msgPath string) (string, bool) {
	e.mu.Lock()
	lastNonMsg := e.lastNonMsgChange
	e.mu.Unlock()

	st := e.gate.Check(msgPath, lastNonMsg)
	if st.Ready {
		msg, err := e.gate.Read(msgPath)
		if err != nil {
			e.ui.Warning("cannot read message file: %v", err)
			return "", false
		}
		return msg, true
	}

	if e.cfg.RequireMessage {
		e.ui.Debug("message not ready (%s), skipping cycle", st.Reason)
		return "", false
	}

	ts := e.now().Format("2006-01-02 15:04:05")
	return fmt.Sprintf("chore: auto-commit %s", ts), true
}

// commit writes the message to a temp file in the real git directory
// (correct even inside a linked worktree) and commits with it.
func (e *Engine) commit(ctx context.Context, msg string) bool {
	gitDir, ok := e.repo.GitDir(ctx)
	if !ok {
		return false
	}
	tmp := filepath.Join(gitDir, msgFileName)
	if err := os.WriteFile(tmp, []byte(msg+"\n"), 0o644); err != nil {
		e.ui.Error("cannot write commit message file: %v", err)
		return false
	}
	defer os.Remove(tmp)

	return e.repo.CommitFile(ctx, tmp)
}

// PushCurrent pushes whatever branch is checked out, applying the
// full retry policy.
func (e *Engine) PushCurrent(ctx context.Context) bool {
	name, ok := e.repo.CurrentBranch(ctx)
	if !ok {
		return false
	}
	if e.ui.DryRun {
		e.ui.DryRunMsg("Would push %s", name)
		return true
	}
	return e.PushBranch(ctx, name)
}

// Rollover runs the day's rollover check immediately, outside the
// normal commit cycle.
func (e *Engine) Rollover(ctx context.Context) bool {
	if !e.tryLock() {
		e.ui.Warning("a commit cycle is already in flight")
		return false
	}
	defer e.unlock()

	if e.ui.DryRun {
		today := branch.Today(e.now(), e.cfg.Location(), e.cfg.DateStyle)
		d := e.planner.Decide(ctx, today)
		if len(d.Plan) == 0 {
			e.ui.DryRunMsg("No rollover needed")
		} else {
			e.ui.DryRunMsg("Would run the rollover:")
			e.printPlan(d.Plan)
		}
		return true
	}

	_, ok := e.ensureBranch(ctx)
	return ok
}

// RolloverPlan returns today's rollover decision without executing it.
func (e *Engine) RolloverPlan(ctx context.Context) rollover.Decision {
	today := branch.Today(e.now(), e.cfg.Location(), e.cfg.DateStyle)
	return e.planner.Decide(ctx, today)
}

// ClearMessageFile truncates the current message file.
func (e *Engine) ClearMessageFile() error {
	path := e.gate.Locate()
	if e.ui.DryRun {
		e.ui.DryRunMsg("Would clear %s", path)
		return nil
	}
	return message.Clear(path)
}

func (e *Engine) clearMessage(path string) {
	if err := message.Clear(path); err != nil {
		e.ui.Warning("cannot clear message file: %v", err)
	}
}

// nonMessageFiles filters message files out of a changed-file list.
func (e *Engine) nonMessageFiles(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if !e.gate.IsMessagePath(f) {
			out = append(out, f)
		}
	}
	return out
}

