// Package rollover computes and executes the daily branch rollover: fold
// the previous version branch into trunk, open the next version branch,
// fold the previous daily branch into it, and open today's daily branch.
package rollover

import (
	"context"
	"fmt"

	"github.com/dayfold/dayfold/internal/branch"
	"github.com/dayfold/dayfold/internal/config"
	"github.com/dayfold/dayfold/internal/gitx"
	"github.com/dayfold/dayfold/internal/output"
)

// State is the rollover state machine.
type State string

const (
	StateNotNeeded  State = "not_needed"
	StatePending    State = "pending_confirmation"
	StateBlocked    State = "blocked_dirty_tree"
	StateInProgress State = "in_progress"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

// Action is one kind of plan step.
type Action string

const (
	ActionMerge  Action = "merge"
	ActionCreate Action = "create"
	ActionPush   Action = "push"
)

// Step is one ordered operation of a rollover plan.
//   - merge:  merge Source into Target (no fast-forward)
//   - create: create branch Target at Source and check it out
//   - push:   push Target to origin
type Step struct {
	Action Action
	Source string
	Target string
}

func (s Step) String() string {
	switch s.Action {
	case ActionMerge:
		return fmt.Sprintf("merge %s -> %s", s.Source, s.Target)
	case ActionCreate:
		return fmt.Sprintf("create %s from %s", s.Target, s.Source)
	default:
		return fmt.Sprintf("push %s", s.Target)
	}
}

// Decision is the outcome of the rollover check.
type Decision struct {
	State State
	// DailyBranch is today's daily branch name, whether or not it exists.
	DailyBranch string
	// ExistingDaily is the newest existing daily branch, for ensuring a
	// sane checkout when rollover is blocked or not needed.
	ExistingDaily string
	Plan          []Step
}

// Planner decides whether a rollover is due and produces the ordered plan.
type Planner struct {
	cfg       *config.Config
	namer     *branch.Namer
	repo      *gitx.Repo
	isMessage func(path string) bool
}

// NewPlanner builds a Planner. isMessage (optional) marks paths whose
// changes do not count as a dirty tree: the commit message file is owned
// by the engine and must not block rollover forever.
func NewPlanner(cfg *config.Config, namer *branch.Namer, repo *gitx.Repo, isMessage func(string) bool) *Planner {
	return &Planner{cfg: cfg, namer: namer, repo: repo, isMessage: isMessage}
}

// Decide computes the rollover decision for the rendered date. Calling it
// again without an intervening commit yields the same branch state: when
// today's daily branch already exists (and no force flag is set) the
// decision is a no-op other than the caller ensuring checkout.
func (p *Planner) Decide(ctx context.Context, today string) Decision {
	daily := p.namer.DailyName(today)
	branches := p.repo.LocalBranches(ctx)

	d := Decision{State: StateNotNeeded, DailyBranch: daily}
	if newest, ok := p.namer.NewestDaily(branches); ok {
		d.ExistingDaily = newest
	}

	if p.repo.BranchExists(ctx, daily) && !p.cfg.ForceRollover {
		return d
	}

	if p.treeDirty(ctx) {
		d.State = StateBlocked
		d.Plan = p.buildPlan(daily, branches)
		return d
	}

	d.Plan = p.buildPlan(daily, branches)
	if p.cfg.RolloverPrompt {
		d.State = StatePending
	} else {
		d.State = StateInProgress
	}
	return d
}

// treeDirty reports uncommitted changes, not counting message files.
func (p *Planner) treeDirty(ctx context.Context) bool {
	for _, f := range p.repo.ChangedFiles(ctx) {
		if p.isMessage == nil || !p.isMessage(f) {
			return true
		}
	}
	return false
}

func (p *Planner) buildPlan(daily string, branches []string) []Step {
	var plan []Step

	priorMinor, havePrior := p.namer.HighestMinor(branches)
	newMinor := p.cfg.StartMinor
	if havePrior {
		newMinor = priorMinor + p.cfg.MinorStep
	}
	newVersion := p.namer.VersionName(newMinor)

	if havePrior {
		prior := p.namer.VersionName(priorMinor)
		plan = append(plan,
			Step{Action: ActionMerge, Source: prior, Target: p.cfg.Trunk},
			Step{Action: ActionPush, Target: p.cfg.Trunk},
		)
	}

	plan = append(plan, Step{Action: ActionCreate, Source: p.cfg.BaseRef, Target: newVersion})

	if priorDaily, ok := p.namer.NewestDaily(branches); ok && priorDaily != daily {
		plan = append(plan, Step{Action: ActionMerge, Source: priorDaily, Target: newVersion})
	}

	plan = append(plan,
		Step{Action: ActionPush, Target: newVersion},
		Step{Action: ActionCreate, Source: newVersion, Target: daily},
		Step{Action: ActionPush, Target: daily},
	)
	return plan
}

// PushFunc pushes a branch and reports success. The engine supplies its
// retry policy here.
type PushFunc func(ctx context.Context, name string) bool

// Executor runs a plan step by step, aborting on the first failure.
type Executor struct {
	repo *gitx.Repo
	ui   *output.UI
	push PushFunc
}

// NewExecutor builds an Executor. push handles all push steps.
func NewExecutor(repo *gitx.Repo, ui *output.UI, push PushFunc) *Executor {
	return &Executor{repo: repo, ui: ui, push: push}
}

// Execute runs the plan strictly in order. Any step failure halts the
// remaining steps. A merge conflict is aborted (`merge --abort`) so the
// tree stays clean, and the operator is told to resolve it by hand; the
// engine never auto-resolves content conflicts.
func (e *Executor) Execute(ctx context.Context, plan []Step) State {
	for _, step := range plan {
		e.ui.Info("rollover: %s", step)

		switch step.Action {
		case ActionMerge:
			if !e.repo.Checkout(ctx, step.Target) {
				e.ui.Error("rollover: cannot check out %s", step.Target)
				return StateFailed
			}
			msg := fmt.Sprintf("merge %s into %s", step.Source, step.Target)
			if !e.repo.MergeNoFF(ctx, step.Source, msg) {
				e.repo.MergeAbort(ctx)
				e.ui.Error("rollover: merge conflict merging %s into %s", step.Source, step.Target)
				e.ui.Warning("resolve manually: git checkout %s && git merge --no-ff %s", step.Target, step.Source)
				return StateFailed
			}

		case ActionCreate:
			if e.repo.BranchExists(ctx, step.Target) {
				if !e.repo.Checkout(ctx, step.Target) {
					return StateFailed
				}
				continue
			}
			if !e.repo.CreateBranch(ctx, step.Target, step.Source) {
				e.ui.Error("rollover: cannot create %s from %s", step.Target, step.Source)
				return StateFailed
			}

		case ActionPush:
			if !e.push(ctx, step.Target) {
				e.ui.Error("rollover: push of %s failed", step.Target)
				return StateFailed
			}
		}
	}
	return StateComplete
}
