package engine

import (
	"context"
	"time"

	"github.com/dayfold/dayfold/internal/branch"
	"github.com/dayfold/dayfold/internal/rollover"
)

// Status is a point-in-time snapshot of the engine, safe to render from
// the REPL while cycles run.
type Status struct {
	Branch           string
	BranchKind       branch.Kind
	RolloverState    rollover.State
	DailyBranch      string
	MessagePath      string
	MessageReady     bool
	MessageReason    string
	LastChange       time.Time
	LastNonMsgChange time.Time
	LastOutcome      Outcome
	Commits          int
	Pushes           int
}

// Snapshot gathers the current engine status. Read-only: it never
// mutates branch state.
func (e *Engine) Snapshot(ctx context.Context) Status {
	e.mu.Lock()
	st := Status{
		LastChange:       e.lastAnyChange,
		LastNonMsgChange: e.lastNonMsgChange,
		LastOutcome:      e.lastOutcome,
		Commits:          e.commits,
		Pushes:           e.pushes,
	}
	lastNonMsg := e.lastNonMsgChange
	e.mu.Unlock()

	if cur, ok := e.repo.CurrentBranch(ctx); ok {
		st.Branch = cur
		st.BranchKind = e.namer.Classify(cur).Kind
	}

	today := branch.Today(e.now(), e.cfg.Location(), e.cfg.DateStyle)
	d := e.planner.Decide(ctx, today)
	st.RolloverState = d.State
	st.DailyBranch = d.DailyBranch

	st.MessagePath = e.gate.Locate()
	ms := e.gate.Check(st.MessagePath, lastNonMsg)
	st.MessageReady = ms.Ready
	st.MessageReason = ms.Reason

	return st
}
