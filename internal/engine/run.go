package engine

import (
	"context"
	"fmt"

	"github.com/dayfold/dayfold/internal/watch"
)

// LineHandler handles one interactive input line; returning true requests
// shutdown.
type LineHandler func(ctx context.Context, line string) (exit bool)

// Run is the engine's event loop: it watches the working tree, debounces
// change bursts, runs commit cycles, and dispatches interactive lines.
// It returns after a graceful shutdown (context canceled by a signal, or
// the line handler requesting exit), having attempted one final
// commit-if-dirty and one final push.
func (e *Engine) Run(ctx context.Context, lines <-chan string, onLine LineHandler) error {
	w, err := watch.New(e.repoRoot, e.cfg.IgnoreDirs, e.gate.IsMessagePath, e.ui)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Close()

	msgDeb := watch.NewDebouncer(e.cfg.MessageDebounce)
	defer msgDeb.Stop()

	// Legacy trigger: a quiet period across all files, used only when
	// message-driven triggering is off. The two triggers are mutually
	// exclusive.
	var quietDeb *watch.Debouncer
	var quietC <-chan struct{}
	if !e.cfg.TriggerOnMessage && e.cfg.QuietPeriod > 0 {
		quietDeb = watch.NewDebouncer(e.cfg.QuietPeriod)
		defer quietDeb.Stop()
		quietC = quietDeb.C
	}

	// Startup cycle: covers a restart after midnight with work pending.
	e.CommitOnce(ctx)

	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			isMsg := ev.Kind == watch.MessageChanged
			e.NoteChange(isMsg)
			e.ui.Debug("change: %s", ev.Path)

			if e.cfg.TriggerOnMessage {
				if isMsg {
					msgDeb.Trigger()
				}
			} else if quietDeb != nil {
				quietDeb.Trigger()
			}

		case <-msgDeb.C:
			e.CommitOnce(ctx)

		case <-quietC:
			e.CommitOnce(ctx)

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if onLine != nil && onLine(ctx, line) {
				return e.shutdown()
			}

		case <-ctx.Done():
			return e.shutdown()
		}
	}
}

// shutdown attempts one last commit and push before exit. It uses a
// fresh context: the run context is already canceled by the time we get
// here, and the in-flight git work should finish, not be cut off.
func (e *Engine) shutdown() error {
	ctx := context.Background()
	e.ui.Info("shutting down, running final commit check")

	out := e.CommitOnce(ctx)
	if e.cfg.AutoPush && out != OutcomePushed && out != OutcomeDryRun {
		if cur, ok := e.repo.CurrentBranch(ctx); ok {
			e.PushBranch(ctx, cur)
		}
	}
	e.ui.Success("dayfold stopped")
	return nil
}
