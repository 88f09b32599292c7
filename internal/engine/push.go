package engine

import "context"

// PushBranch pushes a branch with three escalating strategies:
//
//  1. no remote branch yet: push with set-upstream, first push wins;
//  2. plain push; on rejection pull with a merging (non-rebase) strategy
//     and retry once;
//  3. set-upstream as a last resort, forced only when the
//     force_upstream_fallback option is on. Without the flag a diverged
//     remote fails the push instead of silently discarding commits a
//     concurrent agent may have pushed to the same branch.
//
// Only the boolean outcome is observable; callers never learn which
// stage succeeded.
func (e *Engine) PushBranch(ctx context.Context, name string) bool {
	if !e.repo.RemoteBranchExists(ctx, name) {
		if e.repo.PushSetUpstream(ctx, name, false) {
			e.ui.Debug("pushed new remote branch %s", name)
			return true
		}
		e.ui.Error("push failed: cannot create remote branch %s", name)
		return false
	}

	if e.repo.Push(ctx, name) {
		return true
	}

	e.ui.Debug("push of %s rejected, pulling and retrying", name)
	if e.repo.PullNoRebase(ctx) {
		if e.repo.Push(ctx, name) {
			return true
		}
	} else {
		// A conflicted pull leaves a half-done merge behind; abort it so
		// the tree stays clean for the operator.
		e.repo.MergeAbort(ctx)
	}

	if e.cfg.ForceUpstreamFallback {
		e.ui.Warning("force-setting upstream for %s; remote commits may be overwritten", name)
		if e.repo.PushSetUpstream(ctx, name, true) {
			return true
		}
	} else if e.repo.PushSetUpstream(ctx, name, false) {
		return true
	}

	e.ui.Error("push failed for %s", name)
	return false
}
