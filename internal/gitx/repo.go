package gitx

import (
	"context"
	"strings"
)

// Repo provides typed git operations over a Runner. Methods that can fail
// return a trailing bool; false means the underlying command failed and
// the operation did not happen.
type Repo struct {
	r Runner
}

// NewRepo wraps a Runner.
func NewRepo(r Runner) *Repo {
	return &Repo{r: r}
}

// Runner returns the underlying Runner.
func (g *Repo) Runner() Runner { return g.r }

// RepoRoot returns the absolute path of the working tree root.
func (g *Repo) RepoRoot(ctx context.Context) (string, bool) {
	res := g.r.Run(ctx, "rev-parse", "--show-toplevel")
	return res.Stdout, res.OK
}

// GitDir returns the absolute path of the real git directory. Inside a
// linked worktree this resolves to the per-worktree directory under the
// main repository's .git/worktrees, which is where commit message temp
// files must live.
func (g *Repo) GitDir(ctx context.Context) (string, bool) {
	res := g.r.Run(ctx, "rev-parse", "--absolute-git-dir")
	return res.Stdout, res.OK
}

// CurrentBranch returns the checked-out branch name.
func (g *Repo) CurrentBranch(ctx context.Context) (string, bool) {
	res := g.r.Run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	return res.Stdout, res.OK
}

// BranchExists reports whether a local branch exists.
func (g *Repo) BranchExists(ctx context.Context, name string) bool {
	return g.r.Run(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+name).OK
}

// RemoteBranchExists reports whether the branch exists on origin.
func (g *Repo) RemoteBranchExists(ctx context.Context, name string) bool {
	res := g.r.Run(ctx, "ls-remote", "--heads", "origin", name)
	return res.OK && res.Stdout != ""
}

// LocalBranches lists local branch names.
func (g *Repo) LocalBranches(ctx context.Context) []string {
	res := g.r.Run(ctx, "branch", "--format=%(refname:short)")
	if !res.OK || res.Stdout == "" {
		return nil
	}
	var branches []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			branches = append(branches, line)
		}
	}
	return branches
}

// IsDirty reports whether the working tree has uncommitted changes
// (staged, unstaged, or untracked).
func (g *Repo) IsDirty(ctx context.Context) (bool, bool) {
	res := g.r.Run(ctx, "status", "--porcelain")
	return res.Stdout != "", res.OK
}

// ChangedFiles returns the paths reported by `status --porcelain`,
// untracked files included. -uall keeps untracked directories expanded
// to individual files so callers can filter path by path. Renames
// report the new path.
func (g *Repo) ChangedFiles(ctx context.Context) []string {
	res := g.r.Run(ctx, "status", "--porcelain", "-uall")
	if !res.OK || res.Stdout == "" {
		return nil
	}
	var files []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		path = strings.Trim(path, `"`)
		if path != "" {
			files = append(files, path)
		}
	}
	return files
}

// Checkout switches to an existing branch.
func (g *Repo) Checkout(ctx context.Context, name string) bool {
	return g.r.Run(ctx, "checkout", name).OK
}

// CreateBranch creates a branch at base and checks it out.
func (g *Repo) CreateBranch(ctx context.Context, name, base string) bool {
	if base == "" {
		return g.r.Run(ctx, "checkout", "-b", name).OK
	}
	return g.r.Run(ctx, "checkout", "-b", name, base).OK
}

// MergeNoFF merges source into the current branch with a merge commit.
func (g *Repo) MergeNoFF(ctx context.Context, source, message string) bool {
	return g.r.Run(ctx, "merge", "--no-ff", "-m", message, source).OK
}

// MergeAbort aborts an in-progress merge, leaving the tree clean.
func (g *Repo) MergeAbort(ctx context.Context) bool {
	return g.r.Run(ctx, "merge", "--abort").OK
}

// Fetch updates remote tracking refs from origin.
func (g *Repo) Fetch(ctx context.Context) bool {
	return g.r.Run(ctx, "fetch", "origin").OK
}

// AddAll stages every change in the working tree.
func (g *Repo) AddAll(ctx context.Context) bool {
	return g.r.Run(ctx, "add", "-A").OK
}

// Unstage removes a path from the index without touching the worktree.
func (g *Repo) Unstage(ctx context.Context, path string) bool {
	return g.r.Run(ctx, "reset", "-q", "HEAD", "--", path).OK
}

// HasStaged reports whether anything is staged for commit.
// `diff --cached --quiet` exits non-zero exactly when the index differs
// from HEAD, so a failed run means there is something to commit.
func (g *Repo) HasStaged(ctx context.Context) bool {
	return !g.r.Run(ctx, "diff", "--cached", "--quiet").OK
}

// CommitFile commits the index using the file at path as the message.
func (g *Repo) CommitFile(ctx context.Context, path string) bool {
	return g.r.Run(ctx, "commit", "-F", path).OK
}

// Push pushes the branch to origin without changing upstream config.
func (g *Repo) Push(ctx context.Context, branch string) bool {
	return g.r.Run(ctx, "push", "origin", branch).OK
}

// PushSetUpstream pushes the branch and records origin as its upstream.
func (g *Repo) PushSetUpstream(ctx context.Context, branch string, force bool) bool {
	if force {
		return g.r.Run(ctx, "push", "--force", "-u", "origin", branch).OK
	}
	return g.r.Run(ctx, "push", "-u", "origin", branch).OK
}

// PullNoRebase pulls the current branch, merging (never rebasing) on
// divergence.
func (g *Repo) PullNoRebase(ctx context.Context) bool {
	return g.r.Run(ctx, "pull", "--no-rebase", "origin").OK
}
