package gitx

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayfold/dayfold/internal/output"
)

// initTestRepo creates a git repo in dir with a user config so commits work on CI.
func initTestRepo(t *testing.T, dir string) {
	t.Helper()
	cmds := [][]string{
		{"git", "-C", dir, "init", "-b", "main"},
		{"git", "-C", dir, "config", "user.email", "test@test.com"},
		{"git", "-C", dir, "config", "user.name", "Test"},
	}
	for _, args := range cmds {
		require.NoError(t, exec.Command(args[0], args[1:]...).Run())
	}
}

// addOrigin wires a bare repo as origin so push/pull work without a network.
func addOrigin(t *testing.T, dir string) string {
	t.Helper()
	bare := t.TempDir()
	require.NoError(t, exec.Command("git", "init", "--bare", bare).Run())
	require.NoError(t, exec.Command("git", "-C", dir, "remote", "add", "origin", bare).Run())
	return bare
}

func testRepo(t *testing.T) (*Repo, string) {
	t.Helper()
	dir := t.TempDir()
	initTestRepo(t, dir)
	ui := output.New()
	ui.Out = &bytes.Buffer{}
	ui.ErrOut = &bytes.Buffer{}
	return NewRepo(NewExecRunner(dir, ui)), dir
}

func commitFile(t *testing.T, dir, name, content, msg string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	require.NoError(t, exec.Command("git", "-C", dir, "add", name).Run())
	require.NoError(t, exec.Command("git", "-C", dir, "commit", "-m", msg).Run())
}

func TestIsRepository(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsRepository(dir))
	initTestRepo(t, dir)
	assert.True(t, IsRepository(dir))
}

func TestExecRunner_FailureIsValue(t *testing.T) {
	repo, _ := testRepo(t)
	res := repo.Runner().Run(context.Background(), "rev-parse", "--verify", "no-such-ref")
	assert.False(t, res.OK)
}

func TestExecRunner_LogsCommand(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	out := &bytes.Buffer{}
	ui := output.New()
	ui.Out = out
	ui.ErrOut = &bytes.Buffer{}
	ui.SetVerbose(true)

	NewExecRunner(dir, ui).Run(context.Background(), "status", "--porcelain")
	assert.Contains(t, out.String(), "git status --porcelain")
}

func TestRepoRoot_And_GitDir(t *testing.T) {
	repo, dir := testRepo(t)
	ctx := context.Background()

	root, ok := repo.RepoRoot(ctx)
	require.True(t, ok)
	resolvedDir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	resolvedRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, resolvedDir, resolvedRoot)

	gitDir, ok := repo.GitDir(ctx)
	require.True(t, ok)
	assert.Equal(t, ".git", filepath.Base(gitDir))
}

func TestGitDir_LinkedWorktree(t *testing.T) {
	_, dir := testRepo(t)
	ctx := context.Background()
	commitFile(t, dir, "a.txt", "a", "init")

	wtPath := filepath.Join(t.TempDir(), "wt")
	require.NoError(t, exec.Command("git", "-C", dir, "worktree", "add", "-b", "side", wtPath).Run())

	ui := output.New()
	ui.Out = &bytes.Buffer{}
	ui.ErrOut = &bytes.Buffer{}
	wtRepo := NewRepo(NewExecRunner(wtPath, ui))

	gitDir, ok := wtRepo.GitDir(ctx)
	require.True(t, ok)
	assert.Contains(t, gitDir, filepath.Join(".git", "worktrees"))
}

func TestCurrentBranch_And_Branches(t *testing.T) {
	repo, dir := testRepo(t)
	ctx := context.Background()
	commitFile(t, dir, "a.txt", "a", "init")

	branch, ok := repo.CurrentBranch(ctx)
	require.True(t, ok)
	assert.Equal(t, "main", branch)

	assert.True(t, repo.BranchExists(ctx, "main"))
	assert.False(t, repo.BranchExists(ctx, "daily/2026-08-30"))

	require.True(t, repo.CreateBranch(ctx, "daily/2026-08-30", ""))
	assert.True(t, repo.BranchExists(ctx, "daily/2026-08-30"))

	branches := repo.LocalBranches(ctx)
	assert.Contains(t, branches, "main")
	assert.Contains(t, branches, "daily/2026-08-30")
}

func TestIsDirty_And_ChangedFiles(t *testing.T) {
	repo, dir := testRepo(t)
	ctx := context.Background()
	commitFile(t, dir, "a.txt", "a", "init")

	dirty, ok := repo.IsDirty(ctx)
	require.True(t, ok)
	assert.False(t, dirty)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	dirty, ok = repo.IsDirty(ctx)
	require.True(t, ok)
	assert.True(t, dirty)

	files := repo.ChangedFiles(ctx)
	assert.Equal(t, []string{"b.txt"}, files)
}

func TestChangedFiles_ExpandsUntrackedDirs(t *testing.T) {
	repo, dir := testRepo(t)
	ctx := context.Background()
	commitFile(t, dir, "a.txt", "a", "init")

	sub := filepath.Join(dir, "scratch", "notes")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "one.msg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "two.msg"), []byte("y"), 0o644))

	files := repo.ChangedFiles(ctx)
	assert.ElementsMatch(t, []string{"scratch/notes/one.msg", "scratch/notes/two.msg"}, files)
}

func TestStaging_And_Commit(t *testing.T) {
	repo, dir := testRepo(t)
	ctx := context.Background()
	commitFile(t, dir, "a.txt", "a", "init")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "COMMIT_MESSAGE.md"), []byte("msg"), 0o644))

	require.True(t, repo.AddAll(ctx))
	require.True(t, repo.Unstage(ctx, "COMMIT_MESSAGE.md"))
	assert.True(t, repo.HasStaged(ctx))

	msgPath := filepath.Join(t.TempDir(), "msg")
	require.NoError(t, os.WriteFile(msgPath, []byte("feat(core): add b"), 0o644))
	require.True(t, repo.CommitFile(ctx, msgPath))

	out, err := exec.Command("git", "-C", dir, "log", "-1", "--format=%s").Output()
	require.NoError(t, err)
	assert.Equal(t, "feat(core): add b", string(bytes.TrimSpace(out)))

	// message file stayed out of the commit
	err = exec.Command("git", "-C", dir, "ls-files", "--error-unmatch", "COMMIT_MESSAGE.md").Run()
	assert.Error(t, err)

	assert.False(t, repo.HasStaged(ctx))
}

func TestMergeNoFF_And_Abort(t *testing.T) {
	repo, dir := testRepo(t)
	ctx := context.Background()
	commitFile(t, dir, "a.txt", "base", "init")

	require.True(t, repo.CreateBranch(ctx, "side", ""))
	commitFile(t, dir, "a.txt", "side", "side change")
	require.True(t, repo.Checkout(ctx, "main"))
	commitFile(t, dir, "a.txt", "main", "main change")

	assert.False(t, repo.MergeNoFF(ctx, "side", "merge side"))
	assert.True(t, repo.MergeAbort(ctx))

	dirty, ok := repo.IsDirty(ctx)
	require.True(t, ok)
	assert.False(t, dirty)
}

func TestPush_And_RemoteBranchExists(t *testing.T) {
	repo, dir := testRepo(t)
	ctx := context.Background()
	commitFile(t, dir, "a.txt", "a", "init")
	addOrigin(t, dir)

	assert.False(t, repo.RemoteBranchExists(ctx, "main"))
	require.True(t, repo.PushSetUpstream(ctx, "main", false))
	assert.True(t, repo.RemoteBranchExists(ctx, "main"))

	commitFile(t, dir, "b.txt", "b", "second")
	assert.True(t, repo.Push(ctx, "main"))
}
