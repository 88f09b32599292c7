package rollover

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dayfold/dayfold/internal/branch"
	"github.com/dayfold/dayfold/internal/config"
	"github.com/dayfold/dayfold/internal/gitx"
	"github.com/dayfold/dayfold/internal/output"
)

// fakeRunner scripts git responses by joined argument string. Unscripted
// branch probes read as "branch absent"; other unscripted commands
// succeed with empty output.
type fakeRunner struct {
	results map[string]gitx.Result
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, args ...string) gitx.Result {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	if r, ok := f.results[key]; ok {
		return r
	}
	if args[0] == "rev-parse" && strings.Contains(key, "--verify") {
		return gitx.Result{OK: false}
	}
	return gitx.Result{OK: true}
}

func fakePlanner(cfg *config.Config, branches []string, dirty bool) (*Planner, *fakeRunner) {
	f := &fakeRunner{results: map[string]gitx.Result{
		"branch --format=%(refname:short)": {OK: true, Stdout: strings.Join(branches, "\n")},
		"status --porcelain -uall":         {OK: true},
	}}
	if dirty {
		f.results["status --porcelain -uall"] = gitx.Result{OK: true, Stdout: " M main.go"}
	}
	for _, b := range branches {
		f.results["rev-parse --verify --quiet refs/heads/"+b] = gitx.Result{OK: true}
	}
	return NewPlanner(cfg, branch.NewNamer(cfg), gitx.NewRepo(f), nil), f
}

func TestDecide_NotNeededWhenDailyExists(t *testing.T) {
	cfg := config.Default()
	p, _ := fakePlanner(cfg, []string{"main", "v0.01", "daily/2026-08-30"}, false)

	d := p.Decide(context.Background(), "2026-08-30")
	assert.Equal(t, StateNotNeeded, d.State)
	assert.Equal(t, "daily/2026-08-30", d.DailyBranch)
	assert.Equal(t, "daily/2026-08-30", d.ExistingDaily)
	assert.Empty(t, d.Plan)
}

func TestDecide_ForceOverridesExisting(t *testing.T) {
	cfg := config.Default()
	cfg.ForceRollover = true
	p, _ := fakePlanner(cfg, []string{"main", "v0.01", "daily/2026-08-30"}, false)

	d := p.Decide(context.Background(), "2026-08-30")
	assert.Equal(t, StateInProgress, d.State)
	assert.NotEmpty(t, d.Plan)
}

func TestDecide_BlockedOnDirtyTree(t *testing.T) {
	cfg := config.Default()
	p, _ := fakePlanner(cfg, []string{"main", "v0.01", "daily/2026-08-29"}, true)

	d := p.Decide(context.Background(), "2026-08-30")
	assert.Equal(t, StateBlocked, d.State)
	assert.Equal(t, "daily/2026-08-29", d.ExistingDaily)
	// Plan is still produced so the operator can see what was deferred.
	assert.NotEmpty(t, d.Plan)
}

func TestDecide_PendingWhenPromptEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.RolloverPrompt = true
	p, _ := fakePlanner(cfg, []string{"main"}, false)

	d := p.Decide(context.Background(), "2026-08-30")
	assert.Equal(t, StatePending, d.State)
}

func TestPlan_FirstRolloverEver(t *testing.T) {
	cfg := config.Default()
	p, _ := fakePlanner(cfg, []string{"main"}, false)

	d := p.Decide(context.Background(), "2026-08-30")
	require.Equal(t, StateInProgress, d.State)

	// No prior version or daily branch: create version at start minor
	// from the base ref, then create and push the daily branch.
	require.Len(t, d.Plan, 4)
	assert.Equal(t, Step{Action: ActionCreate, Source: "origin/main", Target: "v0.01"}, d.Plan[0])
	assert.Equal(t, Step{Action: ActionPush, Target: "v0.01"}, d.Plan[1])
	assert.Equal(t, Step{Action: ActionCreate, Source: "v0.01", Target: "daily/2026-08-30"}, d.Plan[2])
	assert.Equal(t, Step{Action: ActionPush, Target: "daily/2026-08-30"}, d.Plan[3])
}

func TestPlan_FullSequence(t *testing.T) {
	cfg := config.Default()
	p, _ := fakePlanner(cfg, []string{"main", "v0.03", "daily/2026-08-29"}, false)

	d := p.Decide(context.Background(), "2026-08-30")
	require.Equal(t, StateInProgress, d.State)

	want := []Step{
		{Action: ActionMerge, Source: "v0.03", Target: "main"},
		{Action: ActionPush, Target: "main"},
		{Action: ActionCreate, Source: "origin/main", Target: "v0.04"},
		{Action: ActionMerge, Source: "daily/2026-08-29", Target: "v0.04"},
		{Action: ActionPush, Target: "v0.04"},
		{Action: ActionCreate, Source: "v0.04", Target: "daily/2026-08-30"},
		{Action: ActionPush, Target: "daily/2026-08-30"},
	}
	assert.Equal(t, want, d.Plan)
}

func TestPlan_CustomStep(t *testing.T) {
	cfg := config.Default()
	cfg.MinorStep = 5
	p, _ := fakePlanner(cfg, []string{"main", "v0.10"}, false)

	d := p.Decide(context.Background(), "2026-08-30")
	var created []string
	for _, s := range d.Plan {
		if s.Action == ActionCreate {
			created = append(created, s.Target)
		}
	}
	assert.Contains(t, created, "v0.15")
}

// New version minors always advance by exactly the configured step from
// the highest existing minor, or sit at the start minor when none exist.
func TestPlan_MinorMonotonicity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := config.Default()
		cfg.MinorStep = rapid.IntRange(1, 10).Draw(rt, "step")
		cfg.StartMinor = rapid.IntRange(0, 5).Draw(rt, "start")
		if err := cfg.Validate(); err != nil {
			rt.Fatalf("validate: %v", err)
		}

		namer := branch.NewNamer(cfg)
		minors := rapid.SliceOfN(rapid.IntRange(0, 50), 0, 5).Draw(rt, "minors")
		branches := []string{"main"}
		highest, have := 0, false
		for _, m := range minors {
			branches = append(branches, namer.VersionName(m))
			if !have || m > highest {
				highest, have = m, true
			}
		}

		p, _ := fakePlanner(cfg, branches, false)
		d := p.Decide(context.Background(), "2026-08-30")

		want := cfg.StartMinor
		if have {
			want = highest + cfg.MinorStep
		}
		found := false
		for _, s := range d.Plan {
			if s.Action == ActionCreate && s.Source == cfg.BaseRef {
				found = true
				if s.Target != namer.VersionName(want) {
					rt.Errorf("created %s, want %s", s.Target, namer.VersionName(want))
				}
			}
		}
		if !found {
			rt.Errorf("plan has no version-create step: %v", d.Plan)
		}
	})
}

// --- executor tests against a real repository ---

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

func commitFile(t *testing.T, dir, name, content, msg string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	require.NoError(t, exec.Command("git", "-C", dir, "add", name).Run())
	require.NoError(t, exec.Command("git", "-C", dir, "commit", "-m", msg).Run())
}

func quietUI() *output.UI {
	ui := output.New()
	ui.Out = &bytes.Buffer{}
	ui.ErrOut = &bytes.Buffer{}
	return ui
}

func realSetup(t *testing.T) (*config.Config, *gitx.Repo, string) {
	t.Helper()
	dir := t.TempDir()
	initTestRepo(t, dir)
	commitFile(t, dir, "README.md", "hello", "chore: init")

	bare := t.TempDir()
	require.NoError(t, exec.Command("git", "init", "--bare", "-b", "main", bare).Run())
	require.NoError(t, exec.Command("git", "-C", dir, "remote", "add", "origin", bare).Run())
	require.NoError(t, exec.Command("git", "-C", dir, "push", "-u", "origin", "main").Run())

	cfg := config.Default()
	cfg.BaseRef = "main" // no remote-tracking refs needed in tests
	require.NoError(t, cfg.Validate())

	repo := gitx.NewRepo(gitx.NewExecRunner(dir, quietUI()))
	return cfg, repo, dir
}

func simplePush(repo *gitx.Repo) PushFunc {
	return func(ctx context.Context, name string) bool {
		return repo.PushSetUpstream(ctx, name, false)
	}
}

func TestExecute_FirstRollover(t *testing.T) {
	cfg, repo, _ := realSetup(t)
	ctx := context.Background()

	p := NewPlanner(cfg, branch.NewNamer(cfg), repo, nil)
	d := p.Decide(ctx, "2026-08-30")
	require.Equal(t, StateInProgress, d.State)

	e := NewExecutor(repo, quietUI(), simplePush(repo))
	assert.Equal(t, StateComplete, e.Execute(ctx, d.Plan))

	assert.True(t, repo.BranchExists(ctx, "v0.01"))
	assert.True(t, repo.BranchExists(ctx, "daily/2026-08-30"))
	assert.True(t, repo.RemoteBranchExists(ctx, "daily/2026-08-30"))

	current, ok := repo.CurrentBranch(ctx)
	require.True(t, ok)
	assert.Equal(t, "daily/2026-08-30", current)
}

func TestExecute_SecondDayFoldsTowardTrunk(t *testing.T) {
	cfg, repo, dir := realSetup(t)
	ctx := context.Background()
	p := NewPlanner(cfg, branch.NewNamer(cfg), repo, nil)
	e := NewExecutor(repo, quietUI(), simplePush(repo))

	// Day one.
	d := p.Decide(ctx, "2026-08-29")
	require.Equal(t, StateComplete, e.Execute(ctx, d.Plan))
	commitFile(t, dir, "work.txt", "day one", "feat: day one work")

	// Day two.
	d = p.Decide(ctx, "2026-08-30")
	require.Equal(t, StateInProgress, d.State)
	require.Equal(t, StateComplete, e.Execute(ctx, d.Plan))

	assert.True(t, repo.BranchExists(ctx, "v0.02"))
	assert.True(t, repo.BranchExists(ctx, "daily/2026-08-30"))

	// Day one's work was folded into the new version branch.
	out, err := exec.Command("git", "-C", dir, "log", "v0.02", "--format=%s").Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "feat: day one work")

	// Day one's version branch reached trunk.
	out, err = exec.Command("git", "-C", dir, "log", "main", "--format=%s").Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "merge v0.01 into main")
}

func TestExecute_Idempotence(t *testing.T) {
	cfg, repo, _ := realSetup(t)
	ctx := context.Background()
	p := NewPlanner(cfg, branch.NewNamer(cfg), repo, nil)
	e := NewExecutor(repo, quietUI(), simplePush(repo))

	d := p.Decide(ctx, "2026-08-30")
	require.Equal(t, StateComplete, e.Execute(ctx, d.Plan))
	before := repo.LocalBranches(ctx)

	// Second decision on the same day is a pure no-op.
	d = p.Decide(ctx, "2026-08-30")
	assert.Equal(t, StateNotNeeded, d.State)
	assert.Equal(t, before, repo.LocalBranches(ctx))
}

func TestExecute_MergeConflictAbortsCleanly(t *testing.T) {
	cfg, repo, dir := realSetup(t)
	ctx := context.Background()

	// Prior version branch conflicts with trunk.
	require.NoError(t, exec.Command("git", "-C", dir, "checkout", "-b", "v0.01").Run())
	commitFile(t, dir, "README.md", "version side", "feat: version change")
	require.NoError(t, exec.Command("git", "-C", dir, "checkout", "main").Run())
	commitFile(t, dir, "README.md", "trunk side", "feat: trunk change")

	p := NewPlanner(cfg, branch.NewNamer(cfg), repo, nil)
	d := p.Decide(ctx, "2026-08-30")
	require.Equal(t, StateInProgress, d.State)

	e := NewExecutor(repo, quietUI(), simplePush(repo))
	assert.Equal(t, StateFailed, e.Execute(ctx, d.Plan))

	// Aborted merge leaves the tree clean, and nothing after the failed
	// step ran.
	dirty, ok := repo.IsDirty(ctx)
	require.True(t, ok)
	assert.False(t, dirty)
	assert.False(t, repo.BranchExists(ctx, "v0.02"))
	assert.False(t, repo.BranchExists(ctx, "daily/2026-08-30"))
}
