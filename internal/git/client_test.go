package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRepo initialises a temporary git repository and returns a GitClient
// pointing at it. The repository contains a single "Initial commit".
func newTestRepo(t *testing.T) *GitClient {
	t.Helper()
	dir := t.TempDir()

	mustRun(t, dir, "git", "init", "-b", "main")
	mustRun(t, dir, "git", "config", "user.email", "test@example.com")
	mustRun(t, dir, "git", "config", "user.name", "Test")

	writeFile(t, dir, "README.md", "# Test\n")
	mustRun(t, dir, "git", "add", ".")
	mustRun(t, dir, "git", "commit", "-m", "Initial commit")

	c, err := NewGitClient(dir)
	require.NoError(t, err)
	return c
}

func mustRun(t *testing.T, dir, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "command failed: %s %v\n%s", name, args, out)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
	require.NoError(t, err)
}

// ---------------------------------------------------------------------------
// NewGitClient tests
// ---------------------------------------------------------------------------

func TestNewGitClient_ValidRepo(t *testing.T) {
	c := newTestRepo(t)
	assert.NotNil(t, c)
	assert.Equal(t, "git", c.GitBin)
}

func TestNewGitClient_NotARepo(t *testing.T) {
	dir := t.TempDir() // plain directory, no git init

	_, err := NewGitClient(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a git repository")
}

// ---------------------------------------------------------------------------
// Branch tests
// ---------------------------------------------------------------------------

func TestCurrentBranch(t *testing.T) {
	c := newTestRepo(t)
	branch, err := c.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestBranchExists(t *testing.T) {
	c := newTestRepo(t)
	ctx := context.Background()

	exists, err := c.BranchExists(ctx, "main")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.BranchExists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateBranch(t *testing.T) {
	c := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, c.CreateBranch(ctx, "testmend/fix-20250314", ""))

	branch, err := c.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "testmend/fix-20250314", branch)

	exists, err := c.BranchExists(ctx, "testmend/fix-20250314")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateBranch_WithBase(t *testing.T) {
	c := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, c.CreateBranch(ctx, "feature", ""))
	require.NoError(t, c.Checkout(ctx, "main"))
	require.NoError(t, c.CreateBranch(ctx, "fix-from-feature", "feature"))

	branch, err := c.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fix-from-feature", branch)
}

func TestCreateBranch_DuplicateName(t *testing.T) {
	c := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, c.CreateBranch(ctx, "dup", ""))
	require.NoError(t, c.Checkout(ctx, "main"))
	assert.Error(t, c.CreateBranch(ctx, "dup", ""))
}

func TestCheckout_NonExistentBranch(t *testing.T) {
	c := newTestRepo(t)
	assert.Error(t, c.Checkout(context.Background(), "ghost"))
}

// ---------------------------------------------------------------------------
// Status tests
// ---------------------------------------------------------------------------

func TestIsClean_Transitions(t *testing.T) {
	c := newTestRepo(t)
	ctx := context.Background()

	clean, err := c.IsClean(ctx)
	require.NoError(t, err)
	assert.True(t, clean)

	writeFile(t, c.WorkDir, "README.md", "# changed\n")
	clean, err = c.IsClean(ctx)
	require.NoError(t, err)
	assert.False(t, clean)

	dirty, err := c.HasUncommittedChanges(ctx)
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestHasUncommittedChanges_StagedFile(t *testing.T) {
	c := newTestRepo(t)
	ctx := context.Background()

	writeFile(t, c.WorkDir, "new.py", "x = 1\n")
	mustRun(t, c.WorkDir, "git", "add", "new.py")

	dirty, err := c.HasUncommittedChanges(ctx)
	require.NoError(t, err)
	assert.True(t, dirty)
}

// ---------------------------------------------------------------------------
// Stash tests
// ---------------------------------------------------------------------------

func TestStash_CleanRepo(t *testing.T) {
	c := newTestRepo(t)
	stashed, err := c.Stash(context.Background(), "msg")
	require.NoError(t, err)
	assert.False(t, stashed)
}

func TestStash_RestoredAfterPop(t *testing.T) {
	c := newTestRepo(t)
	ctx := context.Background()

	writeFile(t, c.WorkDir, "README.md", "# dirty\n")
	stashed, err := c.Stash(ctx, "msg")
	require.NoError(t, err)
	require.True(t, stashed)

	clean, err := c.IsClean(ctx)
	require.NoError(t, err)
	assert.True(t, clean)

	require.NoError(t, c.StashPop(ctx))
	data, err := os.ReadFile(filepath.Join(c.WorkDir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# dirty\n", string(data))
}

func TestStash_UntrackedFilesNotStashed(t *testing.T) {
	c := newTestRepo(t)
	ctx := context.Background()

	writeFile(t, c.WorkDir, "untracked.txt", "x\n")
	stashed, err := c.Stash(ctx, "msg")
	require.NoError(t, err)
	assert.False(t, stashed, "untracked-only changes must not create a stash entry")
}

func TestStashPop_EmptyStash(t *testing.T) {
	c := newTestRepo(t)
	assert.Error(t, c.StashPop(context.Background()))
}

// ---------------------------------------------------------------------------
// Commit tests
// ---------------------------------------------------------------------------

func TestAddAndCommit(t *testing.T) {
	c := newTestRepo(t)
	ctx := context.Background()

	before, err := c.HeadCommit(ctx)
	require.NoError(t, err)

	writeFile(t, c.WorkDir, "test_sample.py", "def test_a():\n    assert True\n")
	require.NoError(t, c.Add(ctx, "test_sample.py"))
	require.NoError(t, c.Commit(ctx, "Fix 1 failing test(s)"))

	after, err := c.HeadCommit(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	clean, err := c.IsClean(ctx)
	require.NoError(t, err)
	assert.True(t, clean)
}

func TestAdd_NoPathsIsNoOp(t *testing.T) {
	c := newTestRepo(t)
	assert.NoError(t, c.Add(context.Background()))
}

func TestCommit_NothingStaged(t *testing.T) {
	c := newTestRepo(t)
	assert.Error(t, c.Commit(context.Background(), "empty"))
}

// ---------------------------------------------------------------------------
// Diff tests
// ---------------------------------------------------------------------------

func TestDiffStat(t *testing.T) {
	c := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, c.CreateBranch(ctx, "fix", ""))
	writeFile(t, c.WorkDir, "README.md", "# Test\nmore\n")
	require.NoError(t, c.Add(ctx, "README.md"))
	require.NoError(t, c.Commit(ctx, "change"))

	stats, err := c.DiffStat(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesChanged)
	assert.Equal(t, 1, stats.Insertions)
	assert.Zero(t, stats.Deletions)
}

func TestParseDiffStat(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want DiffStats
	}{
		{
			name: "full summary",
			in:   " README.md | 3 +-\n 3 files changed, 45 insertions(+), 12 deletions(-)",
			want: DiffStats{FilesChanged: 3, Insertions: 45, Deletions: 12},
		},
		{
			name: "insertions only",
			in:   " a.py | 5 +\n 1 file changed, 5 insertions(+)",
			want: DiffStats{FilesChanged: 1, Insertions: 5},
		},
		{
			name: "deletions only",
			in:   " a.py | 3 -\n 1 file changed, 3 deletions(-)",
			want: DiffStats{FilesChanged: 1, Deletions: 3},
		},
		{
			name: "empty output",
			in:   "",
			want: DiffStats{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDiffStat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}
