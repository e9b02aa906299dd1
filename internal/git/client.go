// Package git wraps the git and gh CLIs for branch-scoped fix sessions:
// creating the working branch, committing repaired test files, and opening a
// pull request when the session completes.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// GitClient wraps git CLI operations. All methods use os/exec to call the
// git binary, following the same pattern as gh, lazygit, and k9s.
type GitClient struct {
	// WorkDir is the working directory for git commands.
	// If empty, commands run in the current directory.
	WorkDir string

	// GitBin is the path to the git binary. Defaults to "git".
	GitBin string
}

// NewGitClient creates a new GitClient for the given working directory.
// It verifies that git is installed and the directory is inside a
// repository.
func NewGitClient(workDir string) (*GitClient, error) {
	g := &GitClient{
		WorkDir: workDir,
		GitBin:  "git",
	}
	if _, err := g.run(context.Background(), "rev-parse", "--git-dir"); err != nil {
		return nil, fmt.Errorf("git: not a git repository or git not installed: %w", err)
	}
	return g, nil
}

// --- Branch operations ---

// CurrentBranch returns the name of the current branch.
// Returns an error if the repo is in a detached HEAD state.
func (g *GitClient) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git: current branch: %w", err)
	}
	branch := strings.TrimSpace(out)
	if branch == "HEAD" {
		return "", fmt.Errorf("git: current branch: detached HEAD state")
	}
	return branch, nil
}

// CreateBranch creates a new branch with the given name, optionally
// branching from the given base ref. If base is empty, branches from the
// current HEAD.
func (g *GitClient) CreateBranch(ctx context.Context, name, base string) error {
	args := []string{"checkout", "-b", name}
	if base != "" {
		args = append(args, base)
	}
	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("git: create branch %q: %w", name, err)
	}
	return nil
}

// Checkout switches to the given branch.
func (g *GitClient) Checkout(ctx context.Context, branch string) error {
	if _, err := g.run(ctx, "checkout", branch); err != nil {
		return fmt.Errorf("git: checkout %q: %w", branch, err)
	}
	return nil
}

// BranchExists reports whether the named local branch exists.
func (g *GitClient) BranchExists(ctx context.Context, branch string) (bool, error) {
	exitCode, stdout, _, err := g.runSilent(ctx, "rev-parse", "--verify", "refs/heads/"+branch)
	if err != nil && exitCode == -1 {
		// exec itself failed (e.g., git binary not found).
		return false, fmt.Errorf("git: branch exists %q: %w", branch, err)
	}
	return exitCode == 0 && strings.TrimSpace(stdout) != "", nil
}

// --- Status operations ---

// HasUncommittedChanges reports whether the working tree has uncommitted
// changes.
func (g *GitClient) HasUncommittedChanges(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git: status: %w", err)
	}
	return strings.TrimSpace(out) != "", nil
}

// IsClean reports whether the working tree is clean (no uncommitted
// changes).
func (g *GitClient) IsClean(ctx context.Context) (bool, error) {
	dirty, err := g.HasUncommittedChanges(ctx)
	if err != nil {
		return false, err
	}
	return !dirty, nil
}

// --- Stash operations ---

// Stash stashes current changes with the given message. Returns true if
// changes were stashed, false if the working tree was already clean or if
// there were only untracked files (which git stash does not stash by
// default).
func (g *GitClient) Stash(ctx context.Context, message string) (bool, error) {
	dirty, err := g.HasUncommittedChanges(ctx)
	if err != nil {
		return false, fmt.Errorf("git: stash: checking status: %w", err)
	}
	if !dirty {
		return false, nil
	}
	out, err := g.run(ctx, "stash", "push", "-m", message)
	if err != nil {
		return false, fmt.Errorf("git: stash push: %w", err)
	}
	// git stash outputs "No local changes to save" when there is nothing to
	// stash (e.g., only untracked files and -u was not passed). In that case
	// no stash entry was created, so we must return false to prevent a
	// spurious StashPop.
	if strings.Contains(out, "No local changes to save") {
		return false, nil
	}
	return true, nil
}

// StashPop pops the most recent stash entry.
func (g *GitClient) StashPop(ctx context.Context) error {
	if _, err := g.run(ctx, "stash", "pop"); err != nil {
		return fmt.Errorf("git: stash pop: %w", err)
	}
	return nil
}

// --- Commit operations ---

// Add stages the given paths.
func (g *GitClient) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("git: add: %w", err)
	}
	return nil
}

// Commit records the staged changes with the given message. Returns an
// error when there is nothing staged.
func (g *GitClient) Commit(ctx context.Context, message string) error {
	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("git: commit: %w", err)
	}
	return nil
}

// HeadCommit returns the short SHA of the current HEAD commit.
func (g *GitClient) HeadCommit(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git: head commit: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// --- Diff operations ---

// DiffStats summarises the number of changed files and line counts.
type DiffStats struct {
	FilesChanged int
	Insertions   int
	Deletions    int
}

// DiffStat returns aggregate change statistics between base and HEAD.
func (g *GitClient) DiffStat(ctx context.Context, base string) (*DiffStats, error) {
	out, err := g.run(ctx, "diff", "--stat", base+"...HEAD")
	if err != nil {
		return nil, fmt.Errorf("git: diff stat from %q: %w", base, err)
	}
	stats, err := parseDiffStat(out)
	if err != nil {
		return nil, fmt.Errorf("git: diff stat parse: %w", err)
	}
	return stats, nil
}

// parseDiffStat parses the summary line produced by `git diff --stat`.
// Example summary lines:
//
//	"3 files changed, 45 insertions(+), 12 deletions(-)"
//	"1 file changed, 5 insertions(+)"
//	"1 file changed, 3 deletions(-)"
func parseDiffStat(output string) (*DiffStats, error) {
	stats := &DiffStats{}
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) == 0 {
		return stats, nil
	}
	// The summary line is always the last non-empty line.
	var summary string
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			summary = strings.TrimSpace(lines[i])
			break
		}
	}
	if summary == "" {
		return stats, nil
	}

	for _, seg := range strings.Split(summary, ", ") {
		seg = strings.TrimSpace(seg)
		switch {
		case strings.Contains(seg, "file"):
			n, err := parseLeadingInt(seg)
			if err != nil {
				return nil, fmt.Errorf("parsing files changed %q: %w", seg, err)
			}
			stats.FilesChanged = n
		case strings.Contains(seg, "insertion"):
			n, err := parseLeadingInt(seg)
			if err != nil {
				return nil, fmt.Errorf("parsing insertions %q: %w", seg, err)
			}
			stats.Insertions = n
		case strings.Contains(seg, "deletion"):
			n, err := parseLeadingInt(seg)
			if err != nil {
				return nil, fmt.Errorf("parsing deletions %q: %w", seg, err)
			}
			stats.Deletions = n
		}
	}
	return stats, nil
}

// parseLeadingInt extracts the leading integer from a string like
// "3 files changed".
func parseLeadingInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	spaceIdx := strings.IndexByte(s, ' ')
	if spaceIdx < 0 {
		return 0, fmt.Errorf("no space found in %q", s)
	}
	return strconv.Atoi(s[:spaceIdx])
}

// --- Push operations ---

// Push pushes the current branch to the named remote.
// If setUpstream is true, sets the upstream tracking reference (-u).
func (g *GitClient) Push(ctx context.Context, remote string, setUpstream bool) error {
	branch, err := g.CurrentBranch(ctx)
	if err != nil {
		return fmt.Errorf("git: push: %w", err)
	}
	args := []string{"push"}
	if setUpstream {
		args = append(args, "-u")
	}
	args = append(args, remote, branch)
	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("git: push %s %s: %w", remote, branch, err)
	}
	return nil
}

// --- Internal helpers ---

// run executes a git command and returns stdout.
// stderr is included in the error message when the command fails.
func (g *GitClient) run(ctx context.Context, args ...string) (string, error) {
	_, stdout, stderr, err := g.runSilent(ctx, args...)
	if err != nil {
		return "", err
	}
	if stdout == "" && stderr != "" {
		// Some git commands (e.g., checkout) write to stderr on success.
		return stderr, nil
	}
	return stdout, nil
}

// runSilent executes a git command and returns the exit code, stdout,
// stderr, and an error. The error is non-nil for both exec failures
// (exitCode=-1, e.g. git binary not found) and non-zero git exits
// (exitCode>0). Callers that need to distinguish the two cases check
// whether exitCode == -1.
func (g *GitClient) runSilent(ctx context.Context, args ...string) (int, string, string, error) {
	bin := g.GitBin
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = g.WorkDir

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
			stderr := strings.TrimSpace(stderrBuf.String())
			stdout := strings.TrimSpace(stdoutBuf.String())
			return exitCode, stdout, stderr, fmt.Errorf("exit status %d: %s", exitCode, stderr)
		}
		// The process could not be started at all.
		return -1, "", "", runErr
	}

	return exitCode, stdoutBuf.String(), stderrBuf.String(), nil
}
