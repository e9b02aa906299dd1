package git

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// BranchManager prepares and finalises the working branch of a fix session.
type BranchManager struct {
	client   *GitClient
	template string
	base     string
	logger   *log.Logger

	// now is replaceable for deterministic branch names in tests.
	now func() time.Time
}

// NewBranchManager creates a BranchManager. template names the working
// branch; {date} expands to YYYYMMDD. base is the ref the branch is created
// from; empty means current HEAD. logger may be nil.
func NewBranchManager(client *GitClient, template, base string, logger *log.Logger) *BranchManager {
	if template == "" {
		template = "testmend/fix-{date}"
	}
	return &BranchManager{
		client:   client,
		template: template,
		base:     base,
		logger:   logger,
		now:      time.Now,
	}
}

// BranchName returns the expanded working branch name.
func (bm *BranchManager) BranchName() string {
	return strings.ReplaceAll(bm.template, "{date}", bm.now().Format("20060102"))
}

// Prepare stashes any uncommitted changes and creates the working branch.
// The returned restore function pops the stash and must always be invoked,
// typically via defer. When the branch already exists it is checked out
// instead of created.
func (bm *BranchManager) Prepare(ctx context.Context) (branch string, restore func() error, err error) {
	branch = bm.BranchName()

	restore, err = bm.ensureClean(ctx)
	if err != nil {
		return "", nil, err
	}

	exists, err := bm.client.BranchExists(ctx, branch)
	if err != nil {
		return "", restore, err
	}
	if exists {
		if bm.logger != nil {
			bm.logger.Info("reusing existing fix branch", "branch", branch)
		}
		return branch, restore, bm.client.Checkout(ctx, branch)
	}

	if bm.logger != nil {
		bm.logger.Info("creating fix branch", "branch", branch, "base", bm.base)
	}
	return branch, restore, bm.client.CreateBranch(ctx, branch, bm.base)
}

// CommitFixes stages the given files and commits them. A session that
// modified no files commits nothing and returns nil.
func (bm *BranchManager) CommitFixes(ctx context.Context, files []string, fixedCount int) error {
	if len(files) == 0 {
		return nil
	}
	if err := bm.client.Add(ctx, files...); err != nil {
		return err
	}

	message := fmt.Sprintf("Fix %d failing test(s)", fixedCount)
	if err := bm.client.Commit(ctx, message); err != nil {
		return err
	}
	if bm.logger != nil {
		bm.logger.Info("fixes committed", "files", len(files), "fixed", fixedCount)
	}
	return nil
}

// ensureClean checks whether the working tree is clean. If dirty, it
// stashes the current changes and returns a function that pops the stash
// when called. If the tree is already clean, a no-op function is returned.
func (bm *BranchManager) ensureClean(ctx context.Context) (func() error, error) {
	stashed, err := bm.client.Stash(ctx, "testmend: auto-stash before fix session")
	if err != nil {
		return nil, fmt.Errorf("git: ensure clean: %w", err)
	}
	if !stashed {
		return func() error { return nil }, nil
	}
	return func() error {
		if popErr := bm.client.StashPop(ctx); popErr != nil {
			return fmt.Errorf("git: ensure clean: restoring stash: %w", popErr)
		}
		return nil
	}, nil
}
