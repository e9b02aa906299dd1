package fixer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// Generator is the fix-generation collaborator. Implementations construct
// a prompt from the failing test and request a proposed replacement at
// the given sampling temperature.
type Generator interface {
	GenerateFix(ctx context.Context, tc *TestCase, temperature float64) (*CodeChanges, error)
}

// ApplyResult is the outcome of applying a proposed change. Applied is
// false for expected rejections (invalid syntax); BackupPath is set
// whenever a backup was created, even on rejection, so the caller can
// roll back again after a later functional failure.
type ApplyResult struct {
	Applied    bool
	BackupPath string
	Reason     string
}

// Applier applies proposed changes to a file under backup discipline.
type Applier interface {
	// ApplyWithBackup writes the proposed change over the file after
	// taking a backup. A non-nil error means an unexpected failure
	// (backup creation, I/O); a rejected change is reported through
	// ApplyResult.Applied == false.
	ApplyWithBackup(file string, changes *CodeChanges) (*ApplyResult, error)

	// Restore reverts the file from a backup taken by ApplyWithBackup.
	Restore(file, backupPath string) error
}

// Verifier is the test-execution collaborator used to confirm a fix.
type Verifier interface {
	// VerifyFix reports whether the specific test now passes. A test
	// that fails to collect counts as not fixed.
	VerifyFix(ctx context.Context, testFile, testFunction string) (bool, error)
}

// WorkspaceValidator checks the workspace before every attempt.
type WorkspaceValidator interface {
	ValidateWorkspace(path string) error
	CheckDependencies() error
}

// Coordinator performs exactly one fix attempt for one test case at a
// given temperature. Retries are the orchestrator's responsibility.
type Coordinator struct {
	generator Generator
	applier   Applier
	verifier  Verifier
	validator WorkspaceValidator
	logger    *log.Logger

	// forceSuccess short-circuits the attempt to an immediate success.
	// Controlled testing and demo paths only.
	forceSuccess bool
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithForceSuccess enables the short-circuit success mode.
func WithForceSuccess(force bool) CoordinatorOption {
	return func(c *Coordinator) { c.forceSuccess = force }
}

// NewCoordinator creates a Coordinator from its collaborators. logger may
// be nil.
func NewCoordinator(
	gen Generator,
	applier Applier,
	verifier Verifier,
	validator WorkspaceValidator,
	logger *log.Logger,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		generator: gen,
		applier:   applier,
		verifier:  verifier,
		validator: validator,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AttemptFix performs one fix attempt for tc at the given temperature.
//
// Expected negative outcomes (change rejected, test still failing) return
// (false, nil) with the attempt recorded as failed. Unexpected failures
// (workspace validation, generation errors, I/O mid-apply) return a
// wrapped error; when an attempt was already started it is marked failed
// first. A successful attempt marks the case fixed, which is terminal.
func (c *Coordinator) AttemptFix(ctx context.Context, tc *TestCase, temperature float64) (bool, error) {
	if err := c.validateWorkspace(tc); err != nil {
		return false, err
	}

	attempt, err := tc.StartFixAttempt(temperature)
	if err != nil {
		return false, fmt.Errorf("fixer: attempt for %s: %w", tc.TestFunction, err)
	}

	if c.forceSuccess {
		if c.logger != nil {
			c.logger.Info("force success enabled, skipping fix generation", "test", tc.TestFunction)
		}
		if err := tc.MarkFixed(attempt); err != nil {
			return false, fmt.Errorf("fixer: forced success for %s: %w", tc.TestFunction, err)
		}
		return true, nil
	}

	changes, err := c.generator.GenerateFix(ctx, tc, temperature)
	if err != nil {
		c.failAttempt(tc, attempt)
		return false, fmt.Errorf("fixer: generating fix for %s: %w", tc.TestFunction, err)
	}

	applied, err := c.applier.ApplyWithBackup(tc.TestFile, changes)
	if err != nil {
		c.failAttempt(tc, attempt)
		return false, fmt.Errorf("fixer: applying fix to %s: %w", tc.TestFile, err)
	}
	if !applied.Applied {
		if c.logger != nil {
			c.logger.Warn("proposed change rejected",
				"test", tc.TestFunction,
				"reason", applied.Reason,
			)
		}
		c.failAttempt(tc, attempt)
		return false, nil
	}

	passed, err := c.verifier.VerifyFix(ctx, tc.TestFile, tc.TestFunction)
	if err != nil {
		c.restoreBestEffort(tc.TestFile, applied.BackupPath)
		c.failAttempt(tc, attempt)
		return false, fmt.Errorf("fixer: verifying fix for %s: %w", tc.TestFunction, err)
	}
	if !passed {
		// The change applied cleanly but the test still fails. Roll the
		// file back so the next attempt starts from a known state.
		c.restoreBestEffort(tc.TestFile, applied.BackupPath)
		c.failAttempt(tc, attempt)
		return false, nil
	}

	if err := tc.MarkFixed(attempt); err != nil {
		return false, fmt.Errorf("fixer: recording success for %s: %w", tc.TestFunction, err)
	}
	if c.logger != nil {
		c.logger.Info("fix verified", "test", tc.TestFunction, "temperature", temperature)
	}
	return true, nil
}

// AttemptManualFix supports the human-in-the-loop path: the workspace is
// validated and the test re-run with no generation or apply step. When the
// test now passes a zero-temperature attempt is recorded and the case is
// marked fixed.
func (c *Coordinator) AttemptManualFix(ctx context.Context, tc *TestCase) (bool, error) {
	if err := c.validateWorkspace(tc); err != nil {
		return false, err
	}

	passed, err := c.verifier.VerifyFix(ctx, tc.TestFile, tc.TestFunction)
	if err != nil {
		return false, fmt.Errorf("fixer: verifying manual fix for %s: %w", tc.TestFunction, err)
	}
	if !passed {
		return false, nil
	}

	attempt, err := tc.StartFixAttempt(0)
	if err != nil {
		return false, fmt.Errorf("fixer: manual fix for %s: %w", tc.TestFunction, err)
	}
	if err := tc.MarkFixed(attempt); err != nil {
		return false, fmt.Errorf("fixer: recording manual fix for %s: %w", tc.TestFunction, err)
	}
	return true, nil
}

// validateWorkspace runs the workspace checks that gate every attempt.
func (c *Coordinator) validateWorkspace(tc *TestCase) error {
	dir := parentDir(tc.TestFile)
	if err := c.validator.ValidateWorkspace(dir); err != nil {
		return fmt.Errorf("fixer: workspace validation for %s: %w", dir, err)
	}
	if err := c.validator.CheckDependencies(); err != nil {
		return fmt.Errorf("fixer: dependency check: %w", err)
	}
	return nil
}

// failAttempt marks the attempt failed, logging rather than propagating
// the invariant error: by the time we are cleaning up a failed attempt,
// surfacing a bookkeeping error would mask the original failure.
func (c *Coordinator) failAttempt(tc *TestCase, attempt *FixAttempt) {
	if err := tc.MarkAttemptFailed(attempt); err != nil && c.logger != nil {
		c.logger.Error("recording failed attempt", "test", tc.TestFunction, "error", err)
	}
}

// parentDir returns the directory containing the test file.
func parentDir(file string) string {
	return filepath.Dir(file)
}

// restoreBestEffort rolls the file back from its backup. A restore
// failure is logged, not fatal: the session outcome is already a failed
// attempt and the backup remains on disk for manual recovery.
func (c *Coordinator) restoreBestEffort(file, backupPath string) {
	if backupPath == "" {
		return
	}
	if err := c.applier.Restore(file, backupPath); err != nil {
		if c.logger != nil {
			c.logger.Warn("restore after failed verification", "file", file, "error", err)
		}
		return
	}
	if c.logger != nil {
		c.logger.Info("reverted file after failed verification", "file", file)
	}
}
