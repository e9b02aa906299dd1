// Package apply writes LLM-proposed code changes to test files with a
// backup-first contract: the original content is copied into a sibling
// .backups directory before the file is touched, the proposal is stripped of
// markdown wrapping, and content that does not parse is rolled back so the
// file is byte-identical to what it was before the attempt.
package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/testmend/testmend/internal/fixer"
)

// backupDirName is the directory, sibling to the target file, that holds
// backup copies.
const backupDirName = ".backups"

// backupTimeLayout is the timestamp embedded in backup file names.
const backupTimeLayout = "20060102_150405"

// Applier implements fixer.Applier on the local filesystem.
type Applier struct {
	checker SyntaxChecker
	logger  *log.Logger

	// now is replaceable for deterministic backup names in tests.
	now func() time.Time
	// writeFile is replaceable to exercise write-failure paths in tests.
	writeFile func(name string, data []byte, perm os.FileMode) error
}

// Option configures an Applier.
type Option func(*Applier)

// WithClock overrides the clock used for backup timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Applier) { a.now = now }
}

// NewApplier creates an Applier. checker must not be nil; logger may be nil.
func NewApplier(checker SyntaxChecker, logger *log.Logger, opts ...Option) *Applier {
	a := &Applier{
		checker:   checker,
		logger:    logger,
		now:       time.Now,
		writeFile: os.WriteFile,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ApplyWithBackup writes the proposed change over file after backing up the
// current content. The proposal is unwrapped from markdown fences first.
//
// The change is rejected without touching the file when the unwrapped
// proposal is empty or identical to the current content, and rejected with a
// rollback when the written content fails the syntax check. Rejections are
// reported in the ApplyResult, not as errors; a non-nil error means an
// infrastructure failure (unreadable file, backup or target write failed)
// and the file's state is described by the result. A failed target write is
// rolled back from the backup before the error is returned.
func (a *Applier) ApplyWithBackup(file string, changes *fixer.CodeChanges) (*fixer.ApplyResult, error) {
	original, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("apply: reading %s: %w", file, err)
	}
	info, err := os.Stat(file)
	if err != nil {
		return nil, fmt.Errorf("apply: stat %s: %w", file, err)
	}

	proposed := ExtractCode(changes.ModifiedCode)
	if strings.TrimSpace(proposed) == "" {
		return &fixer.ApplyResult{
			Applied: false,
			Reason:  "proposed change is empty",
		}, nil
	}
	if xxhash.Sum64([]byte(proposed)) == xxhash.Sum64(original) {
		return &fixer.ApplyResult{
			Applied: false,
			Reason:  "proposed change is identical to current content",
		}, nil
	}

	backupPath, err := a.writeBackup(file, original, info.Mode())
	if err != nil {
		return nil, err
	}

	if err := a.writeFile(file, []byte(proposed), info.Mode()); err != nil {
		// A failed write may have left the target truncated or partially
		// written; roll it back before propagating the failure.
		if rerr := a.Restore(file, backupPath); rerr != nil && a.logger != nil {
			a.logger.Error("restore after failed write", "file", file, "backup", backupPath, "error", rerr)
		}
		return &fixer.ApplyResult{
			Applied:    false,
			BackupPath: backupPath,
			Reason:     "write failed",
		}, fmt.Errorf("apply: writing %s: %w", file, err)
	}
	if a.logger != nil {
		a.logger.Info("change applied", "file", file, "backup", backupPath)
	}

	if err := a.checker.Check(context.Background(), file); err != nil {
		if rerr := a.Restore(file, backupPath); rerr != nil {
			return nil, fmt.Errorf("apply: rolling back %s: %w", file, rerr)
		}
		if a.logger != nil {
			a.logger.Warn("change rolled back", "file", file, "error", err)
		}
		return &fixer.ApplyResult{
			Applied:    false,
			BackupPath: backupPath,
			Reason:     err.Error(),
		}, nil
	}

	return &fixer.ApplyResult{
		Applied:    true,
		BackupPath: backupPath,
	}, nil
}

// Restore reverts file from a backup taken by ApplyWithBackup.
func (a *Applier) Restore(file, backupPath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("apply: reading backup %s: %w", backupPath, err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(file); err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(file, data, mode); err != nil {
		return fmt.Errorf("apply: restoring %s: %w", file, err)
	}
	if a.logger != nil {
		a.logger.Info("file restored", "file", file, "backup", backupPath)
	}
	return nil
}

// writeBackup copies content into the sibling .backups directory and returns
// the backup path. Backup names embed a timestamp and a random suffix so that
// repeated attempts on the same file never collide.
func (a *Applier) writeBackup(file string, content []byte, mode os.FileMode) (string, error) {
	dir := filepath.Join(filepath.Dir(file), backupDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("apply: creating backup dir %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s-%s-%s.bak",
		strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)),
		a.now().Format(backupTimeLayout),
		randomSuffix(),
	)
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, content, mode); err != nil {
		return "", fmt.Errorf("apply: writing backup %s: %w", path, err)
	}
	return path, nil
}

// randomSuffix returns 8 hex characters of a fresh UUID.
func randomSuffix() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}
