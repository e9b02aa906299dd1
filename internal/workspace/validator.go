// Package workspace validates the environment a fix session runs in: the
// target directory must exist and be writable, the Python tooling must be on
// PATH, and test files can be discovered under the workspace root.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
)

// ErrNotADirectory is returned when the workspace path exists but is not a
// directory.
var ErrNotADirectory = errors.New("workspace path is not a directory")

// ErrNotWritable is returned when the workspace directory cannot be written
// to.
var ErrNotWritable = errors.New("workspace directory is not writable")

// ErrMissingDependency is returned when a required binary is not on PATH.
var ErrMissingDependency = errors.New("required dependency not found")

// testFilePatterns are the pytest discovery conventions, matched recursively.
var testFilePatterns = []string{"**/test_*.py", "**/*_test.py"}

// Validator implements the workspace checks used before a fix session.
type Validator struct {
	python string
	logger *log.Logger
}

// NewValidator creates a Validator. An empty python binary defaults to
// "python"; logger may be nil.
func NewValidator(python string, logger *log.Logger) *Validator {
	if python == "" {
		python = "python"
	}
	return &Validator{python: python, logger: logger}
}

// ValidateWorkspace checks that path is an existing, writable directory.
func (v *Validator) ValidateWorkspace(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("workspace: %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workspace: %s: %w", path, ErrNotADirectory)
	}

	// Probe writability directly; permission bits lie on some filesystems.
	probe, err := os.CreateTemp(path, ".testmend-probe-*")
	if err != nil {
		return fmt.Errorf("workspace: %s: %w", path, ErrNotWritable)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	return nil
}

// CheckDependencies verifies that the Python interpreter and pytest are
// available. pytest is probed as a module of the configured interpreter, so
// virtualenv installs count.
func (v *Validator) CheckDependencies() error {
	pythonPath, err := exec.LookPath(v.python)
	if err != nil {
		return fmt.Errorf("workspace: %s: %w", v.python, ErrMissingDependency)
	}
	if v.logger != nil {
		v.logger.Debug("python found", "path", pythonPath)
	}

	if err := exec.Command(v.python, "-m", "pytest", "--version").Run(); err != nil {
		return fmt.Errorf("workspace: pytest (via %s -m pytest): %w", v.python, ErrMissingDependency)
	}
	return nil
}

// DiscoverTestFiles returns the test files under root following pytest's
// default file conventions, sorted and deduplicated.
func (v *Validator) DiscoverTestFiles(root string) ([]string, error) {
	seen := map[string]struct{}{}
	for _, pattern := range testFilePatterns {
		matches, err := doublestar.FilepathGlob(filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("workspace: globbing %s: %w", pattern, err)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			seen[m] = struct{}{}
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)

	if v.logger != nil {
		v.logger.Debug("test files discovered", "root", root, "count", len(files))
	}
	return files, nil
}
