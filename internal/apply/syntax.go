package apply

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// defaultCheckTimeout bounds a single syntax-check subprocess.
const defaultCheckTimeout = 30 * time.Second

// SyntaxChecker validates that a source file parses. A nil error means the
// file is syntactically valid.
type SyntaxChecker interface {
	Check(ctx context.Context, path string) error
}

// PyCompileChecker validates Python files by running
// `<python> -m py_compile <file>` as a subprocess. A non-zero exit means the
// file does not parse; the compiler's stderr is carried in the error.
type PyCompileChecker struct {
	python  string
	timeout time.Duration
	logger  *log.Logger
}

// NewPyCompileChecker creates a PyCompileChecker. An empty python binary
// defaults to "python", a non-positive timeout to 30 seconds. logger may be
// nil.
func NewPyCompileChecker(python string, timeout time.Duration, logger *log.Logger) *PyCompileChecker {
	if python == "" {
		python = "python"
	}
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &PyCompileChecker{python: python, timeout: timeout, logger: logger}
}

// Check compiles the file and reports a syntax failure as an error. Errors
// starting the interpreter (missing binary, timeout) are reported the same
// way; the caller treats any non-nil error as "do not keep this content".
func (c *PyCompileChecker) Check(ctx context.Context, path string) error {
	execCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, c.python, "-m", "py_compile", path)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if c.logger != nil {
		c.logger.Debug("syntax check", "file", path, "python", c.python)
	}

	runErr := cmd.Run()
	if runErr == nil {
		return nil
	}

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("apply: syntax check of %s timed out after %s", path, c.timeout)
	}

	stderr := strings.TrimSpace(stderrBuf.String())
	if stderr != "" {
		return fmt.Errorf("apply: syntax check of %s failed: %s", path, stderr)
	}
	return fmt.Errorf("apply: syntax check of %s failed: %w", path, runErr)
}
