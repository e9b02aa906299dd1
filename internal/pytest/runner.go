// Package pytest runs the pytest binary as a subprocess: a full run whose
// output feeds the failure parsers, and targeted single-test runs that verify
// whether an applied fix made a specific test pass.
package pytest

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

// maxOutputBytes is the threshold above which pytest output is truncated.
// Outputs larger than 1 MiB are reduced to the first and last 512 lines.
const maxOutputBytes = 1024 * 1024

// truncationLines is the number of lines to keep from the head and tail of
// oversized output.
const truncationLines = 512

// defaultTimeout bounds a single pytest invocation.
const defaultTimeout = 5 * time.Minute

// RunResult holds the outcome of one pytest invocation.
type RunResult struct {
	// Command is the command line that was executed.
	Command string

	// ExitCode is the pytest exit code. It is -1 when the process could not
	// be started or timed out before it exited.
	ExitCode int

	// Output is the combined captured stdout and stderr, in that order. This
	// is the text the failure parsers consume.
	Output string

	// Duration is the wall-clock time of the invocation.
	Duration time.Duration

	// Passed is true when ExitCode == 0 and TimedOut is false.
	Passed bool

	// TimedOut is true when the per-invocation deadline was exceeded.
	TimedOut bool
}

// Runner invokes pytest through a Python interpreter with a per-invocation
// timeout.
type Runner struct {
	python  string
	workDir string
	timeout time.Duration
	logger  *log.Logger
}

// NewRunner creates a Runner.
//
//   - python is the interpreter binary; an empty string defaults to "python".
//   - workDir is the working directory for every invocation. An empty string
//     uses the process working directory.
//   - timeout is the per-invocation deadline. A non-positive value defaults
//     to 5 minutes.
//   - logger may be nil.
func NewRunner(python, workDir string, timeout time.Duration, logger *log.Logger) *Runner {
	if python == "" {
		python = "python"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Runner{
		python:  python,
		workDir: workDir,
		timeout: timeout,
		logger:  logger,
	}
}

// Run invokes pytest on target and returns the captured output. An empty
// target runs pytest's own discovery over the working directory. A failing
// suite is NOT an error; the failure is represented in the RunResult. The
// returned error is non-nil only when the parent context was cancelled or
// the interpreter could not be started at all.
func (r *Runner) Run(ctx context.Context, target string) (*RunResult, error) {
	args := []string{"-m", "pytest"}
	if target != "" {
		args = append(args, target)
	}
	return r.invoke(ctx, args)
}

// VerifyFix reports whether the single test identified by testFile and
// testFunction now passes. Any non-zero pytest exit counts as "still
// failing", including collection errors and an empty collection.
func (r *Runner) VerifyFix(ctx context.Context, testFile, testFunction string) (bool, error) {
	nodeID := testFile + "::" + testFunction
	result, err := r.invoke(ctx, []string{"-m", "pytest", nodeID})
	if err != nil {
		return false, err
	}
	return result.Passed, nil
}

// invoke runs the interpreter with args and captures the output.
func (r *Runner) invoke(ctx context.Context, args []string) (*RunResult, error) {
	start := time.Now()
	command := r.python + " " + strings.Join(args, " ")

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, r.python, args...)
	if r.workDir != "" {
		cmd.Dir = r.workDir
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if r.logger != nil {
		r.logger.Info("running pytest", "command", command)
	}

	runErr := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	timedOut := false

	if runErr != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			timedOut = true
			exitCode = -1
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		} else if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("pytest: context cancelled while running %q: %w", command, ctx.Err())
		} else {
			var exitErr *exec.ExitError
			if errors.As(runErr, &exitErr) {
				exitCode = exitErr.ExitCode()
			} else {
				return nil, fmt.Errorf("pytest: starting %q: %w", command, runErr)
			}
		}
	}

	output := truncateOutput(stdoutBuf.String() + stderrBuf.String())
	passed := exitCode == 0 && !timedOut

	result := &RunResult{
		Command:  command,
		ExitCode: exitCode,
		Output:   output,
		Duration: duration,
		Passed:   passed,
		TimedOut: timedOut,
	}

	if r.logger != nil {
		if passed {
			r.logger.Info("pytest passed", "command", command, "duration", duration)
		} else {
			r.logger.Warn("pytest failed",
				"command", command,
				"exit_code", exitCode,
				"timed_out", timedOut,
				"duration", duration,
			)
		}
	}

	return result, nil
}

// truncateOutput reduces oversized output to its head and tail lines so that
// parser input and logs stay bounded.
func truncateOutput(output string) string {
	if len(output) <= maxOutputBytes {
		return output
	}

	lines := strings.Split(output, "\n")
	if len(lines) <= truncationLines*2 {
		const notice = "\n... (output truncated)"
		cutoff := maxOutputBytes - len(notice)
		if cutoff > len(output) {
			cutoff = len(output)
		}
		return output[:cutoff] + notice
	}

	head := lines[:truncationLines]
	tail := lines[len(lines)-truncationLines:]
	omitted := len(lines) - truncationLines*2

	var sb strings.Builder
	sb.WriteString(strings.Join(head, "\n"))
	fmt.Fprintf(&sb, "\n\n... (%d lines omitted) ...\n\n", omitted)
	sb.WriteString(strings.Join(tail, "\n"))

	return sb.String()
}
