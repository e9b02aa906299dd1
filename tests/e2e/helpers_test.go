package e2e_test

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// testProject is an isolated working directory with a built testmend binary.
type testProject struct {
	Dir        string
	BinaryPath string
	t          *testing.T
}

// newTestProject builds the testmend binary into a fresh temp directory and
// returns a testProject ready for use. Must be called from a test function;
// uses t.Helper() to mark itself accordingly.
func newTestProject(t *testing.T) *testProject {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("E2E tests with shell stub interpreters are not supported on Windows")
	}

	dir := t.TempDir()

	binary := filepath.Join(dir, "testmend")
	build := exec.Command("go", "build", "-o", binary, "./cmd/testmend")
	build.Dir = projectRoot()
	out, err := build.CombinedOutput()
	require.NoError(t, err, "building testmend: %s", string(out))

	return &testProject{Dir: dir, BinaryPath: binary, t: t}
}

// projectRoot returns the absolute path to the root of the testmend
// repository. It uses runtime.Caller(0) to find this source file's location
// and navigates two directories up (tests/e2e/ -> tests/ -> repo root).
func projectRoot() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "..", "..")
}

// writeConfig writes content to testmend.toml in tp.Dir.
func (tp *testProject) writeConfig(content string) {
	tp.t.Helper()
	err := os.WriteFile(filepath.Join(tp.Dir, "testmend.toml"), []byte(content), 0o644)
	require.NoError(tp.t, err)
}

// writeFile writes a file relative to tp.Dir, creating parent directories.
func (tp *testProject) writeFile(rel, content string) {
	tp.t.Helper()
	path := filepath.Join(tp.Dir, rel)
	require.NoError(tp.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tp.t, os.WriteFile(path, []byte(content), 0o644))
}

// stubPython writes an executable shell script that stands in for the Python
// interpreter and returns its absolute path.
func (tp *testProject) stubPython(script string) string {
	tp.t.Helper()
	path := filepath.Join(tp.Dir, "stubbin", "python3")
	require.NoError(tp.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tp.t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

// run creates an exec.Cmd for testmend running in tp.Dir.
func (tp *testProject) run(args ...string) *exec.Cmd {
	cmd := exec.Command(tp.BinaryPath, args...)
	cmd.Dir = tp.Dir
	cmd.Env = append(os.Environ(),
		"NO_COLOR=1",               // disable ANSI color in output
		"TESTMEND_LOG_FORMAT=json", // structured logs for easier parsing
	)
	return cmd
}

// runExpectSuccess runs testmend and asserts exit code 0.
// Returns combined stdout+stderr output.
func (tp *testProject) runExpectSuccess(args ...string) string {
	tp.t.Helper()
	cmd := tp.run(args...)
	out, err := cmd.CombinedOutput()
	require.NoError(tp.t, err, "testmend %v failed:\n%s", args, string(out))
	return string(out)
}

// runExpectFailure runs testmend and asserts a non-zero exit code.
// Returns combined output and the exit code.
func (tp *testProject) runExpectFailure(args ...string) (string, int) {
	tp.t.Helper()
	cmd := tp.run(args...)
	out, err := cmd.CombinedOutput()
	require.Error(tp.t, err, "testmend %v expected to fail but succeeded:\n%s", args, string(out))
	var exitErr *exec.ExitError
	require.True(tp.t, errors.As(err, &exitErr), "expected *exec.ExitError, got %T: %v", err, err)
	return string(out), exitErr.ExitCode()
}

// initGitRepo initialises a git repository in dir with an initial commit.
func initGitRepo(t *testing.T, dir string) {
	t.Helper()
	setupCmds := [][]string{
		{"git", "init", "-b", "main"},
		{"git", "config", "user.email", "test@example.com"},
		{"git", "config", "user.name", "Test User"},
	}
	for _, args := range setupCmds {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "%v failed: %s", args, string(out))
	}

	keepFile := filepath.Join(dir, ".gitkeep")
	require.NoError(t, os.WriteFile(keepFile, []byte(""), 0o644))
	for _, args := range [][]string{
		{"git", "add", ".gitkeep"},
		{"git", "commit", "-m", "init"},
	} {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "%v failed: %s", args, string(out))
	}
}

// minimalConfig returns testmend.toml content pointing pytest at the given
// interpreter path.
func minimalConfig(python string) string {
	return fmt.Sprintf(`[fix]
max_retries = 2
initial_temperature = 0.4

[llm]
model = "gpt-4o-mini"
api_key_env = "TESTMEND_E2E_API_KEY"

[pytest]
python = %q
timeout_seconds = 30

[git]
branch_template = "testmend/fix-{date}"
base_branch = "main"
`, python)
}

// samplePytestFailure returns pytest output with one canonical failure block.
func samplePytestFailure() string {
	return `============================= test session starts ==============================
collected 1 item

tests/test_math.py F                                                     [100%]

=================================== FAILURES ===================================
_________________________________ test_add _____________________________________

    def test_add():
>       assert add(1, 2) == 4
E       AssertionError: assert 3 == 4

tests/test_math.py:7: AssertionError
=========================== short test summary info ============================
FAILED tests/test_math.py::test_add - AssertionError: assert 3 == 4
============================== 1 failed in 0.02s ===============================
`
}
