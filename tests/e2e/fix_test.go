package e2e_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixAllTestsPassing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	python := tp.stubPython(`case "$*" in
*--version*) echo "pytest 8.0.0" ;;
*) echo "===== 5 passed in 0.10s =====" ;;
esac
exit 0`)
	tp.writeConfig(minimalConfig(python))
	tp.writeFile("tests/test_math.py", "def test_add():\n    assert 1 + 1 == 2\n")
	initGitRepo(t, tp.Dir)

	out := tp.runExpectSuccess("fix", "--yes", "--no-tui")
	assert.Contains(t, out, "All tests passing")
}

func TestFixUnparsableOutputFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	python := tp.stubPython(`case "$*" in
*--version*) echo "pytest 8.0.0"; exit 0 ;;
*) echo "segmentation fault"; exit 1 ;;
esac`)
	tp.writeConfig(minimalConfig(python))
	tp.writeFile("tests/test_math.py", "def test_add():\n    assert False\n")
	initGitRepo(t, tp.Dir)

	out, exitCode := tp.runExpectFailure("fix", "--yes", "--no-tui")
	assert.NotEqual(t, 0, exitCode)
	assert.Contains(t, out, "no failures could be parsed")
}

func TestFixMissingInterpreterFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	tp.writeConfig(minimalConfig("/no/such/python"))
	initGitRepo(t, tp.Dir)

	out, exitCode := tp.runExpectFailure("fix", "--yes", "--no-tui")
	assert.NotEqual(t, 0, exitCode)
	assert.Contains(t, out, "workspace check")
}
