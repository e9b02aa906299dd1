package fixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCases(t *testing.T, n int) []*TestCase {
	t.Helper()
	cases := make([]*TestCase, 0, n)
	for i := 0; i < n; i++ {
		cases = append(cases, NewTestCase("tests/test_x.py", "test_"+string(rune('a'+i)), sampleDetails()))
	}
	return cases
}

func runningSession(t *testing.T, n int) *FixSession {
	t.Helper()
	s, err := NewFixSession(makeCases(t, n))
	require.NoError(t, err)
	require.NoError(t, s.Transition(SessionRunning))
	return s
}

func TestNewFixSession(t *testing.T) {
	t.Parallel()

	cases := makeCases(t, 3)
	s, err := NewFixSession(cases)
	require.NoError(t, err)

	assert.Equal(t, SessionInitializing, s.State)
	assert.Equal(t, 3, s.ErrorCount)
	assert.Len(t, s.Errors, 3)
	assert.Empty(t, s.CompletedErrors)
	assert.False(t, s.StartTime.IsZero())
}

func TestNewFixSession_EmptyCases(t *testing.T) {
	t.Parallel()

	_, err := NewFixSession(nil)
	assert.ErrorIs(t, err, ErrNoCases)
}

func TestTransition_Table(t *testing.T) {
	t.Parallel()

	legal := []struct {
		from, to SessionState
	}{
		{SessionInitializing, SessionRunning},
		{SessionRunning, SessionPaused},
		{SessionPaused, SessionRunning},
		{SessionRunning, SessionCompleted},
		{SessionRunning, SessionFailed},
		{SessionRunning, SessionError},
		{SessionError, SessionRunning},
		{SessionError, SessionFailed},
	}
	for _, tt := range legal {
		s := &FixSession{State: tt.from}
		assert.NoError(t, s.Transition(tt.to), "%s -> %s should be legal", tt.from, tt.to)
		assert.Equal(t, tt.to, s.State)
	}

	illegal := []struct {
		from, to SessionState
	}{
		{SessionInitializing, SessionCompleted},
		{SessionInitializing, SessionPaused},
		{SessionPaused, SessionCompleted},
		{SessionPaused, SessionFailed},
		{SessionCompleted, SessionRunning},
		{SessionCompleted, SessionFailed},
		{SessionFailed, SessionRunning},
		{SessionFailed, SessionCompleted},
		{SessionError, SessionPaused},
	}
	for _, tt := range illegal {
		s := &FixSession{State: tt.from}
		assert.ErrorIs(t, s.Transition(tt.to), ErrInvalidTransition, "%s -> %s should be illegal", tt.from, tt.to)
		assert.Equal(t, tt.from, s.State, "state must not change on a rejected transition")
	}
}

func TestPauseResume(t *testing.T) {
	t.Parallel()

	s := runningSession(t, 1)
	require.NoError(t, s.Pause())
	assert.Equal(t, SessionPaused, s.State)
	require.NoError(t, s.Resume())
	assert.Equal(t, SessionRunning, s.State)

	// Pausing twice or resuming a running session is a usage error.
	require.NoError(t, s.Pause())
	assert.ErrorIs(t, s.Pause(), ErrInvalidTransition)
	require.NoError(t, s.Resume())
	assert.ErrorIs(t, s.Resume(), ErrInvalidTransition)
}

func TestRecordCompleted_DrivesCompletion(t *testing.T) {
	t.Parallel()

	s := runningSession(t, 2)

	require.NoError(t, s.RecordCompleted(s.Errors[0]))
	assert.Equal(t, SessionRunning, s.State)
	assert.Equal(t, 1, s.FixedCount())

	// Completing the last case flips the session to completed.
	require.NoError(t, s.RecordCompleted(s.Errors[1]))
	assert.Equal(t, SessionCompleted, s.State)
	assert.True(t, s.Terminal())
}

func TestRecordModifiedFile_Dedup(t *testing.T) {
	t.Parallel()

	s := runningSession(t, 1)
	s.RecordModifiedFile("tests/test_x.py")
	s.RecordModifiedFile("tests/test_y.py")
	s.RecordModifiedFile("tests/test_x.py")
	assert.Equal(t, []string{"tests/test_x.py", "tests/test_y.py"}, s.ModifiedFiles)
}

func TestSession_SnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	s := runningSession(t, 2)
	s.GitBranch = "testmend/fix-20240101"
	attempt, err := s.Errors[0].StartFixAttempt(0.4)
	require.NoError(t, err)
	require.NoError(t, s.Errors[0].MarkFixed(attempt))
	require.NoError(t, s.RecordCompleted(s.Errors[0]))
	s.RecordModifiedFile(s.Errors[0].TestFile)

	data, err := s.Snapshot()
	require.NoError(t, err)

	restored, err := SessionFromSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, s.ID, restored.ID)
	assert.Equal(t, s.State, restored.State)
	assert.Equal(t, s.ErrorCount, restored.ErrorCount)
	assert.Equal(t, s.GitBranch, restored.GitBranch)
	require.Len(t, restored.Errors, 2)
	assert.Equal(t, CaseFixed, restored.Errors[0].Status)
	require.Len(t, restored.Errors[0].Attempts, 1)
	assert.Equal(t, AttemptSuccess, restored.Errors[0].Attempts[0].Status)
	assert.Equal(t, s.ModifiedFiles, restored.ModifiedFiles)
}

func TestSessionFromSnapshot_Garbage(t *testing.T) {
	t.Parallel()

	_, err := SessionFromSnapshot([]byte("{not json"))
	assert.Error(t, err)
}
