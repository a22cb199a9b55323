package state

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestState() *TransferState {
	tasks := []PendingTask{
		{Source: "a.txt", Destination: "remote/a.txt"},
		{Source: "b.txt", Destination: "remote/b.txt"},
		{Source: "c.txt", Destination: "remote/c.txt"},
	}
	return New(Upload, tasks, 300)
}

func TestNewGeneratesValidUUIDAndConsistentCounts(t *testing.T) {
	s := newTestState()

	_, err := uuid.Parse(s.ID)
	assert.NoError(t, err)
	assert.Equal(t, 3, s.TotalFiles)
	assert.Equal(t, FormatVersion, s.Version)
	assert.Len(t, s.Pending, 3)
}

func TestCompleteMovesFromPendingAndAddsBytes(t *testing.T) {
	s := newTestState()

	s.Complete("a.txt", 100)

	completed, failed, pending := s.Counts()
	assert.Equal(t, 1, completed)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 2, pending)

	transferred, total := s.BytesProgress()
	assert.Equal(t, int64(100), transferred)
	assert.Equal(t, int64(300), total)
}

func TestFailMovesFromPending(t *testing.T) {
	s := newTestState()

	s.Fail("b.txt")

	completed, failed, pending := s.Counts()
	assert.Equal(t, 0, completed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, pending)
}

func TestIsDoneReflectsPendingList(t *testing.T) {
	s := newTestState()
	assert.False(t, s.IsDone())

	s.Complete("a.txt", 100)
	s.Complete("b.txt", 100)
	s.Fail("c.txt")
	assert.True(t, s.IsDone())
}

func TestSnapshotIsIndependentOfLiveMutation(t *testing.T) {
	s := newTestState()
	snap := s.Snapshot()

	s.Complete("a.txt", 100)

	assert.Len(t, snap.Pending, 3)
	assert.Len(t, s.Pending, 2)
}

func TestPendingTasksReturnsCopy(t *testing.T) {
	s := newTestState()
	tasks := s.PendingTasks()
	tasks[0].Source = "mutated"

	assert.Equal(t, "a.txt", s.Pending[0].Source)
}
