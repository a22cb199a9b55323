package resume

import (
	"context"
	"testing"

	"github.com/pulsepoint/pulsepoint/internal/engine/state"
	"github.com/pulsepoint/pulsepoint/internal/engine/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResumeIsNoOpWhenNothingPending(t *testing.T) {
	st := state.New(state.Upload, nil, 0)
	driver := NewDriver(func(ctx context.Context, task transfer.Task, onChunk func(int64)) (int64, error) {
		t.Fatal("transferOne should not be called when pending is empty")
		return 0, nil
	})

	result := driver.Resume(context.Background(), st, transfer.Config{})
	assert.Empty(t, result.Succeeded)
	assert.Empty(t, result.Failed)
	assert.Empty(t, result.Residual)
}

func TestResumeDispatchesOnlyPendingTasks(t *testing.T) {
	st := state.New(state.Upload, []state.PendingTask{
		{Source: "a.txt", Destination: "remote/a.txt"},
		{Source: "b.txt", Destination: "remote/b.txt"},
	}, 20)
	st.Complete("a.txt", 10)

	var dispatched []string
	driver := NewDriver(func(ctx context.Context, task transfer.Task, onChunk func(int64)) (int64, error) {
		dispatched = append(dispatched, task.Source)
		return 10, nil
	})

	result := driver.Resume(context.Background(), st, transfer.Config{Workers: 1})
	require.Equal(t, []string{"b.txt"}, dispatched)
	assert.Equal(t, []string{"b.txt"}, result.Succeeded)
}

func TestResumeUsesOverriddenCoordinator(t *testing.T) {
	st := state.New(state.Upload, []state.PendingTask{{Source: "a.txt", Destination: "remote/a.txt"}}, 10)

	var coordinatorCalled bool
	driver := &Driver{
		TransferOne: func(ctx context.Context, task transfer.Task, onChunk func(int64)) (int64, error) {
			return 0, nil
		},
		Coordinator: func(ctx context.Context, tasks []transfer.Task, fn transfer.TransferFunc, cfg transfer.Config) transfer.Result {
			coordinatorCalled = true
			return transfer.Result{Succeeded: []string{tasks[0].Source}}
		},
	}

	result := driver.Resume(context.Background(), st, transfer.Config{})
	assert.True(t, coordinatorCalled)
	assert.Equal(t, []string{"a.txt"}, result.Succeeded)
}
