// Package resume implements C7: rebuild a live run from a persisted
// transfer state and hand the pending work to C5, per spec §4.7.
package resume

import (
	"context"

	"github.com/pulsepoint/pulsepoint/internal/engine/state"
	"github.com/pulsepoint/pulsepoint/internal/engine/transfer"
)

// Driver reconstructs the residual task list from a TransferState's pending
// sequence and dispatches it to the coordinator in the state's direction.
type Driver struct {
	TransferOne transfer.TransferFunc
	Coordinator func(ctx context.Context, tasks []transfer.Task, fn transfer.TransferFunc, cfg transfer.Config) transfer.Result
}

// NewDriver builds a Driver around transferOne, using transfer.Run as the
// coordinator unless overridden (tests substitute a stub coordinator).
func NewDriver(transferOne transfer.TransferFunc) *Driver {
	return &Driver{TransferOne: transferOne, Coordinator: transfer.Run}
}

// Resume loads st's pending sequence into coordinator tasks and runs them
// under cfg. The caller is expected to have already validated (and, if
// necessary, repaired) st and to periodically snapshot it to disk — see
// spec §4.7. If st has no pending work, Resume is a no-op that returns an
// empty Result, satisfying the idempotence property of spec §8.
func (d *Driver) Resume(ctx context.Context, st *state.TransferState, cfg transfer.Config) transfer.Result {
	cfg.State = st

	pending := st.PendingTasks()
	if len(pending) == 0 {
		return transfer.Result{}
	}

	tasks := make([]transfer.Task, 0, len(pending))
	for _, p := range pending {
		tasks = append(tasks, transfer.Task{Source: p.Source, Destination: p.Destination})
	}

	coordinator := d.Coordinator
	if coordinator == nil {
		coordinator = transfer.Run
	}
	return coordinator(ctx, tasks, d.TransferOne, cfg)
}
