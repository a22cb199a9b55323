// Package state implements C6: the resumable transfer-state record
// described in spec §3 and persisted per §4.6 — a self-describing JSON
// document with a SHA-256 integrity checksum, atomic write, and a
// validate/repair pair for the invariants I1-I6.
package state

import (
	"sync"

	"github.com/google/uuid"
)

// Direction is the batch's transfer direction, per spec §3 invariant I4.
type Direction string

const (
	// Upload moves files from the local filesystem to the remote.
	Upload Direction = "upload"
	// Download moves files from the remote to the local filesystem.
	Download Direction = "download"
)

// Valid reports whether d is exactly "upload" or "download".
func (d Direction) Valid() bool {
	return d == Upload || d == Download
}

// FormatVersion is the current transfer-state schema version.
const FormatVersion = 1

// PendingTask is an ordered (source, destination) pair still awaiting
// transfer.
type PendingTask struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// TransferState is the persistent record of what a batch transfer intends,
// has done, and has failed, per spec §3. All mutation goes through its
// methods, which keep invariants I1-I3 intact; callers needing the final
// shape for serialization should hold no other reference while mutating
// concurrently — TransferState is safe for concurrent use.
type TransferState struct {
	mu sync.Mutex

	ID               string        `json:"id"`
	Direction        Direction     `json:"direction"`
	TotalFiles       int           `json:"total_files"`
	Completed        []string      `json:"completed"`
	Failed           []string      `json:"failed"`
	Pending          []PendingTask `json:"pending"`
	TotalBytes       int64         `json:"total_bytes"`
	TransferredBytes int64         `json:"transferred_bytes"`
	Version          int           `json:"version"`
	Checksum         string        `json:"checksum,omitempty"`
}

// New creates a fresh TransferState for direction, with tasks as the
// initial pending list and totalBytes as the batch's total byte count.
// TotalFiles is derived from len(tasks), satisfying I1 immediately.
func New(direction Direction, tasks []PendingTask, totalBytes int64) *TransferState {
	pending := make([]PendingTask, len(tasks))
	copy(pending, tasks)
	return &TransferState{
		ID:         uuid.NewString(),
		Direction:  direction,
		TotalFiles: len(pending),
		Pending:    pending,
		TotalBytes: totalBytes,
		Version:    FormatVersion,
	}
}

// Snapshot returns a deep copy of s suitable for concurrent reading (e.g.
// for Save) without holding s's lock across I/O.
func (s *TransferState) Snapshot() *TransferState {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := &TransferState{
		ID:               s.ID,
		Direction:        s.Direction,
		TotalFiles:       s.TotalFiles,
		TotalBytes:       s.TotalBytes,
		TransferredBytes: s.TransferredBytes,
		Version:          s.Version,
		Checksum:         s.Checksum,
	}
	cp.Completed = append([]string{}, s.Completed...)
	cp.Failed = append([]string{}, s.Failed...)
	cp.Pending = append([]PendingTask{}, s.Pending...)
	return cp
}

// Complete moves fileKey out of pending (if present) into completed and
// adds transferredBytes to the running total. Used for both real
// completions and explicit skips, per spec §4.5 ("success, permanent
// failure, or explicit skip... appends the file key").
func (s *TransferState) Complete(fileKey string, transferredBytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removePendingLocked(fileKey)
	s.Completed = append(s.Completed, fileKey)
	s.TransferredBytes += transferredBytes
}

// Fail moves fileKey out of pending (if present) into failed.
func (s *TransferState) Fail(fileKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removePendingLocked(fileKey)
	s.Failed = append(s.Failed, fileKey)
}

func (s *TransferState) removePendingLocked(fileKey string) {
	out := s.Pending[:0]
	for _, t := range s.Pending {
		if t.Source == fileKey {
			continue
		}
		out = append(out, t)
	}
	s.Pending = out
}

// PendingTasks returns a copy of the current pending list, for handing off
// to the coordinator.
func (s *TransferState) PendingTasks() []PendingTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PendingTask{}, s.Pending...)
}

// Counts returns (completed, failed, pending) lengths.
func (s *TransferState) Counts() (completed, failed, pending int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Completed), len(s.Failed), len(s.Pending)
}

// BytesProgress returns (transferred, total) bytes.
func (s *TransferState) BytesProgress() (int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TransferredBytes, s.TotalBytes
}

// IsDone reports whether no pending work remains, per the idempotence
// property of spec §8 ("resume with empty pending is a no-op").
func (s *TransferState) IsDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Pending) == 0
}
