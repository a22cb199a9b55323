package state

import "github.com/google/uuid"

// Repair mechanically reconciles I1, I2, I3, and I5 violations in s,
// mutating it in place and returning the ordered list of actions taken, per
// spec §4.6. I4 (an invalid direction) has no well-defined repair and
// returns errInvalidDirection instead. Callers should persist the repaired
// state with Save, which recomputes its checksum.
func Repair(s *TransferState) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Direction.Valid() {
		return nil, errInvalidDirection
	}

	var actions []string
	seen := make(map[string]bool, len(s.Completed)+len(s.Failed)+len(s.Pending))

	newCompleted := make([]string, 0, len(s.Completed))
	for _, k := range s.Completed {
		if seen[k] {
			actions = append(actions, "removed-duplicate:"+k)
			continue
		}
		seen[k] = true
		newCompleted = append(newCompleted, k)
	}

	newFailed := make([]string, 0, len(s.Failed))
	for _, k := range s.Failed {
		if seen[k] {
			actions = append(actions, "removed-duplicate:"+k)
			continue
		}
		seen[k] = true
		newFailed = append(newFailed, k)
	}

	newPending := make([]PendingTask, 0, len(s.Pending))
	for _, t := range s.Pending {
		if seen[t.Source] {
			actions = append(actions, "removed-duplicate:"+t.Source)
			continue
		}
		seen[t.Source] = true
		newPending = append(newPending, t)
	}

	s.Completed = newCompleted
	s.Failed = newFailed
	s.Pending = newPending

	s.TotalFiles = len(newCompleted) + len(newFailed) + len(newPending)
	actions = append(actions, "recomputed-total")

	if s.TransferredBytes > s.TotalBytes {
		s.TransferredBytes = s.TotalBytes
		actions = append(actions, "capped-transferred-bytes")
	}

	if _, err := uuid.Parse(s.ID); err != nil {
		s.ID = uuid.NewString()
		actions = append(actions, "replaced-invalid-id")
	}

	return actions, nil
}
