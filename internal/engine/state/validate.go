package state

import (
	"fmt"

	"github.com/google/uuid"
)

// Issue names match spec §4.6's validation report vocabulary.
const (
	IssueChecksumMismatch  = "checksum-mismatch"
	IssueCountInconsistent = "count-inconsistent"
	IssueByteInconsistent  = "byte-inconsistent"
	IssueDuplicateKeys     = "duplicate-keys"
	IssueInvalidDirection  = "invalid-direction"
	IssueInvalidID         = "invalid-id"
)

// Report is the structured validation result of spec §4.6.
type Report struct {
	Issues    []string
	IsValid   bool
	CanRepair bool
}

// Validate checks s against invariants I1-I6 of spec §3. checksumMismatch
// should come from the LoadResult that produced s (Validate itself does not
// re-read the checksum field, since s may have been mutated since load).
func Validate(s *TransferState, checksumMismatch bool) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	var issues []string

	if checksumMismatch {
		issues = append(issues, IssueChecksumMismatch)
	}

	// I1: |completed| + |failed| + |pending| = total_files
	if len(s.Completed)+len(s.Failed)+len(s.Pending) != s.TotalFiles {
		issues = append(issues, IssueCountInconsistent)
	}

	// I2: transferred_bytes <= total_bytes
	if s.TransferredBytes > s.TotalBytes {
		issues = append(issues, IssueByteInconsistent)
	}

	// I3: no file key appears in more than one sequence
	if hasDuplicateKeys(s) {
		issues = append(issues, IssueDuplicateKeys)
	}

	// I4: direction is exactly upload or download
	directionValid := s.Direction.Valid()
	if !directionValid {
		issues = append(issues, IssueInvalidDirection)
	}

	// I5: identifier parses as a UUID
	if _, err := uuid.Parse(s.ID); err != nil {
		issues = append(issues, IssueInvalidID)
	}

	// I1-I3 and I5 are mechanically reconcilable; I4 has no well-defined
	// repair (there is no "correct" direction to fall back to), and a
	// checksum mismatch is a warning, never something repair touches
	// directly (it is simply recomputed once the rest of the record is
	// fixed).
	canRepair := directionValid

	return Report{
		Issues:    issues,
		IsValid:   len(issues) == 0,
		CanRepair: canRepair || len(issues) == 0,
	}
}

func hasDuplicateKeys(s *TransferState) bool {
	seen := make(map[string]int, len(s.Completed)+len(s.Failed)+len(s.Pending))
	for _, k := range s.Completed {
		seen[k]++
	}
	for _, k := range s.Failed {
		seen[k]++
	}
	for _, t := range s.Pending {
		seen[t.Source]++
	}
	for _, n := range seen {
		if n > 1 {
			return true
		}
	}
	return false
}

// errInvalidDirection is returned by Repair when the state's direction is
// not mechanically repairable.
var errInvalidDirection = fmt.Errorf("transfer state has an invalid direction and cannot be repaired")
