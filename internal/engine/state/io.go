package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pulsepoint/pulsepoint/internal/engine/pcerr"
)

// wireRecord mirrors TransferState's exported shape for (de)serialization;
// TransferState itself carries an unexported mutex that json.Marshal
// already skips, but a dedicated type keeps the checksum-computation step
// explicit and ordering-stable.
type wireRecord struct {
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

func toWire(s *TransferState) wireRecord {
	return wireRecord{
		ID: s.ID, Direction: s.Direction, TotalFiles: s.TotalFiles,
		Completed: s.Completed, Failed: s.Failed, Pending: s.Pending,
		TotalBytes: s.TotalBytes, TransferredBytes: s.TransferredBytes,
		Version: s.Version, Checksum: s.Checksum,
	}
}

func fromWire(w wireRecord) *TransferState {
	return &TransferState{
		ID: w.ID, Direction: w.Direction, TotalFiles: w.TotalFiles,
		Completed: w.Completed, Failed: w.Failed, Pending: w.Pending,
		TotalBytes: w.TotalBytes, TransferredBytes: w.TransferredBytes,
		Version: w.Version, Checksum: w.Checksum,
	}
}

// computeChecksum returns the hex SHA-256 of w serialized with its
// Checksum field cleared, per spec §4.6.
func computeChecksum(w wireRecord) (string, error) {
	w.Checksum = ""
	data, err := json.Marshal(w)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Save computes s's checksum and atomically writes it to path (write to a
// temp file in the same directory, then rename), per spec §4.6.
func Save(path string, s *TransferState) error {
	snap := s.Snapshot()
	w := toWire(snap)

	checksum, err := computeChecksum(w)
	if err != nil {
		return pcerr.NewLocalIOError("failed to compute transfer state checksum", err)
	}
	w.Checksum = checksum

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return pcerr.NewLocalIOError("failed to serialize transfer state", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pcerr.NewLocalIOError("failed to create transfer state directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".pulsepoint-state-*")
	if err != nil {
		return pcerr.NewLocalIOError("failed to create temp state file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return pcerr.NewLocalIOError("failed to write temp state file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return pcerr.NewLocalIOError("failed to close temp state file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return pcerr.NewLocalIOError("failed to replace transfer state file", err)
	}

	s.mu.Lock()
	s.Checksum = checksum
	s.mu.Unlock()
	return nil
}

// LoadResult is returned by Load: the parsed state plus an optional
// checksum-mismatch warning, which per spec §4.6/§7 is non-fatal — the
// state is still loadable.
type LoadResult struct {
	State            *TransferState
	ChecksumMismatch bool
}

// Load parses path into a TransferState. A checksum mismatch is reported in
// LoadResult.ChecksumMismatch rather than as an error; any other decode
// failure is returned as an error.
func Load(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pcerr.NewLocalIOError("failed to read transfer state file", err)
	}

	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, pcerr.NewIntegrityError("transfer state file is not valid JSON", err)
	}

	mismatch := false
	if w.Checksum != "" {
		expected, err := computeChecksum(w)
		if err != nil {
			return nil, pcerr.NewLocalIOError("failed to recompute transfer state checksum", err)
		}
		if expected != w.Checksum {
			mismatch = true
		}
	}

	return &LoadResult{State: fromWire(w), ChecksumMismatch: mismatch}, nil
}
