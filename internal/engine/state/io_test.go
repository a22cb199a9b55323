package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transfer.json")

	s := newTestState()
	s.Complete("a.txt", 100)

	require.NoError(t, Save(path, s))

	result, err := Load(path)
	require.NoError(t, err)
	assert.False(t, result.ChecksumMismatch)
	assert.Equal(t, s.ID, result.State.ID)
	assert.Equal(t, []string{"a.txt"}, result.State.Completed)
	assert.Equal(t, int64(100), result.State.TransferredBytes)
}

func TestSaveWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transfer.json")

	require.NoError(t, Save(path, newTestState()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	// No leftover temp file alongside the final path.
	assert.Len(t, entries, 1)
	assert.Equal(t, "transfer.json", entries[0].Name())
}

func TestLoadDetectsChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transfer.json")

	require.NoError(t, Save(path, newTestState()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Flip one content byte so the file stays valid JSON but its checksum
	// no longer matches.
	tampered := data
	for i, b := range tampered {
		if b == 'a' {
			tampered[i] = 'z'
			break
		}
	}
	require.NoError(t, os.WriteFile(path, tampered, 0o644))

	result, err := Load(path)
	require.NoError(t, err)
	assert.True(t, result.ChecksumMismatch)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transfer.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
