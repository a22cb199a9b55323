package stream

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountingReaderReportsBytesRead(t *testing.T) {
	var reported int64
	r := NewCountingReader(bytes.NewReader([]byte("hello world")), func(n int64) {
		reported += n
	})

	data, err := io.ReadAll(r)
	require.NoError(t, err)

	assert.Equal(t, "hello world", string(data))
	assert.Equal(t, int64(len("hello world")), reported)
	assert.Equal(t, int64(len("hello world")), r.TotalRead())
}

func TestOpenUploadSourceReturnsSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	f, size, err := OpenUploadSource(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(10), size)
}

func TestOpenUploadSourceMissingFile(t *testing.T) {
	_, _, err := OpenUploadSource(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestDownloadSinkWritesAndRenamesAtomically(t *testing.T) {
	dir := t.TempDir()
	content := []byte("downloaded payload")

	err := DownloadSink(dir, "out.bin", bytes.NewReader(content), int64(len(content)), nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "out.bin"))
	require.NoError(t, err)
	assert.Equal(t, content, data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDownloadSinkRejectsLengthMismatch(t *testing.T) {
	dir := t.TempDir()
	content := []byte("short")

	err := DownloadSink(dir, "out.bin", bytes.NewReader(content), 999, nil)
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadSinkSkipsLengthCheckWhenExpectedSizeNegative(t *testing.T) {
	dir := t.TempDir()
	content := []byte("unknown length upstream")

	err := DownloadSink(dir, "out.bin", bytes.NewReader(content), -1, nil)
	assert.NoError(t, err)
}

func TestChunkIteratorSlicesFileAndReportsOffsets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	content := bytes.Repeat([]byte("x"), 25)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	it, err := NewChunkIterator(path, 10)
	require.NoError(t, err)
	defer it.Close()

	assert.Equal(t, int64(25), it.Size())

	var offsets []int64
	var total int
	for {
		chunk, offset, err := it.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		offsets = append(offsets, offset)
		total += len(chunk)
	}

	assert.Equal(t, []int64{0, 10, 20}, offsets)
	assert.Equal(t, 25, total)
}
