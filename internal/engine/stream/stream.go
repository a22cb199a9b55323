// Package stream implements C2: a streaming body source for uploads, a
// streaming sink for downloads, and a chunk iterator for the chunked-upload
// path used on files above the chunked-upload threshold.
package stream

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pulsepoint/pulsepoint/internal/engine/pcerr"
)

// ReadBufferSize is the fixed copy buffer DownloadSink streams downloads
// through, bounding resident memory per in-flight download regardless of
// file size. Upload bodies are not read through it: the HTTP transport
// chooses its own read sizes for them.
const ReadBufferSize = 64 * 1024

// DefaultChunkSize is the default slice size for the chunked upload path.
const DefaultChunkSize = 10 * 1024 * 1024

// ChunkedUploadThreshold is the file size above which UploadFile callers
// should prefer the chunked begin/write/finish path over a single streamed
// upload (see GLOSSARY).
const ChunkedUploadThreshold = 2 * 1024 * 1024 * 1024

// ProgressFunc is invoked as bytes are drained from a stream. It must be
// safe to call from any goroutine.
type ProgressFunc func(bytesRead int64)

// CountingReader wraps r, invoking onRead with the number of bytes read on
// every successful Read and keeping its own running total (TotalRead).
type CountingReader struct {
	r         io.Reader
	onRead    ProgressFunc
	totalRead int64
}

// NewCountingReader wraps r so each drained buffer reports its size via
// onRead (which may be nil).
func NewCountingReader(r io.Reader, onRead ProgressFunc) *CountingReader {
	return &CountingReader{r: r, onRead: onRead}
}

// Read implements io.Reader.
func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.totalRead += int64(n)
		if c.onRead != nil {
			c.onRead(int64(n))
		}
	}
	return n, err
}

// TotalRead returns the cumulative number of bytes read so far.
func (c *CountingReader) TotalRead() int64 { return c.totalRead }

// OpenUploadSource opens localPath for a streaming upload read, returning
// the file, its size, and any error opening or stat'ing it. It applies no
// buffering of its own.
func OpenUploadSource(localPath string) (*os.File, int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, 0, pcerr.NewLocalIOError("failed to open file for upload", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, pcerr.NewLocalIOError("failed to stat file for upload", err)
	}
	return f, info.Size(), nil
}

// DownloadSink streams body into a temporary file under destDir and
// atomically renames it to finalName on success. On any failure the
// temporary file is removed and no partial file is left at the
// destination. If expectedSize is non-negative, the received length is
// validated against it and a corruption error is returned on mismatch.
func DownloadSink(destDir, finalName string, body io.Reader, expectedSize int64, onRead ProgressFunc) (err error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return pcerr.NewLocalIOError("failed to create destination folder", err)
	}

	tmp, err := os.CreateTemp(destDir, ".pulsepoint-dl-*")
	if err != nil {
		return pcerr.NewLocalIOError("failed to create temporary file", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	counting := NewCountingReader(body, onRead)
	buf := make([]byte, ReadBufferSize)
	written, copyErr := io.CopyBuffer(tmp, counting, buf)
	if copyErr != nil {
		if cerr := tmp.Close(); cerr != nil && copyErr == nil {
			copyErr = cerr
		}
		return pcerr.NewNetworkError("download stream interrupted", copyErr)
	}

	if expectedSize >= 0 && written != expectedSize {
		tmp.Close()
		return pcerr.NewIntegrityError(
			"downloaded length does not match expected size", nil,
		).WithContext("expected", expectedSize).WithContext("received", written)
	}

	if closeErr := tmp.Close(); closeErr != nil {
		return pcerr.NewLocalIOError("failed to close downloaded file", closeErr)
	}

	finalPath := filepath.Join(destDir, finalName)
	if renameErr := os.Rename(tmpPath, finalPath); renameErr != nil {
		err = pcerr.NewLocalIOError("failed to place downloaded file", renameErr)
		return err
	}
	return nil
}

// ChunkIterator slices a file into DefaultChunkSize pieces for the chunked
// upload path, tracking the byte offset of each chunk.
type ChunkIterator struct {
	f         *os.File
	chunkSize int
	offset    int64
	size      int64
}

// NewChunkIterator opens localPath and prepares to iterate it in chunkSize
// pieces (DefaultChunkSize if chunkSize <= 0).
func NewChunkIterator(localPath string, chunkSize int) (*ChunkIterator, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	f, size, err := OpenUploadSource(localPath)
	if err != nil {
		return nil, err
	}
	return &ChunkIterator{f: f, chunkSize: chunkSize, size: size}, nil
}

// Size returns the total file size being iterated.
func (it *ChunkIterator) Size() int64 { return it.size }

// Next returns the next chunk's bytes and its starting offset, or io.EOF
// when the file is exhausted.
func (it *ChunkIterator) Next() (chunk []byte, offset int64, err error) {
	buf := make([]byte, it.chunkSize)
	n, readErr := io.ReadFull(it.f, buf)
	if n == 0 && readErr != nil {
		if readErr == io.EOF {
			return nil, 0, io.EOF
		}
		return nil, 0, pcerr.NewLocalIOError("failed to read chunk", readErr)
	}
	offset = it.offset
	it.offset += int64(n)
	if readErr == io.ErrUnexpectedEOF || readErr == io.EOF {
		return buf[:n], offset, nil
	}
	if readErr != nil {
		return nil, 0, pcerr.NewLocalIOError("failed to read chunk", readErr)
	}
	return buf[:n], offset, nil
}

// Close releases the underlying file handle.
func (it *ChunkIterator) Close() error {
	return it.f.Close()
}
