// Package syncer implements C8: the bidirectional folder synchroniser. It
// compares two trees by size or content hash, classifies each entry, and
// performs each upload or download itself through RemoteAPI, one file at a
// time. It does not go through the C5 coordinator, so sync transfers get no
// worker pool, per-file timeout or retry.
package syncer

import (
	"context"
	"crypto/sha256"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/pulsepoint/pulsepoint/internal/engine/pcerr"
	"github.com/pulsepoint/pulsepoint/internal/engine/pcloud"
	"github.com/pulsepoint/pulsepoint/internal/engine/stream"
	"go.uber.org/zap"
)

// Direction is the sync direction, per spec §4.8.
type Direction string

const (
	Upload        Direction = "upload"
	Download      Direction = "download"
	Bidirectional Direction = "bidirectional"
)

// CompareMode decides whether two same-named files are considered equal.
type CompareMode string

const (
	// SizeEqual treats equal byte length as equal content — cheap, but a
	// deliberate simplification per spec §4.8/§9: a size match in the
	// upload direction does not check which side is actually newer.
	SizeEqual CompareMode = "size"
	// HashEqual reads the local file and fetches the remote file to
	// compute a SHA-256 over both — expensive but precise.
	HashEqual CompareMode = "hash"
)

// Result is the sync result of spec §3.
type Result struct {
	Uploaded   int
	Downloaded int
	Skipped    int
	Failed     int
}

// RemoteAPI is the remote capability the sync engine needs.
type RemoteAPI interface {
	ListFolder(ctx context.Context, path string) ([]pcloud.FileItem, error)
	CreateFolder(ctx context.Context, path string) error
	UploadFile(ctx context.Context, remoteFolder, name string, body io.Reader, size int64) (*pcloud.FileItem, error)
	OpenDownload(ctx context.Context, path string) (io.ReadCloser, int64, error)
}

// Engine runs recursive sync passes between a local path and a remote path.
type Engine struct {
	API    RemoteAPI
	Mode   CompareMode
	Logger *zap.Logger
}

// New builds an Engine, defaulting Mode to SizeEqual and Logger to a no-op
// logger when unset.
func New(api RemoteAPI, mode CompareMode, logger *zap.Logger) *Engine {
	if mode == "" {
		mode = SizeEqual
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{API: api, Mode: mode, Logger: logger}
}

type localEntry struct {
	name     string
	isFolder bool
	size     int64
}

// Sync recursively compares localPath and remotePath and applies direction,
// creating the missing side's folder as needed, per spec §4.8.
func (e *Engine) Sync(ctx context.Context, localPath, remotePath string, direction Direction) (Result, error) {
	var result Result
	err := e.syncFolder(ctx, localPath, remotePath, direction, &result)
	return result, err
}

func (e *Engine) syncFolder(ctx context.Context, localPath, remotePath string, direction Direction, result *Result) error {
	if ctx.Err() != nil {
		return pcerr.NewCancelled("sync cancelled")
	}

	localEntries, err := listLocal(localPath)
	if err != nil {
		return err
	}
	remoteEntries, err := e.API.ListFolder(ctx, remotePath)
	if err != nil {
		return err
	}

	localByName := make(map[string]localEntry, len(localEntries))
	for _, le := range localEntries {
		localByName[le.name] = le
	}
	remoteByName := make(map[string]pcloud.FileItem, len(remoteEntries))
	for _, re := range remoteEntries {
		remoteByName[re.Name] = re
	}

	names := make(map[string]bool, len(localByName)+len(remoteByName))
	for n := range localByName {
		names[n] = true
	}
	for n := range remoteByName {
		names[n] = true
	}

	for name := range names {
		le, hasLocal := localByName[name]
		re, hasRemote := remoteByName[name]

		switch {
		case hasLocal && !hasRemote:
			e.handleLocalOnly(ctx, le, localPath, remotePath, direction, result)
		case hasRemote && !hasLocal:
			e.handleRemoteOnly(ctx, re, localPath, remotePath, direction, result)
		default:
			e.handleBoth(ctx, le, re, localPath, remotePath, direction, result)
		}
	}
	return nil
}

// handleLocalOnly handles an entry named le.name that exists under localPath
// but not under remotePath.
func (e *Engine) handleLocalOnly(ctx context.Context, le localEntry, localPath, remotePath string, direction Direction, result *Result) {
	if direction == Download {
		result.Skipped++
		return
	}

	childLocal := filepath.Join(localPath, le.name)
	childRemote := path.Join(remotePath, le.name)

	if le.isFolder {
		if err := e.API.CreateFolder(ctx, childRemote); err != nil && !pcloud.IsAlreadyExists(err) {
			result.Failed++
			e.Logger.Warn("failed to create remote folder during sync", zap.String("path", childRemote), zap.Error(err))
			return
		}
		if err := e.syncFolder(ctx, childLocal, childRemote, direction, result); err != nil {
			result.Failed++
		}
		return
	}
	if err := e.uploadFile(ctx, childLocal, remotePath); err != nil {
		result.Failed++
		e.Logger.Warn("upload failed during sync", zap.String("path", childLocal), zap.Error(err))
		return
	}
	result.Uploaded++
}

// handleRemoteOnly handles an entry named re.Name that exists under
// remotePath but not under localPath.
func (e *Engine) handleRemoteOnly(ctx context.Context, re pcloud.FileItem, localPath, remotePath string, direction Direction, result *Result) {
	if direction == Upload {
		result.Skipped++
		return
	}

	childLocal := filepath.Join(localPath, re.Name)
	childRemote := path.Join(remotePath, re.Name)

	if re.IsFolder {
		if err := e.syncFolder(ctx, childLocal, childRemote, direction, result); err != nil {
			result.Failed++
		}
		return
	}
	if err := e.downloadFile(ctx, childRemote, localPath); err != nil {
		result.Failed++
		e.Logger.Warn("download failed during sync", zap.String("path", childRemote), zap.Error(err))
		return
	}
	result.Downloaded++
}

// handleBoth handles an entry that exists on both sides under the same name.
func (e *Engine) handleBoth(ctx context.Context, le localEntry, re pcloud.FileItem, localPath, remotePath string, direction Direction, result *Result) {
	childLocal := filepath.Join(localPath, le.name)
	childRemote := path.Join(remotePath, le.name)

	if le.isFolder || re.IsFolder {
		if err := e.syncFolder(ctx, childLocal, childRemote, direction, result); err != nil {
			result.Failed++
		}
		return
	}

	equal, err := e.filesEqual(ctx, childLocal, childRemote, le.size, re.Size)
	if err != nil {
		result.Failed++
		return
	}
	if equal {
		result.Skipped++
		return
	}

	// Mismatch resolution is a deliberate simplification per spec §4.8/§9:
	// "remote newer in upload direction / local newer in download
	// direction" — no modification-time comparison. Bidirectional has no
	// principled tie-break without timestamps, so a mismatch there is left
	// untouched (skipped) rather than risking a silent overwrite on either
	// side; see DESIGN.md for the open-question decision.
	switch direction {
	case Upload:
		if err := e.uploadFile(ctx, childLocal, remotePath); err != nil {
			result.Failed++
			return
		}
		result.Uploaded++
	case Download:
		if err := e.downloadFile(ctx, childRemote, localPath); err != nil {
			result.Failed++
			return
		}
		result.Downloaded++
	default:
		result.Skipped++
	}
}

func (e *Engine) filesEqual(ctx context.Context, localPath, remotePath string, localSize, remoteSize int64) (bool, error) {
	if e.Mode == SizeEqual {
		return localSize == remoteSize, nil
	}

	localSum, err := hashLocalFile(localPath)
	if err != nil {
		return false, err
	}
	remoteSum, err := e.hashRemoteFile(ctx, remotePath)
	if err != nil {
		return false, err
	}
	return localSum == remoteSum, nil
}

func hashLocalFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", pcerr.NewLocalIOError("failed to open file for hashing", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", pcerr.NewLocalIOError("failed to read file for hashing", err)
	}
	return string(h.Sum(nil)), nil
}

func (e *Engine) hashRemoteFile(ctx context.Context, remotePath string) (string, error) {
	body, _, err := e.API.OpenDownload(ctx, remotePath)
	if err != nil {
		return "", err
	}
	defer body.Close()

	h := sha256.New()
	if _, err := io.Copy(h, body); err != nil {
		return "", pcerr.NewNetworkError("failed to read remote file for hashing", err)
	}
	return string(h.Sum(nil)), nil
}

// uploadFile uploads the file at localPath into remoteFolder, using
// localPath's base name as the remote file name.
func (e *Engine) uploadFile(ctx context.Context, localPath, remoteFolder string) error {
	f, fileSize, err := stream.OpenUploadSource(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = e.API.UploadFile(ctx, remoteFolder, filepath.Base(localPath), f, fileSize)
	return err
}

// downloadFile downloads remotePath into localFolder, using remotePath's
// base name as the local file name.
func (e *Engine) downloadFile(ctx context.Context, remotePath, localFolder string) error {
	body, size, err := e.API.OpenDownload(ctx, remotePath)
	if err != nil {
		return err
	}
	defer body.Close()
	return stream.DownloadSink(localFolder, path.Base(remotePath), body, size, nil)
}

func listLocal(dir string) ([]localEntry, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, pcerr.NewLocalIOError("failed to list local directory", err)
	}

	out := make([]localEntry, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, localEntry{
			name:     entry.Name(),
			isFolder: info.IsDir(),
			size:     info.Size(),
		})
	}
	return out, nil
}
