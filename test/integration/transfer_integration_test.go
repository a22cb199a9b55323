// Package integration exercises the C1-C9 engine components wired together
// against an in-memory fake pCloud server, the way a real upload/download/
// sync/resume run would, without a network dependency.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pulsepoint/pulsepoint/internal/engine/duplicate"
	"github.com/pulsepoint/pulsepoint/internal/engine/pcloud"
	"github.com/pulsepoint/pulsepoint/internal/engine/pcloud/pctest"
	"github.com/pulsepoint/pulsepoint/internal/engine/plan"
	"github.com/pulsepoint/pulsepoint/internal/engine/state"
	"github.com/pulsepoint/pulsepoint/internal/engine/stream"
	"github.com/pulsepoint/pulsepoint/internal/engine/syncer"
	"github.com/pulsepoint/pulsepoint/internal/engine/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntegrationClient(t *testing.T, srv *pctest.Server) *pcloud.Client {
	t.Helper()
	c := pcloud.NewClient(pcloud.ClientConfig{
		Region:          pcloud.US,
		WorkerCount:     2,
		BaseURLOverride: srv.URL(),
	})
	c.SetToken(srv.Token())
	return c
}

// TestUploadDownloadRoundTrip plans a local tree, uploads it through the
// coordinator, persists transfer state, then plans and downloads it back
// into a second local directory and checks the bytes match.
func TestUploadDownloadRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	srv := pctest.NewServer()
	defer srv.Close()
	client := newIntegrationClient(t, srv)
	ctx := context.Background()

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "root.txt"), []byte("hello root"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "nested.txt"), []byte("hello nested"), 0o644))

	lp := plan.PlanLocalUpload(src, "/remote")
	require.Empty(t, lp.Errors)

	foldersResult := plan.EnsureFolders(lp.Folders, func(folder string) error {
		return client.CreateFolder(ctx, folder)
	})
	require.Empty(t, foldersResult.Failed)

	cache := duplicate.NewListingCache(client)
	resolver := duplicate.NewResolver(duplicate.Rename, cache, client, nil)

	var tasks []transfer.Task
	var totalBytes int64
	for _, task := range lp.Tasks {
		info, err := os.Stat(task.LocalFile)
		require.NoError(t, err)
		decision, err := resolver.Resolve(ctx, task.RemoteFolder, info.Name(), info.Size())
		require.NoError(t, err)
		require.Equal(t, duplicate.Proceed, decision)
		tasks = append(tasks, transfer.Task{Source: task.LocalFile, Destination: task.RemoteFolder, Size: info.Size()})
		totalBytes += info.Size()
	}
	require.Len(t, tasks, 2)

	st := state.New(state.Upload, toPendingTasks(tasks), totalBytes)
	statePath := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, state.Save(statePath, st))

	uploadOne := func(ctx context.Context, task transfer.Task, onChunk func(int64)) (int64, error) {
		f, size, err := stream.OpenUploadSource(task.Source)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		counting := stream.NewCountingReader(f, onChunk)
		if _, err := client.UploadFile(ctx, task.Destination, filepath.Base(task.Source), counting, size); err != nil {
			return 0, err
		}
		return counting.TotalRead(), nil
	}

	cfg := transfer.Config{Workers: 2, State: st}
	result := transfer.Run(ctx, tasks, uploadOne, cfg)
	assert.Len(t, result.Succeeded, 2)
	assert.Empty(t, result.Failed)
	require.NoError(t, state.Save(statePath, st))

	loaded, err := state.Load(statePath)
	require.NoError(t, err)
	assert.False(t, loaded.ChecksumMismatch)
	report := state.Validate(loaded.State, loaded.ChecksumMismatch)
	assert.True(t, report.IsValid)
	assert.True(t, loaded.State.IsDone())

	// PlanLocalUpload mirrors the tree under /remote/<basename of src>.
	base := filepath.Base(src)
	assert.ElementsMatch(t, []string{"/remote/" + base + "/root.txt", "/remote/" + base + "/sub/nested.txt"}, srv.ListFiles())

	dst := t.TempDir()
	rp := plan.PlanRemoteDownload(ctx, client, "/remote", dst)
	require.Empty(t, rp.Errors)
	for _, folder := range rp.Folders {
		require.NoError(t, os.MkdirAll(folder, 0o755))
	}

	for _, dlTask := range rp.Tasks {
		body, size, err := client.OpenDownload(ctx, dlTask.RemoteFile)
		require.NoError(t, err)
		require.NoError(t, stream.DownloadSink(dlTask.LocalFolder, filepath.Base(dlTask.RemoteFile), body, size, nil))
		body.Close()
	}

	rootContent, err := os.ReadFile(filepath.Join(dst, "remote", base, "root.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello root", string(rootContent))

	nestedContent, err := os.ReadFile(filepath.Join(dst, "remote", base, "sub", "nested.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello nested", string(nestedContent))
}

// TestSyncEngineReconcilesLocalOnlyFiles exercises syncer.Engine directly
// against the fake server, the same RemoteAPI surface the CLI's sync
// command drives.
func TestSyncEngineReconcilesLocalOnlyFiles(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	srv := pctest.NewServer()
	defer srv.Close()
	client := newIntegrationClient(t, srv)
	ctx := context.Background()

	local := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(local, "new.txt"), []byte("new file"), 0o644))

	require.NoError(t, client.CreateFolder(ctx, "/remote"))

	engine := syncer.New(client, syncer.SizeEqual, nil)
	result, err := engine.Sync(ctx, local, "/remote", syncer.Upload)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
	assert.Contains(t, srv.ListFiles(), "/remote/new.txt")
}

func toPendingTasks(tasks []transfer.Task) []state.PendingTask {
	out := make([]state.PendingTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, state.PendingTask{Source: t.Source, Destination: t.Destination})
	}
	return out
}
