package plan

import (
	"context"
	"path"
	"path/filepath"
	"sort"

	"github.com/pulsepoint/pulsepoint/internal/engine/pcloud"
)

// FolderLister is the minimal remote capability the planner needs to
// descend a remote tree; satisfied by *pcloud.Client.
type FolderLister interface {
	ListFolder(ctx context.Context, path string) ([]pcloud.FileItem, error)
}

// DownloadTask pairs a remote file with the local folder it should land in.
type DownloadTask struct {
	RemoteFile  string
	LocalFolder string
}

// RemotePlan is the result of descending a remote tree for download.
type RemotePlan struct {
	// Folders is the sorted set of local folders to ensure before any file
	// transfer begins.
	Folders []string
	Tasks   []DownloadTask
	Errors  []PathError
}

// PlanRemoteDownload lists remoteRoot and descends its folders, emitting
// (remote_file, local_folder) pairs that mirror the remote structure under
// localBase/basename(remoteRoot), per spec §4.3. Listing failures are
// collected against the offending folder path rather than aborting the
// walk.
func PlanRemoteDownload(ctx context.Context, lister FolderLister, remoteRoot, localBase string) *RemotePlan {
	rootFolder := filepath.Join(localBase, path.Base(path.Clean(remoteRoot)))

	p := &RemotePlan{}
	folderSet := map[string]bool{rootFolder: true}

	walkRemote(ctx, lister, path.Clean(remoteRoot), rootFolder, folderSet, p)

	p.Folders = sortedKeys(folderSet)
	return p
}

func walkRemote(ctx context.Context, lister FolderLister, remotePath, localFolder string, folderSet map[string]bool, p *RemotePlan) {
	items, err := lister.ListFolder(ctx, remotePath)
	if err != nil {
		p.Errors = append(p.Errors, PathError{Path: remotePath, Err: err})
		return
	}

	for _, item := range items {
		if item.IsFolder {
			childRemote := path.Join(remotePath, item.Name)
			childLocal := filepath.Join(localFolder, item.Name)
			folderSet[childLocal] = true
			walkRemote(ctx, lister, childRemote, childLocal, folderSet, p)
			continue
		}
		p.Tasks = append(p.Tasks, DownloadTask{
			RemoteFile:  path.Join(remotePath, item.Name),
			LocalFolder: localFolder,
		})
	}
}

// folderBatchSize is the group size folder creation is parallelised in, per
// spec §4.3 ("batched and parallelised in groups (10 at a time)").
const folderBatchSize = 10

// EnsureFoldersResult records which folders failed to be created, keyed by
// folder path.
type EnsureFoldersResult struct {
	Failed map[string]error
}

// EnsureFolders calls create for every folder in folders, in batches of
// folderBatchSize run concurrently, amortising round trips. An individual
// failure is recorded in the result but never blocks the rest of the batch.
func EnsureFolders(folders []string, create func(folder string) error) EnsureFoldersResult {
	result := EnsureFoldersResult{Failed: make(map[string]error)}

	type outcome struct {
		folder string
		err    error
	}

	for start := 0; start < len(folders); start += folderBatchSize {
		end := start + folderBatchSize
		if end > len(folders) {
			end = len(folders)
		}
		batch := folders[start:end]

		outcomes := make(chan outcome, len(batch))
		for _, f := range batch {
			f := f
			go func() {
				outcomes <- outcome{folder: f, err: create(f)}
			}()
		}
		for range batch {
			o := <-outcomes
			if o.err != nil {
				result.Failed[o.folder] = o.err
			}
		}
	}

	return result
}

// SortedFailedFolders returns the folders that failed to be created, sorted,
// for deterministic test assertions and log output.
func (r EnsureFoldersResult) SortedFailedFolders() []string {
	out := make([]string, 0, len(r.Failed))
	for k := range r.Failed {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
