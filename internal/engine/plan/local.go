// Package plan implements C3, the tree planner: it walks a local directory
// or a remote folder and produces the (src, dst) pairs and the set of
// destination folders a batch transfer needs, per spec §4.3.
package plan

import (
	"os"
	"path"
	"path/filepath"
	"sort"
)

// UploadTask pairs a local file with the remote folder it belongs in. The
// remote file name is derived from the local file's base name.
type UploadTask struct {
	LocalFile    string
	RemoteFolder string
}

// PathError records a planning failure against the path it occurred on.
// Planning failures are collected and surfaced at the end, never dropped
// silently, per spec §4.3/§7.
type PathError struct {
	Path string
	Err  error
}

// LocalPlan is the result of walking a local tree for upload.
type LocalPlan struct {
	// Folders is the sorted set of remote folder paths to ensure before any
	// file transfer begins.
	Folders []string
	Tasks   []UploadTask
	Errors  []PathError
}

// PlanLocalUpload walks localRoot and produces the remote folder set and
// file tasks to mirror it under remoteBase/basename(localRoot), per spec
// §4.3: "the remote folder for a local file L/sub/x/f.ext is
// R/L_basename/sub/x". Symlinks are followed; unreadable entries are
// reported as failures but do not abort planning.
func PlanLocalUpload(localRoot, remoteBase string) *LocalPlan {
	cleanRoot := filepath.Clean(localRoot)
	rootFolder := joinRemote(remoteBase, filepath.Base(cleanRoot))

	p := &LocalPlan{}
	folderSet := map[string]bool{rootFolder: true}

	walkLocal(cleanRoot, rootFolder, folderSet, p)

	p.Folders = sortedKeys(folderSet)
	return p
}

func walkLocal(dir, remoteFolder string, folderSet map[string]bool, p *LocalPlan) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		p.Errors = append(p.Errors, PathError{Path: dir, Err: err})
		return
	}

	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		isDir, err := resolvedIsDir(full, entry)
		if err != nil {
			p.Errors = append(p.Errors, PathError{Path: full, Err: err})
			continue
		}

		if isDir {
			childFolder := joinRemote(remoteFolder, entry.Name())
			folderSet[childFolder] = true
			walkLocal(full, childFolder, folderSet, p)
			continue
		}

		p.Tasks = append(p.Tasks, UploadTask{LocalFile: full, RemoteFolder: remoteFolder})
	}
}

// resolvedIsDir reports whether full is a directory, following symlinks
// (spec §4.3: "Symlinks are followed").
func resolvedIsDir(full string, entry os.DirEntry) (bool, error) {
	if entry.Type()&os.ModeSymlink == 0 {
		return entry.IsDir(), nil
	}
	info, err := os.Stat(full) // os.Stat follows symlinks
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func joinRemote(base, elem string) string {
	return path.Join(filepath.ToSlash(base), elem)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
