// Package duplicate implements C4: given a planned destination, decide
// skip / overwrite / rename by consulting a per-folder-cached remote
// listing, per spec §4.4.
package duplicate

import (
	"context"
	"path"
	"sync"

	"github.com/pulsepoint/pulsepoint/internal/engine/pcloud"
	"go.uber.org/zap"
)

// Mode is one of the three duplicate-handling policies.
type Mode string

const (
	// Skip completes the task as a no-op if a same-name, same-size file
	// already exists at the destination.
	Skip Mode = "skip"
	// Overwrite deletes any existing same-name file before the transfer
	// proceeds; a failed delete is logged but does not block the upload.
	Overwrite Mode = "overwrite"
	// Rename lets the remote auto-rename on collision (its native
	// behaviour). This is the default.
	Rename Mode = "rename"
)

// DefaultMode is rename, per spec §4.4.
const DefaultMode = Rename

// FolderLister is the remote capability the cache wraps.
type FolderLister interface {
	ListFolder(ctx context.Context, path string) ([]pcloud.FileItem, error)
}

// FileDeleter is the remote capability Overwrite mode uses to clear a
// colliding file before upload.
type FileDeleter interface {
	DeleteFile(ctx context.Context, path string) error
}

// ListingCache caches a folder's listing for the lifetime of a batch, per
// spec §4.4/§5 ("the listing cache lives for the duration of a batch and is
// discarded afterwards").
type ListingCache struct {
	mu     sync.Mutex
	lister FolderLister
	cache  map[string][]pcloud.FileItem
}

// NewListingCache creates an empty cache backed by lister.
func NewListingCache(lister FolderLister) *ListingCache {
	return &ListingCache{lister: lister, cache: make(map[string][]pcloud.FileItem)}
}

// Listing returns folder's contents, fetching and caching them on first
// request.
func (c *ListingCache) Listing(ctx context.Context, folder string) ([]pcloud.FileItem, error) {
	c.mu.Lock()
	if items, ok := c.cache[folder]; ok {
		c.mu.Unlock()
		return items, nil
	}
	c.mu.Unlock()

	items, err := c.lister.ListFolder(ctx, folder)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[folder] = items
	c.mu.Unlock()
	return items, nil
}

// Decision is the outcome of resolving a planned upload against the
// existing remote listing.
type Decision int

const (
	// Proceed means the transfer should run normally.
	Proceed Decision = iota
	// SkipExisting means the transfer is a no-op; the caller should count
	// it as skipped.
	SkipExisting
)

// Resolver applies a Mode against a ListingCache.
type Resolver struct {
	Mode    Mode
	Cache   *ListingCache
	Deleter FileDeleter
	Logger  *zap.Logger
}

// NewResolver builds a Resolver, defaulting Mode to Rename and Logger to a
// no-op logger when unset.
func NewResolver(mode Mode, cache *ListingCache, deleter FileDeleter, logger *zap.Logger) *Resolver {
	if mode == "" {
		mode = DefaultMode
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{Mode: mode, Cache: cache, Deleter: deleter, Logger: logger}
}

// Resolve decides what to do about uploading a file named name of
// localSize bytes into remoteFolder.
func (r *Resolver) Resolve(ctx context.Context, remoteFolder, name string, localSize int64) (Decision, error) {
	items, err := r.Cache.Listing(ctx, remoteFolder)
	if err != nil {
		return Proceed, err
	}

	var existing *pcloud.FileItem
	for i := range items {
		if items[i].Name == name && !items[i].IsFolder {
			existing = &items[i]
			break
		}
	}
	if existing == nil {
		return Proceed, nil
	}

	switch r.Mode {
	case Skip:
		if existing.Size == localSize {
			return SkipExisting, nil
		}
		return Proceed, nil
	case Overwrite:
		remotePath := path.Join(remoteFolder, name)
		if err := r.Deleter.DeleteFile(ctx, remotePath); err != nil {
			r.Logger.Warn("best-effort delete before overwrite failed; upload proceeds anyway",
				zap.String("path", remotePath), zap.Error(err))
		}
		return Proceed, nil
	default: // Rename
		return Proceed, nil
	}
}
