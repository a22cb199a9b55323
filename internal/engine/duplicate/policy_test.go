package duplicate

import (
	"context"
	"errors"
	"testing"

	"github.com/pulsepoint/pulsepoint/internal/engine/pcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	calls   int
	items   []pcloud.FileItem
	listErr error
}

func (s *stubLister) ListFolder(ctx context.Context, path string) ([]pcloud.FileItem, error) {
	s.calls++
	return s.items, s.listErr
}

type stubDeleter struct {
	deletedPath string
	deleteErr   error
}

func (s *stubDeleter) DeleteFile(ctx context.Context, path string) error {
	s.deletedPath = path
	return s.deleteErr
}

func TestListingCacheFetchesOnceAndReuses(t *testing.T) {
	lister := &stubLister{items: []pcloud.FileItem{{Name: "a.txt", Size: 10}}}
	cache := NewListingCache(lister)

	_, err := cache.Listing(context.Background(), "/docs")
	require.NoError(t, err)
	_, err = cache.Listing(context.Background(), "/docs")
	require.NoError(t, err)

	assert.Equal(t, 1, lister.calls)
}

func TestResolveProceedsWhenNoCollision(t *testing.T) {
	cache := NewListingCache(&stubLister{items: nil})
	r := NewResolver(Skip, cache, nil, nil)

	decision, err := r.Resolve(context.Background(), "/docs", "a.txt", 10)
	require.NoError(t, err)
	assert.Equal(t, Proceed, decision)
}

func TestResolveSkipSameSize(t *testing.T) {
	cache := NewListingCache(&stubLister{items: []pcloud.FileItem{{Name: "a.txt", Size: 10}}})
	r := NewResolver(Skip, cache, nil, nil)

	decision, err := r.Resolve(context.Background(), "/docs", "a.txt", 10)
	require.NoError(t, err)
	assert.Equal(t, SkipExisting, decision)
}

func TestResolveSkipModeProceedsOnSizeMismatch(t *testing.T) {
	cache := NewListingCache(&stubLister{items: []pcloud.FileItem{{Name: "a.txt", Size: 10}}})
	r := NewResolver(Skip, cache, nil, nil)

	decision, err := r.Resolve(context.Background(), "/docs", "a.txt", 999)
	require.NoError(t, err)
	assert.Equal(t, Proceed, decision)
}

func TestResolveOverwriteDeletesExistingAndProceeds(t *testing.T) {
	deleter := &stubDeleter{}
	cache := NewListingCache(&stubLister{items: []pcloud.FileItem{{Name: "a.txt", Size: 5}}})
	r := NewResolver(Overwrite, cache, deleter, nil)

	decision, err := r.Resolve(context.Background(), "/docs", "a.txt", 999)
	require.NoError(t, err)
	assert.Equal(t, Proceed, decision)
	assert.Equal(t, "/docs/a.txt", deleter.deletedPath)
}

func TestResolveOverwriteProceedsEvenIfDeleteFails(t *testing.T) {
	deleter := &stubDeleter{deleteErr: errors.New("remote refused delete")}
	cache := NewListingCache(&stubLister{items: []pcloud.FileItem{{Name: "a.txt", Size: 5}}})
	r := NewResolver(Overwrite, cache, deleter, nil)

	decision, err := r.Resolve(context.Background(), "/docs", "a.txt", 999)
	require.NoError(t, err)
	assert.Equal(t, Proceed, decision)
}

func TestResolveRenameAlwaysProceeds(t *testing.T) {
	cache := NewListingCache(&stubLister{items: []pcloud.FileItem{{Name: "a.txt", Size: 5}}})
	r := NewResolver(Rename, cache, nil, nil)

	decision, err := r.Resolve(context.Background(), "/docs", "a.txt", 999)
	require.NoError(t, err)
	assert.Equal(t, Proceed, decision)
}

func TestNewResolverDefaultsToRenameMode(t *testing.T) {
	r := NewResolver("", NewListingCache(&stubLister{}), nil, nil)
	assert.Equal(t, DefaultMode, r.Mode)
}

func TestResolvePropagatesListingError(t *testing.T) {
	cache := NewListingCache(&stubLister{listErr: errors.New("network down")})
	r := NewResolver(Skip, cache, nil, nil)

	_, err := r.Resolve(context.Background(), "/docs", "a.txt", 10)
	assert.Error(t, err)
}
