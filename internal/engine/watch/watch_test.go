package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresRootAndSync(t *testing.T) {
	_, err := New(Config{Sync: func(ctx context.Context) error { return nil }})
	assert.Error(t, err)

	_, err = New(Config{Root: t.TempDir()})
	assert.Error(t, err)
}

func TestNewDefaultsDebounceAndLogger(t *testing.T) {
	w, err := New(Config{Root: t.TempDir(), Sync: func(ctx context.Context) error { return nil }})
	require.NoError(t, err)
	defer w.watcher.Close()

	assert.Equal(t, DefaultDebounce, w.cfg.Debounce)
	assert.NotNil(t, w.cfg.Logger)
}

func TestRunFiresDebouncedSyncOnFileCreate(t *testing.T) {
	root := t.TempDir()

	var calls int32
	synced := make(chan struct{}, 1)
	w, err := New(Config{
		Root:     root,
		Debounce: 20 * time.Millisecond,
		Sync: func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			select {
			case synced <- struct{}{}:
			default:
			}
			return nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))

	select {
	case <-synced:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced sync")
	}

	cancel()
	<-done
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestRunWatchesNewlyCreatedSubdirectories(t *testing.T) {
	root := t.TempDir()

	synced := make(chan struct{}, 1)
	w, err := New(Config{
		Root:     root,
		Debounce: 20 * time.Millisecond,
		Sync: func(ctx context.Context) error {
			select {
			case synced <- struct{}{}:
			default:
			}
			return nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	select {
	case <-synced:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sync triggered by subdirectory creation")
	}

	// A file created inside the new subdirectory must also be observed,
	// proving the subdirectory was actually added to the fsnotify watch.
	drain := func() {
		for {
			select {
			case <-synced:
			default:
				return
			}
		}
	}
	drain()

	require.NoError(t, os.WriteFile(filepath.Join(sub, "nested.txt"), []byte("x"), 0o644))
	select {
	case <-synced:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sync triggered by nested file creation")
	}
}

func TestRunReturnsContextErrorOnCancellation(t *testing.T) {
	root := t.TempDir()
	w, err := New(Config{Root: root, Sync: func(ctx context.Context) error { return nil }})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
