package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reroaring/internal/fs"
)

func TestLocalStore(t *testing.T) {
	t.Run("Mmap", func(t *testing.T) {
		testStore(t, NewLocalStore(filepath.Join(t.TempDir(), "snapshots")))
	})

	t.Run("File", func(t *testing.T) {
		testStore(t, NewLocalStore(t.TempDir(), func(o *LocalOptions) {
			o.Mmap = false
		}))
	})
}

func TestLocalStoreLayout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewLocalStore(root)
	assert.Equal(t, root, s.Root())

	w, err := s.Create(ctx, "snapshot-7.rrb")
	require.NoError(t, err)
	_, err = w.Write([]byte("data"))
	require.NoError(t, err)

	// In-flight writes are hidden from List.
	_, err = os.Stat(filepath.Join(root, "snapshot-7.rrb"+partialSuffix))
	require.NoError(t, err)
	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, w.Close())
	_, err = os.Stat(filepath.Join(root, "snapshot-7.rrb"+partialSuffix))
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(filepath.Join(root, "snapshot-7.rrb"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestLocalStoreMissingRoot(t *testing.T) {
	s := NewLocalStore(filepath.Join(t.TempDir(), "does", "not", "exist"))
	names, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStoreRejectsInvalidNames(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())

	for _, name := range []string{"", "../escape", "a/b", "/abs"} {
		require.ErrorIs(t, s.Put(ctx, name, nil), ErrInvalidName, name)
		_, err := s.Open(ctx, name)
		require.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestLocalStoreWriteFailureKeepsPreviousBlob(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	ffs := fs.NewFaultyFS(nil)
	s := NewLocalStore(root, func(o *LocalOptions) { o.FS = ffs })
	require.NoError(t, s.Put(ctx, "snapshot-1.rrb", []byte("good")))

	t.Run("Sync", func(t *testing.T) {
		ffs.AddRule(partialSuffix, fs.Fault{FailAfterBytes: -1, FailOnSync: true})
		defer ffs.ClearRules()

		require.ErrorIs(t, s.Put(ctx, "snapshot-1.rrb", []byte("bad")), fs.ErrInjected)
	})

	t.Run("Write", func(t *testing.T) {
		ffs.AddRule(partialSuffix, fs.Fault{FailAfterBytes: 2})
		defer ffs.ClearRules()

		require.ErrorIs(t, s.Put(ctx, "snapshot-1.rrb", []byte("bad")), fs.ErrInjected)
	})

	t.Run("Rename", func(t *testing.T) {
		ffs.AddRule("snapshot-1.rrb", fs.Fault{FailAfterBytes: -1, FailOnRename: true})
		defer ffs.ClearRules()

		require.ErrorIs(t, s.Put(ctx, "snapshot-1.rrb", []byte("bad")), fs.ErrInjected)
	})

	data, err := Get(ctx, s, "snapshot-1.rrb")
	require.NoError(t, err)
	assert.Equal(t, "good", string(data))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
