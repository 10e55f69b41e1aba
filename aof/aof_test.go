package aof

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/reroaring/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAt(t *testing.T, dir string, fns ...func(o *Options)) *AOF {
	t.Helper()
	a, err := Open(append([]func(o *Options){func(o *Options) { o.Path = dir }}, fns...)...)
	require.NoError(t, err)
	return a
}

func collect(t *testing.T, a *AOF) []Entry {
	t.Helper()
	var out []Entry
	require.NoError(t, a.Replay(func(e Entry) error {
		out = append(out, e)
		return nil
	}))
	return out
}

func TestAppendReplay(t *testing.T) {
	tests := []struct {
		name     string
		compress bool
		mode     DurabilityMode
	}{
		{"async", false, DurabilityAsync},
		{"group commit", false, DurabilityGroupCommit},
		{"sync", false, DurabilitySync},
		{"compressed", true, DurabilityGroupCommit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := func(o *Options) {
				o.Compress = tt.compress
				o.DurabilityMode = tt.mode
			}

			a := openAt(t, dir, cfg)
			commands := [][]string{
				{"R.SETBIT", "k", "7", "1"},
				{"R.SETINTARRAY", "k", "1", "2", "3"},
				{"R.BITOP", "OR", "dst", "k", "other"},
				{"DEL", ""},
			}
			for i, args := range commands {
				seq, err := a.Append(args...)
				require.NoError(t, err)
				assert.Equal(t, uint64(i+1), seq)
			}
			assert.Equal(t, 4, a.Len())
			require.NoError(t, a.Close())

			a = openAt(t, dir, cfg)
			defer a.Close()
			assert.Equal(t, uint64(4), a.Seq())

			got := collect(t, a)
			require.Len(t, got, len(commands))
			for i, e := range got {
				assert.Equal(t, uint64(i+1), e.Seq)
				assert.Equal(t, commands[i], e.Args)
			}

			seq, err := a.Append("R.CLEAR", "k")
			require.NoError(t, err)
			assert.Equal(t, uint64(5), seq)
			assert.Len(t, collect(t, a), 5)
		})
	}
}

func TestCompressionModeStaysWithFile(t *testing.T) {
	dir := t.TempDir()

	a := openAt(t, dir, func(o *Options) { o.Compress = true })
	_, err := a.Append("R.SETBIT", "k", "1", "1")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	a = openAt(t, dir, func(o *Options) { o.Compress = false })
	defer a.Close()
	_, err = a.Append("R.SETBIT", "k", "2", "1")
	require.NoError(t, err)
	assert.Len(t, collect(t, a), 2)
}

func TestCheckpoint(t *testing.T) {
	dir := t.TempDir()
	a := openAt(t, dir)
	defer a.Close()

	for i := 0; i < 10; i++ {
		_, err := a.Append("R.SETBIT", "k", fmt.Sprint(i), "1")
		require.NoError(t, err)
	}
	require.NoError(t, a.Checkpoint())
	assert.Equal(t, 0, a.Len())
	assert.Empty(t, collect(t, a))

	size, err := a.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(aofHeaderLen), size)

	seq, err := a.Append("R.SETBIT", "k", "99", "1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
}

func TestRewrite(t *testing.T) {
	dir := t.TempDir()
	a := openAt(t, dir, func(o *Options) { o.AutoRewriteOps = 5 })
	defer a.Close()

	for i := 0; i < 5; i++ {
		_, err := a.Append("R.SETBIT", "k", fmt.Sprint(i), "1")
		require.NoError(t, err)
	}
	assert.True(t, a.RewriteDue())

	t.Run("failure keeps log", func(t *testing.T) {
		boom := errors.New("boom")
		err := a.Rewrite(func(emit func(args ...string) error) error {
			require.NoError(t, emit("R.SETRANGE", "k", "0", "0"))
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Len(t, collect(t, a), 5)
		_, statErr := os.Stat(filepath.Join(dir, DefaultOptions.FileName+".rewrite"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("success replaces log", func(t *testing.T) {
		err := a.Rewrite(func(emit func(args ...string) error) error {
			if err := emit("R.SETRANGE", "k", "0", "0"); err != nil {
				return err
			}
			return emit("R.APPENDINTARRAY", "k", "0", "1", "2", "3", "4")
		})
		require.NoError(t, err)
		assert.False(t, a.RewriteDue())

		got := collect(t, a)
		require.Len(t, got, 2)
		assert.Equal(t, []string{"R.APPENDINTARRAY", "k", "0", "1", "2", "3", "4"}, got[1].Args)

		seq, err := a.Append("R.SETBIT", "k", "5", "1")
		require.NoError(t, err)
		assert.Equal(t, uint64(3), seq)
	})
}

func TestTornTail(t *testing.T) {
	dir := t.TempDir()
	a := openAt(t, dir)
	for i := 0; i < 3; i++ {
		_, err := a.Append("R.SETBIT", "k", fmt.Sprint(i), "1")
		require.NoError(t, err)
	}
	require.NoError(t, a.Close())

	path := filepath.Join(dir, DefaultOptions.FileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.Write([]byte{100, 0, 0, 0, 1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	t.Run("strict open fails", func(t *testing.T) {
		_, err := Open(func(o *Options) {
			o.Path = dir
			o.TruncateTail = false
		})
		require.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("tail is truncated", func(t *testing.T) {
		a := openAt(t, dir)
		defer a.Close()

		assert.Equal(t, int64(7), a.TruncatedBytes())
		assert.Equal(t, 3, a.Len())

		_, err := a.Append("R.SETBIT", "k", "3", "1")
		require.NoError(t, err)
		assert.Len(t, collect(t, a), 4)
	})
}

func TestChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	a := openAt(t, dir)
	_, err := a.Append("R.SETBIT", "k", "1", "1")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	path := filepath.Join(dir, DefaultOptions.FileName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = Open(func(o *Options) {
		o.Path = dir
		o.TruncateTail = false
	})
	require.ErrorIs(t, err, ErrCorrupt)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestInvalidHeader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultOptions.FileName), []byte("not an append only file"), 0o600))

	_, err := Open(func(o *Options) { o.Path = dir })
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestEntryTooLarge(t *testing.T) {
	a := openAt(t, t.TempDir(), func(o *Options) { o.MaxEntrySize = 64 })
	defer a.Close()

	_, err := a.Append("R.SETBIT", "k", "1", "1")
	require.NoError(t, err)

	big := make([]string, 32)
	for i := range big {
		big[i] = "123456"
	}
	_, err = a.Append(big...)
	require.ErrorIs(t, err, ErrEntryTooLarge)

	assert.Len(t, collect(t, a), 1)
}

func TestGroupCommitConcurrent(t *testing.T) {
	a := openAt(t, t.TempDir(), func(o *Options) {
		o.DurabilityMode = DurabilityGroupCommit
		o.GroupCommitInterval = time.Millisecond
		o.GroupCommitMaxOps = 16
	})
	defer a.Close()

	const writers, perWriter = 8, 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seqs = map[uint64]bool{}
	)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				seq, err := a.Append("R.SETBIT", fmt.Sprintf("k%d", w), fmt.Sprint(i), "1")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seqs[seq] = true
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, seqs, writers*perWriter)
	assert.Equal(t, writers*perWriter, a.Len())
}

func TestSyncFailure(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule(DefaultOptions.FileName, fs.Fault{FailAfterBytes: -1, FailOnSync: true})

	a := openAt(t, t.TempDir(), func(o *Options) {
		o.FS = ffs
		o.DurabilityMode = DurabilitySync
	})

	_, err := a.Append("R.SETBIT", "k", "1", "1")
	require.ErrorIs(t, err, fs.ErrInjected)
	_ = a.Close()
}

func TestClosed(t *testing.T) {
	a := openAt(t, t.TempDir())
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, err := a.Append("R.SETBIT", "k", "1", "1")
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, a.Replay(func(Entry) error { return nil }), ErrClosed)
	require.ErrorIs(t, a.Checkpoint(), ErrClosed)
	assert.False(t, a.RewriteDue())
}

func TestGenerationCreated(t *testing.T) {
	dir := t.TempDir()
	before := time.Now()
	a := openAt(t, dir)
	first := a.Created()
	assert.False(t, first.Before(before))
	_, err := a.Append("R.SETBIT", "k", "1", "1")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	a = openAt(t, dir)
	defer a.Close()
	assert.Equal(t, first.UnixNano(), a.Created().UnixNano())

	require.NoError(t, a.Checkpoint())
	second := a.Created()
	assert.True(t, second.After(first))

	require.NoError(t, a.Rewrite(func(emit func(args ...string) error) error {
		return emit("FLUSHALL")
	}))
	assert.True(t, a.Created().After(second))
}
