package reroaring

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reroaring/aof"
	"github.com/hupe1980/reroaring/blobstore"
	"github.com/hupe1980/reroaring/command"
	"github.com/hupe1980/reroaring/internal/fs"
	"github.com/hupe1980/reroaring/persistence"
)

func openDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	db, err := Open(t.Context(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func exec(t *testing.T, db *DB, args ...string) command.Reply {
	t.Helper()
	r, err := db.Exec(context.Background(), args...)
	require.NoError(t, err, "%v", args)
	return r
}

func values(t *testing.T, db *DB, key string) []uint64 {
	t.Helper()
	r := exec(t, db, "R.GETINTARRAY", key)
	require.Equal(t, command.KindArray, r.Kind)
	out := make([]uint64, len(r.Array))
	for i, e := range r.Array {
		v, ok := e.Uint64()
		require.True(t, ok)
		out[i] = v
	}
	return out
}

func TestExec(t *testing.T) {
	db := openDB(t)

	exec(t, db, "R.SETINTARRAY", "a", "1", "2", "3")
	exec(t, db, "r.setintarray", "b", "3", "4")
	r := exec(t, db, "R.BITOP", "OR", "c", "a", "b")
	assert.Equal(t, command.Int(4), r)
	assert.Equal(t, []uint64{1, 2, 3, 4}, values(t, db, "c"))
	assert.Equal(t, 3, db.Len())

	r = exec(t, db, "TYPE", "a")
	assert.Equal(t, "reroaring", r.Str)
	assert.NotEmpty(t, db.RunID())

	t.Run("WrongType", func(t *testing.T) {
		_, err := db.Exec(t.Context(), "R64.GETINTARRAY", "a")
		var ce *CommandError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "R64.GETINTARRAY", ce.Command)
		assert.ErrorIs(t, err, command.ErrWrongType)
		assert.Equal(t, "WRONGTYPE Operation against a key holding the wrong kind of value", err.Error())
	})

	t.Run("Arity", func(t *testing.T) {
		_, err := db.Exec(t.Context(), "R.SETBIT", "a")
		assert.ErrorIs(t, err, command.ErrWrongArity)
		assert.Equal(t, "ERR wrong number of arguments for 'r.setbit' command", err.Error())
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := db.Exec(t.Context(), "NOPE")
		assert.ErrorIs(t, err, command.ErrUnknownCommand)
		_, err = db.Exec(t.Context())
		assert.ErrorIs(t, err, command.ErrEmptyCommand)
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		_, err := db.Exec(ctx, "DBSIZE")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestClosed(t *testing.T) {
	db, err := Open(t.Context())
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err = db.Exec(t.Context(), "DBSIZE")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = db.Save(t.Context())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, db.RewriteAOF(t.Context()), ErrClosed)
}

func TestNotConfigured(t *testing.T) {
	db := openDB(t)
	_, err := db.Save(t.Context())
	assert.ErrorIs(t, err, ErrNoSnapshotStore)
	_, err = db.Load(t.Context())
	assert.ErrorIs(t, err, ErrNoSnapshotStore)
	assert.ErrorIs(t, db.RewriteAOF(t.Context()), ErrNoAOF)
	assert.Nil(t, db.AOF())
	assert.Nil(t, db.Snapshots())
}

func TestAOFRecovery(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			dir := t.TempDir()
			cfg := WithAOF(dir, func(o *aof.Options) {
				o.Compress = compress
				o.DurabilityMode = aof.DurabilitySync
			})

			db, err := Open(t.Context(), cfg)
			require.NoError(t, err)
			exec(t, db, "R.SETINTARRAY", "a", "1", "2")
			exec(t, db, "R.SETINTARRAY", "b", "2", "3")
			exec(t, db, "R.BITOP", "XOR", "a", "a", "b")
			exec(t, db, "R64.SETBIT", "wide", "1099511627776", "1")
			exec(t, db, "R.GETINTARRAY", "a") // reads are not logged
			exec(t, db, "DEL", "missing")     // neither are no-op deletes
			assert.Equal(t, 4, db.AOF().Len())
			require.NoError(t, db.Close())

			basic := &BasicMetricsCollector{}
			db = openDB(t, cfg, WithMetricsCollector(basic))
			assert.Equal(t, []uint64{1, 3}, values(t, db, "a"))
			r := exec(t, db, "R64.GETBIT", "wide", "1099511627776")
			assert.Equal(t, command.Int(1), r)
			assert.Equal(t, int64(4), basic.GetStats().RecoveredEntries)
		})
	}
}

func TestSaveAndRestore(t *testing.T) {
	dir := t.TempDir()
	opts := []Option{
		WithAOF(dir),
		WithSnapshotDir(dir + "/snapshots"),
		WithSnapshotOptions(func(o *persistence.Options) { o.Compression = persistence.CompressionZSTD }),
	}

	db, err := Open(t.Context(), opts...)
	require.NoError(t, err)
	exec(t, db, "R.SETRANGE", "r", "0", "100000")
	exec(t, db, "R64.SETINTARRAY", "w", "5", "18446744073709551615")

	info, err := db.Save(t.Context())
	require.NoError(t, err)
	assert.Positive(t, info.Size)
	assert.Equal(t, 0, db.AOF().Len())

	exec(t, db, "R.SETBIT", "r", "100000", "1")
	exec(t, db, "R.SETINTARRAY", "late", "7")
	assert.Equal(t, 2, db.AOF().Len())
	require.NoError(t, db.Close())

	db = openDB(t, opts...)
	assert.Equal(t, command.Int(100001), exec(t, db, "R.BITCOUNT", "r"))
	assert.Equal(t, []uint64{7}, values(t, db, "late"))
	r := exec(t, db, "R64.MAX", "w")
	assert.Equal(t, command.Uint(18446744073709551615), r)

	infos, err := db.Snapshots().List(t.Context())
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

// A crash after a snapshot is stored but before the log is emptied leaves
// log entries the snapshot already contains. Replaying them would apply
// BITOP XOR twice.
func TestLogCoveredBySnapshotIsDiscarded(t *testing.T) {
	dir := t.TempDir()
	store := blobstore.NewMemoryStore()
	opts := []Option{WithAOF(dir), WithSnapshotStore(store)}

	db, err := Open(t.Context(), opts...)
	require.NoError(t, err)
	exec(t, db, "R.SETINTARRAY", "a", "1", "2")
	exec(t, db, "R.SETINTARRAY", "b", "2", "3")
	exec(t, db, "R.BITOP", "XOR", "a", "a", "b")

	unlock := db.store.LockAll(false)
	sn, err := persistence.Capture(t.Context(), db.store, 1)
	require.NoError(t, err)
	_, err = db.Snapshots().Save(t.Context(), sn)
	unlock()
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db = openDB(t, opts...)
	assert.Equal(t, []uint64{1, 3}, values(t, db, "a"))
	assert.Equal(t, 0, db.AOF().Len())
}

func TestLoad(t *testing.T) {
	db := openDB(t, WithAOF(t.TempDir()), WithSnapshotStore(blobstore.NewMemoryStore()))

	_, err := db.Load(t.Context())
	require.ErrorIs(t, err, persistence.ErrNoSnapshot)

	exec(t, db, "R.SETINTARRAY", "k", "1", "2", "3")
	_, err = db.Save(t.Context())
	require.NoError(t, err)

	exec(t, db, "R.DELETEINTARRAY", "k", "1")
	exec(t, db, "R.SETBIT", "other", "1", "1")

	_, err = db.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, values(t, db, "k"))
	assert.Equal(t, command.Int(0), exec(t, db, "EXISTS", "other"))
	assert.Equal(t, 0, db.AOF().Len())
}

func TestCorruptSnapshotFallsBack(t *testing.T) {
	store := blobstore.NewMemoryStore()
	var skipped []string
	opts := []Option{
		WithSnapshotStore(store),
		WithSnapshotOptions(func(o *persistence.Options) {
			o.Retain = 0
			o.OnCorrupt = func(name string, _ error) { skipped = append(skipped, name) }
		}),
	}

	db, err := Open(t.Context(), opts...)
	require.NoError(t, err)
	exec(t, db, "R.SETBIT", "k", "1", "1")
	_, err = db.Save(t.Context())
	require.NoError(t, err)
	exec(t, db, "R.SETBIT", "k", "2", "1")
	latest, err := db.Save(t.Context())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.NoError(t, store.Put(t.Context(), latest.Name, []byte("garbage")))

	db = openDB(t, opts...)
	assert.Equal(t, []uint64{1}, values(t, db, "k"))
	assert.Equal(t, []string{latest.Name}, skipped)
}

func TestRewriteAOF(t *testing.T) {
	dir := t.TempDir()
	cfg := WithAOF(dir)

	db, err := Open(t.Context(), cfg, WithAutoRewrite(false), WithRewriteChunk(3))
	require.NoError(t, err)
	for i := range 10 {
		exec(t, db, "R.SETBIT", "k", fmt.Sprint(2*i+1), "1")
		exec(t, db, "R.SETBIT", "k", fmt.Sprint(2*i+1), "0")
		exec(t, db, "R.SETBIT", "k", fmt.Sprint(2*i), "1")
	}
	exec(t, db, "R64.SETINTARRAY", "w", "1", "2")
	assert.Equal(t, 31, db.AOF().Len())

	require.NoError(t, db.RewriteAOF(t.Context()))
	// FLUSHALL, then per key SETRANGE and ceil(n/3) APPENDINTARRAY lines.
	assert.Equal(t, 1+(1+4)+(1+1), db.AOF().Len())
	require.NoError(t, db.Close())

	db = openDB(t, cfg)
	assert.Equal(t, []uint64{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}, values(t, db, "k"))
	assert.Equal(t, command.Int(2), exec(t, db, "R64.BITCOUNT", "w"))
}

func TestAutoRewrite(t *testing.T) {
	basic := &BasicMetricsCollector{}
	db := openDB(t,
		WithAOF(t.TempDir(), func(o *aof.Options) { o.AutoRewriteOps = 10 }),
		WithMetricsCollector(basic),
	)
	for i := range 25 {
		exec(t, db, "R.SETBIT", "k", fmt.Sprint(i), "1")
	}
	assert.Eventually(t, func() bool {
		return basic.GetStats().RewriteCount > 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Less(t, db.AOF().Len(), 25)
}

func TestPersistenceFailure(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule(aof.DefaultOptions.FileName, fs.Fault{FailAfterBytes: -1, FailOnSync: true})
	db := openDB(t, WithAOF(t.TempDir(), func(o *aof.Options) {
		o.FS = ffs
		o.DurabilityMode = aof.DurabilitySync
	}))

	_, err := db.Exec(t.Context(), "R.SETBIT", "k", "2", "1")
	require.ErrorIs(t, err, ErrPersistence)
	require.ErrorIs(t, err, fs.ErrInjected)
	var ce *CommandError
	assert.False(t, errors.As(err, &ce))

	// The write itself was applied.
	assert.Equal(t, []uint64{2}, values(t, db, "k"))
}

func TestMetricsAndConcurrency(t *testing.T) {
	basic := &BasicMetricsCollector{}
	db := openDB(t, WithMetricsCollector(basic), WithShards(4))

	const workers, perWorker = 8, 50
	errc := make(chan error, workers)
	for w := range workers {
		go func() {
			var err error
			for i := range perWorker {
				if _, e := db.Exec(t.Context(), "R.SETBIT", "shared", fmt.Sprint(w*perWorker+i), "1"); e != nil {
					err = e
				}
				if _, e := db.Exec(t.Context(), "R.BITOP", "OR", fmt.Sprint("dst", w), "shared", fmt.Sprint("dst", w)); e != nil {
					err = e
				}
			}
			errc <- err
		}()
	}
	for range workers {
		require.NoError(t, <-errc)
	}

	assert.Equal(t, command.Int(workers*perWorker), exec(t, db, "R.BITCOUNT", "shared"))

	stats := basic.GetStats()
	assert.Equal(t, int64(2*workers*perWorker+1), stats.CommandCount)
	assert.Equal(t, int64(2*workers*perWorker), stats.WriteCount)
	assert.Zero(t, stats.CommandErrors)
	assert.Equal(t, int64(workers*perWorker), basic.CommandCalls("r.setbit"))
}
