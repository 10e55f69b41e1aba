package reroaring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/reroaring/aof"
	"github.com/hupe1980/reroaring/command"
	"github.com/hupe1980/reroaring/internal/keyspace"
	"github.com/hupe1980/reroaring/persistence"
	"github.com/hupe1980/reroaring/resource"
)

// DB is an in-process bitmap key-value store. It is safe for concurrent
// use.
type DB struct {
	store     *keyspace.Store
	registry  *command.Registry
	aof       *aof.AOF
	snapshots *persistence.Manager
	rc        *resource.Controller
	logger    *Logger
	metrics   MetricsCollector
	runID     uuid.UUID
	opts      options

	// mu guards closed. Operations hold it shared; Close holds it
	// exclusively.
	mu     sync.RWMutex
	closed bool

	// persistMu serializes Save, Load and RewriteAOF.
	persistMu sync.Mutex

	rewriteCh chan struct{}
	stopCh    chan struct{}
	bgWg      sync.WaitGroup
}

// Open creates a DB. With a snapshot store configured it restores the
// newest readable snapshot; with an AOF configured it then replays the log.
// A log generation that started before the restored snapshot was taken is
// already covered by it and is discarded instead of replayed.
func Open(ctx context.Context, optFns ...Option) (*DB, error) {
	opts := applyOptions(optFns)

	d := &DB{
		store:     keyspace.New(opts.shards),
		registry:  opts.registry,
		rc:        resource.NewController(opts.resourceConfig),
		metrics:   opts.metricsCollector,
		runID:     uuid.New(),
		opts:      opts,
		rewriteCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
	d.logger = opts.logger.WithRunID(d.runID.String())

	var snapshotAt time.Time
	if opts.snapshotStore != nil {
		d.snapshots = persistence.NewManager(opts.snapshotStore, append(opts.snapshotOptions, func(o *persistence.Options) {
			o.Controller = d.rc
			if o.OnCorrupt == nil {
				o.OnCorrupt = func(name string, err error) {
					d.logger.WarnContext(ctx, "skipping unreadable snapshot", "name", name, "error", err)
				}
			}
		})...)

		sn, err := d.restoreLatest(ctx)
		if err != nil {
			return nil, err
		}
		if sn != nil {
			snapshotAt = sn.Header.CreatedAt
		}
	}

	if opts.aofPath != "" {
		a, err := aof.Open(append([]func(*aof.Options){func(o *aof.Options) { o.Path = opts.aofPath }}, opts.aofOptions...)...)
		if err != nil {
			return nil, err
		}
		d.aof = a
		if n := a.TruncatedBytes(); n > 0 {
			d.logger.WarnContext(ctx, "truncated torn AOF tail", "bytes", n)
		}
		if err := d.recover(ctx, snapshotAt); err != nil {
			_ = a.Close()
			return nil, err
		}
		if opts.autoRewrite {
			d.bgWg.Add(1)
			go d.rewriteWorker()
		}
	}
	return d, nil
}

// restoreLatest loads the newest readable snapshot into the keyspace. It
// returns nil when the store holds none.
func (d *DB) restoreLatest(ctx context.Context) (*persistence.Snapshot, error) {
	start := time.Now()
	sn, info, err := d.snapshots.LoadLatest(ctx)
	if errors.Is(err, persistence.ErrNoSnapshot) {
		return nil, nil
	}
	if err == nil {
		unlock := d.store.LockAll(true)
		err = sn.Restore(ctx, d.store, d.snapshots.Options().Concurrency)
		unlock()
	}
	d.metrics.RecordSnapshot("load", info.Size, time.Since(start), err)
	if err != nil {
		d.logger.LogSnapshot(ctx, "load", info.Name, 0, err)
		return nil, err
	}
	d.logger.LogSnapshot(ctx, "load", info.Name, len(sn.Records), nil)
	return sn, nil
}

func (d *DB) recover(ctx context.Context, snapshotAt time.Time) error {
	if !snapshotAt.IsZero() && d.aof.Created().Before(snapshotAt) {
		d.logger.InfoContext(ctx, "AOF predates snapshot, discarding",
			"aof_created", d.aof.Created(),
			"snapshot_created", snapshotAt,
			"entries", d.aof.Len(),
		)
		return d.aof.Checkpoint()
	}

	start := time.Now()
	n := 0
	err := d.aof.Replay(func(e aof.Entry) error {
		if _, err := d.registry.Exec(d.store, e.Args, nil); err != nil {
			return &RecoveryError{Seq: e.Seq, Args: e.Args, cause: err}
		}
		n++
		return nil
	})
	d.metrics.RecordRecovery(n, time.Since(start), err)
	d.logger.LogRecovery(ctx, n, err)
	return err
}

// RunID identifies this DB instance. Snapshots record it.
func (d *DB) RunID() string { return d.runID.String() }

// Registry returns the command table.
func (d *DB) Registry() *command.Registry { return d.registry }

// AOF returns the append-only log, or nil when it is disabled.
func (d *DB) AOF() *aof.AOF { return d.aof }

// Snapshots returns the snapshot manager, or nil when no snapshot store is
// configured.
func (d *DB) Snapshots() *persistence.Manager { return d.snapshots }

// Len returns the number of keys.
func (d *DB) Len() int {
	unlock := d.store.LockAll(false)
	defer unlock()
	return d.store.Len()
}

// Exec runs one command, for example Exec(ctx, "R.SETBIT", "k", "7", "1").
// Errors of the command itself are *CommandError values whose message is
// the Redis-style error reply. A write that was applied but could not be
// logged fails with ErrPersistence.
func (d *DB) Exec(ctx context.Context, args ...string) (command.Reply, error) {
	if err := ctx.Err(); err != nil {
		return command.Reply{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return command.Reply{}, ErrClosed
	}

	start := time.Now()
	var logFn func([]string) error
	if d.aof != nil {
		logFn = d.appendLog
	}
	reply, err := d.registry.Exec(d.store, args, logFn)
	err = translateError(args, err)

	name, write := "", false
	if len(args) > 0 {
		name = strings.ToUpper(args[0])
		if spec, lerr := d.registry.Lookup(name); lerr == nil {
			write = spec.Write()
		}
	}
	dur := time.Since(start)
	d.metrics.RecordCommand(name, write, dur, err)
	d.logger.LogCommand(ctx, args, dur, err)

	if write && err == nil && d.aof != nil && d.opts.autoRewrite {
		select {
		case d.rewriteCh <- struct{}{}:
		default:
		}
	}
	return reply, err
}

func (d *DB) appendLog(args []string) error {
	if _, err := d.aof.Append(args...); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Save writes a snapshot of the keyspace and, once it is stored, empties
// the AOF. Writers wait while Save runs; readers do not.
func (d *DB) Save(ctx context.Context) (persistence.Info, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return persistence.Info{}, ErrClosed
	}
	if d.snapshots == nil {
		return persistence.Info{}, ErrNoSnapshotStore
	}
	d.persistMu.Lock()
	defer d.persistMu.Unlock()

	start := time.Now()
	unlock := d.store.LockAll(false)
	defer unlock()

	info, keys, err := d.save(ctx)
	d.metrics.RecordSnapshot("save", info.Size, time.Since(start), err)
	d.logger.LogSnapshot(ctx, "save", info.Name, keys, err)
	return info, err
}

// save runs under persistMu and a shared LockAll.
func (d *DB) save(ctx context.Context) (persistence.Info, int, error) {
	sn, err := persistence.Capture(ctx, d.store, d.snapshots.Options().Concurrency)
	if err != nil {
		return persistence.Info{}, 0, err
	}
	sn.Header.RunID = d.runID

	info, err := d.snapshots.Save(ctx, sn)
	if err != nil && info.Name == "" {
		return info, 0, err
	}
	// A failed prune leaves the new snapshot in place; it still covers
	// the log.
	if d.aof != nil {
		if cerr := d.aof.Checkpoint(); cerr != nil {
			return info, len(sn.Records), errors.Join(err, fmt.Errorf("%w: %w", ErrPersistence, cerr))
		}
	}
	return info, len(sn.Records), err
}

// Load replaces the keyspace with the newest readable snapshot and empties
// the AOF. It fails with persistence.ErrNoSnapshot when there is none.
func (d *DB) Load(ctx context.Context) (persistence.Info, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return persistence.Info{}, ErrClosed
	}
	if d.snapshots == nil {
		return persistence.Info{}, ErrNoSnapshotStore
	}
	d.persistMu.Lock()
	defer d.persistMu.Unlock()

	start := time.Now()
	sn, info, err := d.snapshots.LoadLatest(ctx)
	keys := 0
	if err == nil {
		unlock := d.store.LockAll(true)
		err = sn.Restore(ctx, d.store, d.snapshots.Options().Concurrency)
		if err == nil && d.aof != nil {
			err = d.aof.Checkpoint()
		}
		unlock()
		keys = len(sn.Records)
	}
	d.metrics.RecordSnapshot("load", info.Size, time.Since(start), err)
	d.logger.LogSnapshot(ctx, "load", info.Name, keys, err)
	return info, err
}

// RewriteAOF replaces the AOF with the shortest command stream that
// rebuilds the current keyspace.
func (d *DB) RewriteAOF(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	if d.aof == nil {
		return ErrNoAOF
	}
	_, err := d.rewrite(ctx, true)
	return err
}

// rewrite replaces the log under persistMu and a background slot. Without
// wait it gives up, returning false, when no slot is free.
func (d *DB) rewrite(ctx context.Context, wait bool) (bool, error) {
	d.persistMu.Lock()
	defer d.persistMu.Unlock()

	if wait {
		if err := d.rc.AcquireBackground(ctx); err != nil {
			return false, err
		}
	} else if !d.rc.TryAcquireBackground() {
		return false, nil
	}
	defer d.rc.ReleaseBackground()

	start := time.Now()
	unlock := d.store.LockAll(false)
	keys := d.store.Len()
	err := d.aof.Rewrite(func(emit func(args ...string) error) error {
		return command.Rewrite(d.store, d.opts.rewriteChunk, emit)
	})
	unlock()

	d.metrics.RecordRewrite(time.Since(start), err)
	d.logger.LogRewrite(ctx, keys, time.Since(start), err)
	return true, err
}

// rewriteWorker rewrites the AOF in the background whenever a write
// pushes it past its thresholds.
func (d *DB) rewriteWorker() {
	defer d.bgWg.Done()
	for {
		select {
		case <-d.stopCh:
			return
		case <-d.rewriteCh:
		}
		if d.aof.RewriteDue() {
			_, _ = d.rewrite(context.Background(), false)
		}
	}
}
