// Package aof provides an append-only command log for durability and crash
// recovery.
//
// Every mutating command is appended as an argument vector before its reply
// is acknowledged. On restart the log is replayed on top of the newest
// snapshot. Features:
//   - CRC32C-protected entries with an optional zstd stream
//   - Configurable fsync behavior (Async, GroupCommit, Sync)
//   - Checkpoint to empty the log after a snapshot
//   - Rewrite to replace the log with a minimal command stream
//   - Torn tail recovery for uncompressed logs
package aof

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hupe1980/reroaring/internal/fs"
	"github.com/klauspost/compress/zstd"
)

// AOF is an append-only command log backed by a single file.
type AOF struct {
	mu               sync.Mutex
	fs               fs.FileSystem
	file             fs.File
	ew               *entryWriter
	decompressor     *zstd.Decoder
	path             string
	opts             Options
	compressed       bool
	compressionLevel int
	dataOffset       int64 // start of entry stream
	created          time.Time

	seqNum          uint64
	entries         int
	opsSinceRewrite int
	truncatedBytes  int64

	// Group commit support (background goroutine lifecycle)
	groupCommitTicker  *time.Ticker
	groupCommitStopCh  chan struct{}
	groupCommitPending int
	groupCommitWg      sync.WaitGroup
	syncCond           *sync.Cond
	persistedSeqNum    uint64
}

// Open opens or creates the log file and scans it to restore the sequence
// counter.
func Open(optFns ...func(o *Options)) (*AOF, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FS == nil {
		opts.FS = fs.Default
	}
	if opts.FileName == "" {
		opts.FileName = DefaultOptions.FileName
	}

	if err := opts.FS.MkdirAll(opts.Path, 0o750); err != nil {
		return nil, fmt.Errorf("aof: create directory: %w", err)
	}

	decompressor, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("aof: create decompressor: %w", err)
	}

	a := &AOF{
		fs:               opts.FS,
		path:             filepath.Join(opts.Path, opts.FileName),
		opts:             opts,
		compressionLevel: opts.CompressionLevel,
		decompressor:     decompressor,
	}
	a.syncCond = sync.NewCond(&a.mu)

	if err := a.openFile(); err != nil {
		decompressor.Close()
		return nil, err
	}

	if opts.DurabilityMode == DurabilityGroupCommit && opts.GroupCommitInterval > 0 {
		a.groupCommitStopCh = make(chan struct{})
		a.groupCommitTicker = time.NewTicker(opts.GroupCommitInterval)
		a.groupCommitWg.Add(1)
		go a.groupCommitWorker()
	}

	return a, nil
}

// openFile opens the log, writing a header for a new file, and positions
// the writer at the end of the valid entry stream.
func (a *AOF) openFile() error {
	file, err := a.fs.OpenFile(a.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("aof: open %s: %w", a.path, err)
	}
	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("aof: stat %s: %w", a.path, err)
	}
	a.file = file

	if st.Size() == 0 {
		a.compressed = a.opts.Compress
		a.created = time.Now()
		a.dataOffset, err = writeHeader(file, headerInfo{Compressed: a.compressed, CompressionLevel: a.compressionLevel, Created: a.created})
	} else {
		var info headerInfo
		info, a.dataOffset, err = readHeader(file)
		a.compressed = info.Compressed
		a.created = info.Created
		if info.Compressed {
			a.compressionLevel = info.CompressionLevel
		}
	}
	if err != nil {
		_ = file.Close()
		a.file = nil
		return err
	}

	if err := a.scan(st.Size()); err != nil {
		_ = file.Close()
		a.file = nil
		return err
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		_ = file.Close()
		a.file = nil
		return fmt.Errorf("aof: seek end: %w", err)
	}

	ew, err := newEntryWriter(file, a.compressed, a.compressionLevel)
	if err != nil {
		_ = file.Close()
		a.file = nil
		return err
	}
	a.ew = ew
	return nil
}

// scan walks the entry stream to restore the sequence counter. A torn tail
// on an uncompressed log is truncated when Options.TruncateTail is set.
func (a *AOF) scan(size int64) error {
	if _, err := a.file.Seek(a.dataOffset, io.SeekStart); err != nil {
		return fmt.Errorf("aof: seek entries: %w", err)
	}

	cr := &countingReader{r: bufio.NewReader(a.file)}
	var r io.Reader = cr
	if a.compressed {
		if err := a.decompressor.Reset(cr); err != nil {
			return fmt.Errorf("aof: reset decompressor: %w", err)
		}
		r = a.decompressor
	}

	a.seqNum, a.entries = 0, 0
	var (
		valid int64
		buf   []byte
	)
	for {
		var (
			e   Entry
			err error
		)
		e, buf, err = decodeEntry(r, a.opts.MaxEntrySize, buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if a.compressed || !a.opts.TruncateTail {
				return fmt.Errorf("%w: after seq %d: %v", ErrCorrupt, a.seqNum, err)
			}
			end := a.dataOffset + valid
			if err := a.fs.Truncate(a.path, end); err != nil {
				return fmt.Errorf("aof: truncate torn tail: %w", err)
			}
			a.truncatedBytes = size - end
			break
		}
		valid = cr.n
		if e.Seq > a.seqNum {
			a.seqNum = e.Seq
		}
		a.entries++
	}

	a.persistedSeqNum = a.seqNum
	a.opsSinceRewrite = a.entries
	return nil
}

// Append logs one command and returns its sequence number. Depending on the
// durability mode it returns before, or only after, the entry is fsynced.
func (a *AOF) Append(args ...string) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return 0, ErrClosed
	}

	e := Entry{Seq: a.seqNum + 1, Args: args}
	if err := a.ew.write(&e, a.opts.MaxEntrySize); err != nil {
		return 0, fmt.Errorf("aof: append: %w", err)
	}
	a.seqNum = e.Seq
	a.entries++
	a.opsSinceRewrite++

	if err := a.ew.flush(); err != nil {
		return 0, err
	}
	if err := a.syncIfNeeded(); err != nil {
		return 0, fmt.Errorf("aof: sync: %w", err)
	}
	return e.Seq, nil
}

// syncIfNeeded performs fsync based on the configured durability mode.
// Caller must hold a.mu.
func (a *AOF) syncIfNeeded() error {
	switch a.opts.DurabilityMode {
	case DurabilitySync:
		if err := a.file.Sync(); err != nil {
			return err
		}
		a.persistedSeqNum = a.seqNum
		return nil

	case DurabilityGroupCommit:
		a.groupCommitPending++
		target := a.seqNum

		if a.groupCommitPending >= a.opts.GroupCommitMaxOps || a.groupCommitTicker == nil {
			return a.doGroupCommit()
		}
		// Wait releases a.mu so the worker or another writer can sync.
		for a.persistedSeqNum < target && a.file != nil {
			a.syncCond.Wait()
		}
		return nil

	default:
		return nil
	}
}

// doGroupCommit fsyncs and wakes every writer waiting for durability.
// Caller must hold a.mu.
func (a *AOF) doGroupCommit() error {
	if a.groupCommitPending == 0 || a.file == nil {
		return nil
	}
	if err := a.file.Sync(); err != nil {
		return err
	}
	a.groupCommitPending = 0
	a.persistedSeqNum = a.seqNum
	a.syncCond.Broadcast()
	return nil
}

func (a *AOF) groupCommitWorker() {
	defer a.groupCommitWg.Done()

	for {
		select {
		case <-a.groupCommitStopCh:
			a.mu.Lock()
			_ = a.doGroupCommit()
			a.mu.Unlock()
			return

		case <-a.groupCommitTicker.C:
			a.mu.Lock()
			_ = a.doGroupCommit()
			a.mu.Unlock()
		}
	}
}

// Sync flushes buffered entries and fsyncs the file.
func (a *AOF) Sync() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return ErrClosed
	}
	if err := a.ew.flush(); err != nil {
		return err
	}
	if err := a.file.Sync(); err != nil {
		return fmt.Errorf("aof: sync: %w", err)
	}
	a.groupCommitPending = 0
	a.persistedSeqNum = a.seqNum
	a.syncCond.Broadcast()
	return nil
}

// Checkpoint empties the log. Call it once a snapshot covering every logged
// entry is durable.
func (a *AOF) Checkpoint() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return ErrClosed
	}
	return a.truncateLocked()
}

// Rewrite replaces the log with the command stream produced by fn. fn calls
// emit once per command. Appends block until the rewrite completes. On error
// the existing log is left untouched.
func (a *AOF) Rewrite(fn func(emit func(args ...string) error) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return ErrClosed
	}

	tmpPath := a.path + ".rewrite"
	tmp, err := a.fs.OpenFile(tmpPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("aof: create rewrite file: %w", err)
	}

	if err := a.writeGeneration(tmp, fn); err != nil {
		_ = tmp.Close()
		_ = a.fs.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = a.fs.Remove(tmpPath)
		return fmt.Errorf("aof: close rewrite file: %w", err)
	}

	if err := a.ew.close(); err != nil {
		return err
	}
	if err := a.file.Close(); err != nil {
		return fmt.Errorf("aof: close log: %w", err)
	}
	a.file = nil
	if err := a.fs.Rename(tmpPath, a.path); err != nil {
		return fmt.Errorf("aof: install rewrite: %w", err)
	}
	if err := a.openFile(); err != nil {
		return err
	}
	a.opsSinceRewrite = 0
	a.groupCommitPending = 0
	a.syncCond.Broadcast()
	if err := fs.SyncDir(a.fs, filepath.Dir(a.path)); err != nil {
		return fmt.Errorf("aof: sync log directory: %w", err)
	}
	return nil
}

// writeGeneration writes a header and the entries emitted by fn to f and
// fsyncs it.
func (a *AOF) writeGeneration(f fs.File, fn func(emit func(args ...string) error) error) error {
	if _, err := writeHeader(f, headerInfo{Compressed: a.compressed, CompressionLevel: a.compressionLevel, Created: time.Now()}); err != nil {
		return err
	}
	ew, err := newEntryWriter(f, a.compressed, a.compressionLevel)
	if err != nil {
		return err
	}

	var seq uint64
	emit := func(args ...string) error {
		seq++
		return ew.write(&Entry{Seq: seq, Args: args}, a.opts.MaxEntrySize)
	}
	if err := fn(emit); err != nil {
		_ = ew.close()
		return fmt.Errorf("aof: rewrite: %w", err)
	}
	if err := ew.close(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("aof: sync rewrite file: %w", err)
	}
	return nil
}

// truncateLocked truncates the log to an empty generation.
// Caller must hold a.mu.
func (a *AOF) truncateLocked() error {
	if err := a.ew.close(); err != nil {
		return err
	}
	if err := a.file.Close(); err != nil {
		return fmt.Errorf("aof: close log: %w", err)
	}
	a.file = nil

	file, err := a.fs.OpenFile(a.path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("aof: truncate log: %w", err)
	}
	if _, err := writeHeader(file, headerInfo{Compressed: a.compressed, CompressionLevel: a.compressionLevel, Created: time.Now()}); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("aof: sync log: %w", err)
	}
	_ = file.Close()

	if err := a.openFile(); err != nil {
		return err
	}
	a.groupCommitPending = 0
	a.syncCond.Broadcast()
	return nil
}

// RewriteDue reports whether the auto-rewrite thresholds are exceeded.
func (a *AOF) RewriteDue() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return false
	}
	if a.opts.AutoRewriteOps > 0 && a.opsSinceRewrite >= a.opts.AutoRewriteOps {
		return true
	}
	if a.opts.AutoRewriteMB > 0 {
		if st, err := a.file.Stat(); err == nil && st.Size() >= int64(a.opts.AutoRewriteMB)<<20 {
			return true
		}
	}
	return false
}

// Len returns the number of entries in the current generation.
func (a *AOF) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries
}

// Seq returns the sequence number of the last appended entry.
func (a *AOF) Seq() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seqNum
}

// TruncatedBytes returns how many bytes of torn tail were cut off on open.
func (a *AOF) TruncatedBytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.truncatedBytes
}

// Created returns when the current generation started: at file creation,
// the last Checkpoint or the last Rewrite.
func (a *AOF) Created() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.created
}

// Path returns the path to the log file.
func (a *AOF) Path() string { return a.path }

// Size returns the current file size in bytes.
func (a *AOF) Size() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return 0, ErrClosed
	}
	st, err := a.file.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

// Close stops the group commit worker, flushes, fsyncs and closes the file.
// After Close returns the log is no longer usable.
func (a *AOF) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return nil
	}

	if a.groupCommitTicker != nil {
		close(a.groupCommitStopCh)
		a.mu.Unlock()
		a.groupCommitWg.Wait()
		a.mu.Lock()
		a.groupCommitTicker.Stop()
		a.groupCommitTicker = nil
	}

	var errs []error
	if err := a.ew.close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("aof: sync: %w", err))
	}
	if err := a.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("aof: close: %w", err))
	}
	a.file = nil
	a.decompressor.Close()
	a.syncCond.Broadcast()
	return errors.Join(errs...)
}
