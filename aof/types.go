package aof

import (
	"errors"
	"time"

	"github.com/hupe1980/reroaring/internal/fs"
)

// DurabilityMode defines the fsync behavior for appends.
type DurabilityMode int

const (
	// DurabilityAsync never fsyncs on append. Entries reach disk when the
	// operating system flushes its page cache.
	DurabilityAsync DurabilityMode = iota

	// DurabilityGroupCommit batches fsyncs at a fixed interval or after a
	// number of appends, whichever comes first. Append blocks until its entry
	// is covered by an fsync.
	DurabilityGroupCommit

	// DurabilitySync fsyncs after every append.
	DurabilitySync
)

func (m DurabilityMode) String() string {
	switch m {
	case DurabilityAsync:
		return "async"
	case DurabilityGroupCommit:
		return "group-commit"
	case DurabilitySync:
		return "sync"
	default:
		return "unknown"
	}
}

var (
	// ErrClosed is returned by operations on a closed log.
	ErrClosed = errors.New("aof: closed")
	// ErrCorrupt is returned when the entry stream cannot be decoded.
	ErrCorrupt = errors.New("aof: corrupt entry stream")
	// ErrChecksum is returned when an entry fails its CRC check.
	ErrChecksum = errors.New("aof: checksum mismatch")
	// ErrEntryTooLarge is returned for entries above Options.MaxEntrySize.
	ErrEntryTooLarge = errors.New("aof: entry too large")
	// ErrInvalidHeader is returned when the file does not start with a
	// valid header.
	ErrInvalidHeader = errors.New("aof: invalid header")
)

// Entry is one logged command.
type Entry struct {
	// Seq orders entries within the current log generation. It restarts at 1
	// after a checkpoint or rewrite.
	Seq  uint64
	Args []string
}

// Options contains configuration for the log.
type Options struct {
	// Path is the directory holding the log file.
	Path string

	// FileName is the log file name inside Path.
	FileName string

	// FS is the file system used for all file access. Defaults to fs.Default.
	FS fs.FileSystem

	// Compress enables a zstd stream over the entry stream. Only applies to
	// new files; an existing file keeps the mode recorded in its header.
	Compress bool

	// CompressionLevel sets the zstd compression level (1-22).
	CompressionLevel int

	// DurabilityMode controls fsync behavior (Async, GroupCommit, Sync).
	DurabilityMode DurabilityMode

	// GroupCommitInterval is the maximum time between fsyncs in GroupCommit
	// mode.
	GroupCommitInterval time.Duration

	// GroupCommitMaxOps forces an fsync after this many pending appends in
	// GroupCommit mode.
	GroupCommitMaxOps int

	// AutoRewriteOps marks the log as due for a rewrite after N appends.
	// Zero disables the operation threshold.
	AutoRewriteOps int

	// AutoRewriteMB marks the log as due for a rewrite once the file reaches
	// N megabytes. Zero disables the size threshold.
	AutoRewriteMB int

	// MaxEntrySize bounds the encoded size of a single entry. Larger lengths
	// read back from disk are treated as corruption.
	MaxEntrySize int

	// TruncateTail cuts a torn or corrupt tail off an uncompressed log on
	// open instead of failing. Compressed logs always fail.
	TruncateTail bool
}

// DefaultOptions returns default log options.
var DefaultOptions = Options{
	Path:                ".",
	FileName:            "reroaring.aof",
	Compress:            false,
	CompressionLevel:    3,
	DurabilityMode:      DurabilityGroupCommit,
	GroupCommitInterval: 10 * time.Millisecond,
	GroupCommitMaxOps:   100,
	AutoRewriteOps:      100000,
	AutoRewriteMB:       64,
	MaxEntrySize:        512 << 20,
	TruncateTail:        true,
}
