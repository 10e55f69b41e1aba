package aof

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Replay calls fn for every entry of the current generation in order.
// Appends block while Replay runs.
func (a *AOF) Replay(fn func(e Entry) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return ErrClosed
	}
	if err := a.ew.flush(); err != nil {
		return err
	}

	if _, err := a.file.Seek(a.dataOffset, io.SeekStart); err != nil {
		return fmt.Errorf("aof: seek entries: %w", err)
	}
	// Restore the append position whatever happens below.
	defer func() { _, _ = a.file.Seek(0, io.SeekEnd) }()

	var r io.Reader = bufio.NewReader(a.file)
	if a.compressed {
		if err := a.decompressor.Reset(r); err != nil {
			return fmt.Errorf("aof: reset decompressor: %w", err)
		}
		r = a.decompressor
	}

	var (
		buf  []byte
		last uint64
	)
	for {
		var (
			e   Entry
			err error
		)
		e, buf, err = decodeEntry(r, a.opts.MaxEntrySize, buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: after seq %d: %v", ErrCorrupt, last, err)
		}
		if err := fn(e); err != nil {
			return fmt.Errorf("aof: replay entry %d: %w", e.Seq, err)
		}
		last = e.Seq
	}
}
