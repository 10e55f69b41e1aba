package aof

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/reroaring/internal/hash"
	"github.com/klauspost/compress/zstd"
)

// Entry layout: [len:4][crc32c:4][payload:len]
// Payload layout: [seq:8][argc:4] then argc times [arglen:4][arg]
const entryHeaderLen = 8

func appendEntry(dst []byte, e *Entry) []byte {
	size := 12
	for _, a := range e.Args {
		size += 4 + len(a)
	}

	start := len(dst)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(size)) //nolint:gosec // bounded by MaxEntrySize
	dst = binary.LittleEndian.AppendUint32(dst, 0)
	dst = binary.LittleEndian.AppendUint64(dst, e.Seq)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(e.Args))) //nolint:gosec
	for _, a := range e.Args {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(a))) //nolint:gosec
		dst = append(dst, a...)
	}

	crc := hash.CRC32C(dst[start+entryHeaderLen:])
	binary.LittleEndian.PutUint32(dst[start+4:start+8], crc)
	return dst
}

// decodeEntry reads one entry. A clean end of stream returns io.EOF; a
// stream that ends inside an entry returns io.ErrUnexpectedEOF.
func decodeEntry(r io.Reader, maxSize int, buf []byte) (Entry, []byte, error) {
	var hdr [entryHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Entry{}, buf, err
	}

	size := binary.LittleEndian.Uint32(hdr[0:4])
	if size < 12 || (maxSize > 0 && int64(size) > int64(maxSize)) {
		return Entry{}, buf, fmt.Errorf("%w: length %d", ErrEntryTooLarge, size)
	}
	if cap(buf) < int(size) {
		buf = make([]byte, size)
	}
	buf = buf[:size]
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Entry{}, buf, err
	}
	if want, got := binary.LittleEndian.Uint32(hdr[4:8]), hash.CRC32C(buf); want != got {
		return Entry{}, buf, fmt.Errorf("%w: want %08x, got %08x", ErrChecksum, want, got)
	}

	e := Entry{Seq: binary.LittleEndian.Uint64(buf[0:8])}
	argc := binary.LittleEndian.Uint32(buf[8:12])
	p := buf[12:]
	if uint64(argc)*4 > uint64(len(p)) {
		return Entry{}, buf, fmt.Errorf("%w: argc %d", ErrCorrupt, argc)
	}
	e.Args = make([]string, argc)
	for i := range e.Args {
		if len(p) < 4 {
			return Entry{}, buf, fmt.Errorf("%w: truncated argument %d", ErrCorrupt, i)
		}
		n := binary.LittleEndian.Uint32(p)
		p = p[4:]
		if uint64(n) > uint64(len(p)) {
			return Entry{}, buf, fmt.Errorf("%w: argument %d overruns entry", ErrCorrupt, i)
		}
		e.Args[i] = string(p[:n])
		p = p[n:]
	}
	if len(p) != 0 {
		return Entry{}, buf, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(p))
	}
	return e, buf, nil
}

// entryWriter buffers encoded entries, optionally through a zstd stream.
type entryWriter struct {
	buf     *bufio.Writer
	zw      *zstd.Encoder
	scratch []byte
}

func newEntryWriter(w io.Writer, compressed bool, level int) (*entryWriter, error) {
	ew := &entryWriter{}
	if !compressed {
		ew.buf = bufio.NewWriter(w)
		return ew, nil
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("aof: create compressor: %w", err)
	}
	ew.zw = zw
	ew.buf = bufio.NewWriter(zw)
	return ew, nil
}

// write encodes e in full before handing it to the buffer so a failed
// encode never leaves a partial entry behind.
func (ew *entryWriter) write(e *Entry, maxSize int) error {
	ew.scratch = appendEntry(ew.scratch[:0], e)
	if maxSize > 0 && len(ew.scratch)-entryHeaderLen > maxSize {
		return fmt.Errorf("%w: %d bytes", ErrEntryTooLarge, len(ew.scratch)-entryHeaderLen)
	}
	_, err := ew.buf.Write(ew.scratch)
	return err
}

func (ew *entryWriter) flush() error {
	if err := ew.buf.Flush(); err != nil {
		return fmt.Errorf("aof: flush buffer: %w", err)
	}
	if ew.zw != nil {
		if err := ew.zw.Flush(); err != nil {
			return fmt.Errorf("aof: flush compressor: %w", err)
		}
	}
	return nil
}

func (ew *entryWriter) close() error {
	if err := ew.flush(); err != nil {
		return err
	}
	if ew.zw != nil {
		if err := ew.zw.Close(); err != nil {
			return fmt.Errorf("aof: close compressor: %w", err)
		}
	}
	return nil
}

// countingReader counts the bytes handed to its consumer.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
