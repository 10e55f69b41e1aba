package persistence

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/reroaring/internal/keyspace"
)

// DefaultBlockSize is the raw frame size Encode aims for.
const DefaultBlockSize = 1 << 20

// EncodeOptions configure Encode.
type EncodeOptions struct {
	Compression Compression
	// BlockSize is the raw frame size. Records larger than a block get a
	// frame of their own.
	BlockSize int
}

// Encode writes sn to w and returns the number of bytes written. Fields of
// sn.Header that describe the encoding are filled in; a zero CreatedAt is
// set to the current time.
func Encode(w io.Writer, sn *Snapshot, opts EncodeOptions) (int64, error) {
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}
	if opts.Compression > CompressionZSTD {
		return 0, fmt.Errorf("persistence: unknown compression %d", opts.Compression)
	}
	h := &sn.Header
	h.Version = Version
	h.Compression = opts.Compression
	h.KeyCount = uint64(len(sn.Records))
	h.BlockSize = uint32(opts.BlockSize) //nolint:gosec
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}

	bw := bufio.NewWriterSize(w, 64<<10)
	cw := NewChecksumWriter(bw)
	if _, err := cw.Write(h.marshal()); err != nil {
		return cw.Written(), err
	}

	block := make([]byte, 0, opts.BlockSize)
	var frame []byte
	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		var err error
		frame, err = appendFrame(frame[:0], block, opts.Compression)
		if err != nil {
			return err
		}
		block = block[:0]
		_, err = cw.Write(frame)
		return err
	}

	for i := range sn.Records {
		rec := &sn.Records[i]
		size := 1 + 2*binary.MaxVarintLen64 + len(rec.Key) + len(rec.Data)
		if len(block) > 0 && len(block)+size > opts.BlockSize {
			if err := flush(); err != nil {
				return cw.Written(), err
			}
		}
		block = append(block, byte(rec.Kind))
		block = binary.AppendUvarint(block, uint64(len(rec.Key)))
		block = append(block, rec.Key...)
		block = binary.AppendUvarint(block, uint64(len(rec.Data)))
		block = append(block, rec.Data...)
	}
	if err := flush(); err != nil {
		return cw.Written(), err
	}

	var end [frameHeader]byte
	if _, err := cw.Write(end[:]); err != nil {
		return cw.Written(), err
	}
	var trailer [trailerSize]byte
	binary.LittleEndian.PutUint32(trailer[:], cw.Sum())
	if _, err := bw.Write(trailer[:]); err != nil {
		return cw.Written(), err
	}
	if err := bw.Flush(); err != nil {
		return cw.Written(), err
	}
	return cw.Written() + trailerSize, nil
}

// Decode reads a snapshot written by Encode. Nothing is returned unless the
// trailer checksum matches.
func Decode(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	cr := NewChecksumReader(br)

	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}

	sn := &Snapshot{Header: h}
	if h.KeyCount <= 1<<20 {
		sn.Records = make([]Record, 0, h.KeyCount)
	}
	var fh [frameHeader]byte
	for {
		if _, err := io.ReadFull(cr, fh[:]); err != nil {
			return nil, truncated(err)
		}
		rawSize := binary.LittleEndian.Uint32(fh[0:4])
		storedSize := binary.LittleEndian.Uint32(fh[4:8])
		if rawSize == 0 {
			if storedSize != 0 {
				return nil, fmt.Errorf("%w: malformed end frame", ErrCorrupt)
			}
			break
		}

		n := rawSize
		if storedSize != 0 {
			n = storedSize
		}
		stored := make([]byte, n)
		if _, err := io.ReadFull(cr, stored); err != nil {
			return nil, truncated(err)
		}
		raw := stored
		if storedSize != 0 {
			if raw, err = decodeFrame(stored, rawSize, h.Compression); err != nil {
				return nil, err
			}
		}
		if sn.Records, err = parseRecords(sn.Records, raw); err != nil {
			return nil, err
		}
	}

	var trailer [trailerSize]byte
	if _, err := io.ReadFull(br, trailer[:]); err != nil {
		return nil, truncated(err)
	}
	if err := cr.Verify(binary.LittleEndian.Uint32(trailer[:])); err != nil {
		return nil, err
	}
	if uint64(len(sn.Records)) != h.KeyCount {
		return nil, fmt.Errorf("%w: header announces %d keys, found %d", ErrCorrupt, h.KeyCount, len(sn.Records))
	}
	return sn, nil
}

func parseRecords(dst []Record, raw []byte) ([]Record, error) {
	for len(raw) > 0 {
		kind := keyspace.Kind(raw[0])
		if kind != keyspace.Kind32 && kind != keyspace.Kind64 {
			return nil, fmt.Errorf("%w: unknown kind %d", ErrCorrupt, kind)
		}
		raw = raw[1:]

		key, rest, err := readBytes(raw)
		if err != nil {
			return nil, err
		}
		data, rest, err := readBytes(rest)
		if err != nil {
			return nil, err
		}
		raw = rest
		dst = append(dst, Record{Key: string(key), Kind: kind, Data: data})
	}
	return dst, nil
}

func readBytes(buf []byte) (val, rest []byte, err error) {
	n, k := binary.Uvarint(buf)
	if k <= 0 || n > uint64(len(buf)-k) {
		return nil, nil, fmt.Errorf("%w: record overruns frame", ErrCorrupt)
	}
	end := k + int(n) //nolint:gosec // bounded by len(buf)
	return buf[k:end:end], buf[end:], nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated", ErrCorrupt)
	}
	return err
}
