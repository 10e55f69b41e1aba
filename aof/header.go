package aof

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	aofMagic         = [4]byte{'R', 'R', 'A', '1'}
	aofHeaderVersion = uint16(1)
	aofHeaderLen     = 24
)

const flagCompressed = 1 << 0

type headerInfo struct {
	Compressed       bool
	CompressionLevel int
	// Created is when the generation started.
	Created time.Time
}

// Layout: [magic:4][version:2][flags:2][level:1][reserved:7][created:8]
func writeHeader(w io.Writer, info headerInfo) (int64, error) {
	var buf [24]byte
	copy(buf[0:4], aofMagic[:])
	binary.LittleEndian.PutUint16(buf[4:6], aofHeaderVersion)

	var flags uint16
	if info.Compressed {
		flags |= flagCompressed
		buf[8] = uint8(info.CompressionLevel) //nolint:gosec // level is 1-22
	}
	binary.LittleEndian.PutUint16(buf[6:8], flags)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(info.Created.UnixNano())) //nolint:gosec

	if _, err := w.Write(buf[:]); err != nil {
		return 0, fmt.Errorf("aof: write header: %w", err)
	}
	return int64(aofHeaderLen), nil
}

func readHeader(r io.ReadSeeker) (headerInfo, int64, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return headerInfo{}, 0, fmt.Errorf("aof: seek header: %w", err)
	}

	var buf [24]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return headerInfo{}, 0, fmt.Errorf("%w: short header", ErrInvalidHeader)
		}
		return headerInfo{}, 0, fmt.Errorf("aof: read header: %w", err)
	}
	if [4]byte(buf[0:4]) != aofMagic {
		return headerInfo{}, 0, fmt.Errorf("%w: bad magic %q", ErrInvalidHeader, buf[0:4])
	}
	if v := binary.LittleEndian.Uint16(buf[4:6]); v != aofHeaderVersion {
		return headerInfo{}, 0, fmt.Errorf("%w: unsupported version %d", ErrInvalidHeader, v)
	}

	flags := binary.LittleEndian.Uint16(buf[6:8])
	return headerInfo{
		Compressed:       flags&flagCompressed != 0,
		CompressionLevel: int(buf[8]),
		Created:          time.Unix(0, int64(binary.LittleEndian.Uint64(buf[16:24]))), //nolint:gosec
	}, int64(aofHeaderLen), nil
}
