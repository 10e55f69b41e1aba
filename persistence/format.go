package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// Magic opens every snapshot.
	Magic = "RRB1"
	// Version is the snapshot format version written by Encode.
	Version uint16 = 1

	headerSize  = 48
	frameHeader = 8
	trailerSize = 4
)

var (
	// ErrInvalidMagic is returned for data that is not a snapshot.
	ErrInvalidMagic = errors.New("persistence: invalid magic number")
	// ErrInvalidVersion is returned for snapshots of an unknown version.
	ErrInvalidVersion = errors.New("persistence: unsupported version")
	// ErrCorrupt is returned for snapshots whose content is inconsistent.
	ErrCorrupt = errors.New("persistence: corrupt snapshot")
)

// Compression selects the frame compression of a snapshot.
type Compression uint8

const (
	// CompressionNone stores frames raw.
	CompressionNone Compression = iota
	// CompressionLZ4 favors encode and decode speed.
	CompressionLZ4
	// CompressionZSTD favors size.
	CompressionZSTD
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses the names returned by Compression.String.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	}
	return 0, fmt.Errorf("persistence: unknown compression %q", s)
}

// Header describes a snapshot.
type Header struct {
	Version     uint16
	Compression Compression
	// RunID identifies the database instance that wrote the snapshot.
	RunID     uuid.UUID
	CreatedAt time.Time
	KeyCount  uint64
	BlockSize uint32
}

func (h *Header) marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	buf[6] = byte(h.Compression)
	copy(buf[8:24], h.RunID[:])
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.CreatedAt.UnixNano())) //nolint:gosec // round-trips through int64
	binary.LittleEndian.PutUint64(buf[32:40], h.KeyCount)
	binary.LittleEndian.PutUint32(buf[40:44], h.BlockSize)
	return buf
}

func readHeader(r io.Reader) (Header, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, fmt.Errorf("%w: short header", ErrInvalidMagic)
		}
		return Header{}, err
	}
	if string(buf[0:4]) != Magic {
		return Header{}, ErrInvalidMagic
	}
	h := Header{
		Version:     binary.LittleEndian.Uint16(buf[4:6]),
		Compression: Compression(buf[6]),
		CreatedAt:   time.Unix(0, int64(binary.LittleEndian.Uint64(buf[24:32]))), //nolint:gosec
		KeyCount:    binary.LittleEndian.Uint64(buf[32:40]),
		BlockSize:   binary.LittleEndian.Uint32(buf[40:44]),
	}
	copy(h.RunID[:], buf[8:24])
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrInvalidVersion, h.Version)
	}
	if h.Compression > CompressionZSTD {
		return Header{}, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, h.Compression)
	}
	return h, nil
}
