package persistence

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	return dec
}

// appendFrame appends raw to dst as one frame, compressed with c when that
// saves at least a tenth of its size.
func appendFrame(dst, raw []byte, c Compression) ([]byte, error) {
	var packed []byte
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("persistence: lz4: %w", err)
		}
		packed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		packed = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	}

	var hdr [frameHeader]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(raw))) //nolint:gosec // Capture caps records at MaxUint32
	if len(packed) == 0 || len(packed)*10 > len(raw)*9 {
		dst = append(dst, hdr[:]...)
		return append(dst, raw...), nil
	}
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(packed))) //nolint:gosec
	dst = append(dst, hdr[:]...)
	return append(dst, packed...), nil
}

// decodeFrame decompresses the stored bytes of a compressed frame.
func decodeFrame(packed []byte, rawSize uint32, c Compression) ([]byte, error) {
	raw := make([]byte, rawSize)
	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(packed, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
		}
		if uint32(n) != rawSize { //nolint:gosec
			return nil, fmt.Errorf("%w: frame size mismatch", ErrCorrupt)
		}
		return raw, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(packed, raw[:0])
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
		if uint32(len(out)) != rawSize { //nolint:gosec
			return nil, fmt.Errorf("%w: frame size mismatch", ErrCorrupt)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: compressed frame in uncompressed snapshot", ErrCorrupt)
	}
}
