package bitmap

import (
	"bytes"
	"fmt"
	"io"
)

// WriteTo writes b in the portable roaring format.
func (e *Engine[T, B]) WriteTo(b B, w io.Writer) (int64, error) {
	return e.be.WriteTo(b, w)
}

// ReadFrom reads a bitmap in the portable roaring format.
func (e *Engine[T, B]) ReadFrom(r io.Reader) (B, error) {
	b := e.be.New()
	if _, err := e.be.ReadFrom(b, r); err != nil {
		var zero B
		return zero, fmt.Errorf("%s: decode: %w", e.be.Name(), err)
	}
	return b, nil
}

// Marshal returns the portable serialization of b.
func (e *Engine[T, B]) Marshal(b B) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(e.be.SerializedSizeInBytes(b)))
	if _, err := e.be.WriteTo(b, &buf); err != nil {
		return nil, fmt.Errorf("%s: encode: %w", e.be.Name(), err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a bitmap produced by Marshal.
func (e *Engine[T, B]) Unmarshal(data []byte) (B, error) {
	return e.ReadFrom(bytes.NewReader(data))
}
