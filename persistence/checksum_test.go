package persistence

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumWriterReader(t *testing.T) {
	data := []byte("RRB1 frames and a trailer")

	var buf bytes.Buffer
	cw := NewChecksumWriter(&buf)
	_, err := cw.Write(data[:5])
	require.NoError(t, err)
	_, err = cw.Write(data[5:])
	require.NoError(t, err)
	assert.Equal(t, crc32.ChecksumIEEE(data), cw.Sum())
	assert.Equal(t, int64(len(data)), cw.Written())

	cr := NewChecksumReader(&buf)
	got, err := io.ReadAll(cr)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	require.NoError(t, cr.Verify(cw.Sum()))

	err = cr.Verify(cw.Sum() + 1)
	require.Error(t, err)
	assert.True(t, IsChecksumMismatch(err))
	assert.True(t, IsChecksumMismatch(fmt.Errorf("wrapped: %w", err)))
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.False(t, IsChecksumMismatch(errors.New("other")))
}
