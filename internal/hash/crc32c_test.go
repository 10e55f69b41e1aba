package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32C(t *testing.T) {
	data := []byte("123456789")
	assert.Equal(t, uint32(0xE3069283), CRC32C(data))

	h := NewCRC32C()
	_, _ = h.Write(data[:4])
	_, _ = h.Write(data[4:])
	assert.Equal(t, CRC32C(data), h.Sum32())
	assert.Zero(t, CRC32C(nil))
}
