package persistence

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reroaring/internal/keyspace"
)

func TestCaptureRestore(t *testing.T) {
	src := keyspace.New(8)
	for i := range 100 {
		src.Set("k32:"+string(rune('a'+i%26))+string(rune('0'+i/26)), roaring.BitmapOf(uint32(i), uint32(i*1000)))
	}
	src.Set("k64", roaring64.BitmapOf(1<<50, 1<<51))

	unlock := src.LockAll(false)
	assert.Positive(t, EstimateSize(src))
	sn, err := Capture(t.Context(), src, 0)
	unlock()
	require.NoError(t, err)
	assert.Len(t, sn.Records, 101)
	assert.Equal(t, uint64(101), sn.Header.KeyCount)
	assert.Positive(t, sn.Size())

	// Records come out in key order.
	for i := 1; i < len(sn.Records); i++ {
		assert.Less(t, sn.Records[i-1].Key, sn.Records[i].Key)
	}

	dst := keyspace.New(2)
	dst.Set("stale", roaring.BitmapOf(7))
	unlock = dst.LockAll(true)
	require.NoError(t, sn.Restore(t.Context(), dst, 4))
	unlock()

	assert.Equal(t, 101, dst.Len())
	_, ok := dst.Get("stale")
	assert.False(t, ok)

	v, ok := dst.Get("k64")
	require.True(t, ok)
	assert.True(t, v.(*roaring64.Bitmap).Equals(roaring64.BitmapOf(1<<50, 1<<51)))

	v, ok = dst.Get("k32:b0")
	require.True(t, ok)
	assert.Equal(t, []uint32{1, 1000}, v.(*roaring.Bitmap).ToArray())
}

func TestCaptureDoesNotShareMemory(t *testing.T) {
	s := keyspace.New(1)
	b := roaring.BitmapOf(1, 2, 3)
	s.Set("k", b)

	sn, err := Capture(t.Context(), s, 1)
	require.NoError(t, err)
	b.Add(4)

	dst := keyspace.New(1)
	require.NoError(t, sn.Restore(t.Context(), dst, 1))
	v, _ := dst.Get("k")
	assert.Equal(t, uint64(3), v.(*roaring.Bitmap).GetCardinality())
}

func TestRestoreIsAllOrNothing(t *testing.T) {
	sn := &Snapshot{Records: []Record{
		{Key: "good", Kind: keyspace.Kind32, Data: mustMarshal(t, roaring.BitmapOf(1))},
		{Key: "bad", Kind: keyspace.Kind32, Data: []byte{0xde, 0xad}},
	}}

	dst := keyspace.New(1)
	dst.Set("existing", roaring.BitmapOf(9))
	require.Error(t, sn.Restore(t.Context(), dst, 2))

	assert.Equal(t, 1, dst.Len())
	_, ok := dst.Get("existing")
	assert.True(t, ok)

	sn.Records[1].Kind = keyspace.KindNone
	assert.ErrorIs(t, sn.Restore(t.Context(), dst, 2), ErrCorrupt)
}

func mustMarshal(t *testing.T, b *roaring.Bitmap) []byte {
	t.Helper()
	data, err := b.ToBytes()
	require.NoError(t, err)
	return data
}
