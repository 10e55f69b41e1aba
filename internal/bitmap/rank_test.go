package bitmap

import (
	"math"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fibonacci(limit uint32) []uint32 {
	out := []uint32{0, 1}
	for {
		next := out[len(out)-1] + out[len(out)-2]
		if next > limit {
			return out
		}
		out = append(out, next)
	}
}

func TestNthPresent(t *testing.T) {
	e := R32()
	fib := fibonacci(317811)
	b := e.FromArray(fib)
	distinct := e.ToArray(b)

	for i, want := range distinct {
		got, ok := e.NthPresent(b, uint64(i+1))
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := e.NthPresent(b, 0)
	assert.False(t, ok)
	_, ok = e.NthPresent(b, uint64(len(distinct)+1))
	assert.False(t, ok)
	_, ok = e.NthPresent(roaring.New(), 1)
	assert.False(t, ok)
}

func TestNthAbsentMatchesSlow(t *testing.T) {
	e := R32()
	b := e.FromArray(fibonacci(317811))

	for k := uint64(1); k <= 1000; k++ {
		fast, ok := e.NthAbsent(b, k)
		require.True(t, ok)
		slow, ok := e.NthAbsentSlow(b, k)
		require.True(t, ok)
		require.Equal(t, slow, fast, "k=%d", k)
	}
}

func TestNthAbsent(t *testing.T) {
	e := R32()

	t.Run("first absent values", func(t *testing.T) {
		b := roaring.BitmapOf(0, 1, 3, 4, 8)
		want := []uint32{2, 5, 6, 7, 9, 10}
		for i, w := range want {
			got, ok := e.NthAbsent(b, uint64(i+1))
			require.True(t, ok)
			assert.Equal(t, w, got)
		}
	})

	t.Run("beyond the maximum", func(t *testing.T) {
		b := e.FromArray(fibonacci(317811))
		top := b.Maximum()
		below := uint64(top) + 1 - b.GetCardinality()

		got, ok := e.NthAbsent(b, below+1)
		require.True(t, ok)
		assert.Equal(t, top+1, got)

		_, ok = e.NthAbsentSlow(b, below+1)
		assert.False(t, ok)
	})

	t.Run("empty bitmap", func(t *testing.T) {
		got, ok := e.NthAbsent(roaring.New(), 1)
		require.True(t, ok)
		assert.Equal(t, uint32(0), got)

		got, ok = e.NthAbsent(roaring.New(), 42)
		require.True(t, ok)
		assert.Equal(t, uint32(41), got)
	})

	t.Run("zero", func(t *testing.T) {
		_, ok := e.NthAbsent(roaring.BitmapOf(1), 0)
		assert.False(t, ok)
	})

	t.Run("domain exhausted", func(t *testing.T) {
		b := roaring.BitmapOf(math.MaxUint32)
		got, ok := e.NthAbsent(b, math.MaxUint32)
		require.True(t, ok)
		assert.Equal(t, uint32(math.MaxUint32-1), got)

		_, ok = e.NthAbsent(b, math.MaxUint32+1)
		assert.False(t, ok)

		_, ok = e.NthAbsent(roaring.New(), math.MaxUint32+2)
		assert.False(t, ok)
	})

	t.Run("64-bit", func(t *testing.T) {
		e64 := R64()
		b := e64.FromArray([]uint64{1 << 40, 1<<40 + 2})

		got, ok := e64.NthAbsent(b, 1<<40+1)
		require.True(t, ok)
		assert.Equal(t, uint64(1<<40+1), got)

		got, ok = e64.NthAbsent(b, 1<<40+2)
		require.True(t, ok)
		assert.Equal(t, uint64(1<<40+3), got)
	})
}

func TestRankInverse(t *testing.T) {
	e := R64()
	b := e.FromArray([]uint64{3, 17, 1 << 33, math.MaxUint64})

	for i, x := range e.ToArray(b) {
		got, ok := e.NthPresent(b, uint64(i+1))
		require.True(t, ok)
		assert.Equal(t, x, got)
	}
}
