package bitmap

import (
	"bytes"
	"errors"
	"math"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// RangeByRank returns the elements of b whose 0-based rank lies in
// [start, end]. The result holds only elements that exist, so its length
// may be smaller than end-start+1. An inverted or overflowing range yields
// nil.
func (e *Engine[T, B]) RangeByRank(b B, start, end uint64) []T {
	if start > end {
		return nil
	}
	count := end - start + 1
	if count == 0 {
		return nil
	}

	card := e.be.Cardinality(b)
	if start >= card {
		return []T{}
	}
	if rem := card - start; count > rem {
		count = rem
	}

	first, ok := e.be.Select(b, start)
	if !ok {
		return []T{}
	}

	out := make([]T, 0, count)
	it := e.be.Iterator(b)
	it.AdvanceIfNeeded(first)
	for uint64(len(out)) < count && it.HasNext() {
		out = append(out, it.Next())
	}
	return out
}

// ToArray returns the elements of b in ascending order.
func (e *Engine[T, B]) ToArray(b B) []T {
	return e.be.ToArray(b)
}

// FromArray returns a bitmap holding xs. Duplicates collapse.
func (e *Engine[T, B]) FromArray(xs []T) B {
	b := e.be.New()
	e.be.AddMany(b, xs)
	return b
}

// FromRange returns a bitmap holding [lo, hi).
func (e *Engine[T, B]) FromRange(lo, hi uint64) B {
	b := e.be.New()
	if lo < hi {
		e.be.AddRange(b, lo, hi)
	}
	return b
}

// Full returns a bitmap holding every element of the domain.
func (e *Engine[T, B]) Full() B {
	top := e.be.MaxValue()
	b := e.be.New()
	e.be.AddRange(b, 0, uint64(top))
	e.be.Add(b, top)
	return b
}

// BitArrayLen returns the length of the dense representation of b,
// saturating at math.MaxUint64.
func (e *Engine[T, B]) BitArrayLen(b B) uint64 {
	if e.be.IsEmpty(b) {
		return 0
	}
	top := uint64(e.be.Max(b))
	if top == math.MaxUint64 {
		return top
	}
	return top + 1
}

// MaxBitArrayLen bounds the length of the string BitArray builds.
const MaxBitArrayLen = 512 << 20

// ErrBitArrayTooLarge is returned by BitArray when max(b)+1 exceeds
// MaxBitArrayLen.
var ErrBitArrayTooLarge = errors.New("bitmap: bit array too large")

// BitArray renders b as a string of '0' and '1' of length max(b)+1, where
// position i is '1' when i is in b. An empty bitmap renders as "".
func (e *Engine[T, B]) BitArray(b B) (string, error) {
	size := e.BitArrayLen(b)
	if size == 0 {
		return "", nil
	}
	if size > MaxBitArrayLen {
		return "", ErrBitArrayTooLarge
	}
	buf := bytes.Repeat([]byte{'0'}, int(size))
	it := e.be.Iterator(b)
	for it.HasNext() {
		buf[uint64(it.Next())] = '1'
	}
	return string(buf), nil
}

// FromBitArray parses a string of '0' and '1'. Position i is set when the
// i-th byte is '1'; every other byte counts as unset.
func (e *Engine[T, B]) FromBitArray(s string) B {
	b := e.be.New()
	if strings.IndexByte(s, '1') < 0 {
		return b
	}

	dense := bitset.New(uint(len(s)))
	for i := 0; i < len(s); i++ {
		if s[i] == '1' {
			dense.Set(uint(i))
		}
	}

	buffer := make([]uint, 256)
	batch := make([]T, 0, len(buffer))
	j, buffer := dense.NextSetMany(0, buffer)
	for ; len(buffer) > 0; j, buffer = dense.NextSetMany(j, buffer) {
		batch = batch[:0]
		for _, v := range buffer {
			batch = append(batch, T(v))
		}
		e.be.AddMany(b, batch)
		j++
	}
	return b
}
