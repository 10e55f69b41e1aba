package bitmap

import "strings"

// ContainsMode selects how Contains compares two bitmaps.
type ContainsMode int

const (
	// ContainsAny holds when the bitmaps share at least one element.
	ContainsAny ContainsMode = iota
	// ContainsAll holds when the second bitmap is a subset of the first.
	ContainsAll
	// ContainsAllStrict holds when the second bitmap is a strict subset.
	ContainsAllStrict
	// ContainsEqual holds when both bitmaps hold the same elements.
	ContainsEqual
)

// ParseContainsMode maps ALL, ALL_STRICT and EQ to a mode. Matching is
// case-insensitive.
func ParseContainsMode(s string) (ContainsMode, bool) {
	switch strings.ToUpper(s) {
	case "ALL":
		return ContainsAll, true
	case "ALL_STRICT":
		return ContainsAllStrict, true
	case "EQ":
		return ContainsEqual, true
	default:
		return ContainsAny, false
	}
}

func (m ContainsMode) String() string {
	switch m {
	case ContainsAll:
		return "ALL"
	case ContainsAllStrict:
		return "ALL_STRICT"
	case ContainsEqual:
		return "EQ"
	default:
		return "NONE"
	}
}

// Contains compares b2 against b1 according to mode.
func (e *Engine[T, B]) Contains(b1, b2 B, mode ContainsMode) bool {
	switch mode {
	case ContainsAny:
		return e.be.Intersects(b1, b2)
	case ContainsAll:
		return e.be.AndCardinality(b1, b2) == e.be.Cardinality(b2)
	case ContainsAllStrict:
		c2 := e.be.Cardinality(b2)
		return c2 < e.be.Cardinality(b1) && e.be.AndCardinality(b1, b2) == c2
	case ContainsEqual:
		return e.be.Equals(b1, b2)
	default:
		return false
	}
}

// Jaccard returns |b1 ∩ b2| / |b1 ∪ b2|, or -1 when both are empty.
func (e *Engine[T, B]) Jaccard(b1, b2 B) float64 {
	if b1 == b2 {
		if e.be.IsEmpty(b1) {
			return -1
		}
		return 1
	}
	c1, c2 := e.be.Cardinality(b1), e.be.Cardinality(b2)
	if c1 == 0 && c2 == 0 {
		return -1
	}
	inter := e.be.AndCardinality(b1, b2)
	return float64(inter) / float64(c1+c2-inter)
}

// GetBits reports membership for each offset.
func (e *Engine[T, B]) GetBits(b B, offsets []T) []bool {
	out := make([]bool, len(offsets))
	for i, x := range offsets {
		out[i] = e.be.Contains(b, x)
	}
	return out
}

// ClearBits removes every offset from b.
func (e *Engine[T, B]) ClearBits(b B, offsets []T) {
	e.be.RemoveMany(b, offsets)
}

// ClearBitsCount removes every offset from b and returns how many were
// present.
func (e *Engine[T, B]) ClearBitsCount(b B, offsets []T) uint64 {
	var n uint64
	for _, x := range offsets {
		if e.be.Remove(b, x) {
			n++
		}
	}
	return n
}

// Optimize converts containers to run encoding where that is smaller and
// reports whether the in-memory size changed.
func (e *Engine[T, B]) Optimize(b B) bool {
	before := e.be.SizeInBytes(b)
	e.be.RunOptimize(b)
	return e.be.SizeInBytes(b) != before
}

// Stats returns layout statistics for b.
func (e *Engine[T, B]) Stats(b B) Stats {
	return e.be.Stats(b)
}
