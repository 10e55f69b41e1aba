package bitmap

import "io"

// Elem is the element domain of a bitmap.
type Elem interface {
	~uint32 | ~uint64
}

// Iterator walks the elements of a bitmap in ascending order.
//
// Both roaring.IntPeekable and roaring64.IntPeekable64 satisfy it.
type Iterator[T Elem] interface {
	HasNext() bool
	Next() T
	AdvanceIfNeeded(minval T)
}

// Backend is the capability set the engine needs from a compressed bitmap
// implementation. B is a pointer type; two operands alias when they compare
// equal.
//
// Binary operations mutate their first argument in place and never touch
// the second.
type Backend[T Elem, B comparable] interface {
	// Name identifies the backend ("roaring32", "roaring64").
	Name() string
	// MaxValue is the largest element of the domain.
	MaxValue() T

	New() B
	Clone(b B) B
	Clear(b B)

	Cardinality(b B) uint64
	Contains(b B, x T) bool
	IsEmpty(b B) bool
	// Min and Max are undefined on an empty bitmap.
	Min(b B) T
	Max(b B) T

	Add(b B, x T) bool
	Remove(b B, x T) bool
	AddMany(b B, xs []T)
	RemoveMany(b B, xs []T)
	// AddRange adds [lo, hi). hi is a uint64 so that the 32-bit domain can
	// be covered completely.
	AddRange(b B, lo, hi uint64)

	And(dst, src B)
	Or(dst, src B)
	Xor(dst, src B)
	AndNot(dst, src B)
	// OrMany returns a new bitmap holding the union of bs.
	OrMany(bs []B) B
	// Flip returns a new bitmap with [lo, hi) complemented.
	Flip(b B, lo, hi uint64) B

	AndCardinality(a, b B) uint64
	Intersects(a, b B) bool
	Equals(a, b B) bool

	// Select returns the element of 0-based rank r.
	Select(b B, r uint64) (T, bool)
	Iterator(b B) Iterator[T]
	ToArray(b B) []T

	WriteTo(b B, w io.Writer) (int64, error)
	ReadFrom(b B, r io.Reader) (int64, error)
	RunOptimize(b B)
	SizeInBytes(b B) uint64
	SerializedSizeInBytes(b B) uint64
	Stats(b B) Stats
}

// Stats describes the physical layout of a bitmap.
type Stats struct {
	Cardinality           uint64 `json:"cardinality"`
	Containers            uint64 `json:"containers"`
	MinValue              uint64 `json:"min_value"`
	MaxValue              uint64 `json:"max_value"`
	ArrayContainers       uint64 `json:"array_containers"`
	ArrayContainerValues  uint64 `json:"array_container_values"`
	ArrayContainerBytes   uint64 `json:"array_container_bytes"`
	BitsetContainers      uint64 `json:"bitset_containers"`
	BitsetContainerValues uint64 `json:"bitset_container_values"`
	BitsetContainerBytes  uint64 `json:"bitset_container_bytes"`
	RunContainers         uint64 `json:"run_containers"`
	RunContainerValues    uint64 `json:"run_container_values"`
	RunContainerBytes     uint64 `json:"run_container_bytes"`
	SizeInBytes           uint64 `json:"size_in_bytes"`
	SerializedSizeInBytes uint64 `json:"serialized_size_in_bytes"`
}
