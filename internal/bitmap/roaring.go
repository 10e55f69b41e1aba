package bitmap

import (
	"io"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// Roaring32 adapts *roaring.Bitmap to Backend.
type Roaring32 struct{}

var _ Backend[uint32, *roaring.Bitmap] = Roaring32{}

func (Roaring32) Name() string         { return "roaring32" }
func (Roaring32) MaxValue() uint32     { return math.MaxUint32 }
func (Roaring32) New() *roaring.Bitmap { return roaring.New() }

func (Roaring32) Clone(b *roaring.Bitmap) *roaring.Bitmap { return b.Clone() }
func (Roaring32) Clear(b *roaring.Bitmap)                 { b.Clear() }

func (Roaring32) Cardinality(b *roaring.Bitmap) uint64       { return b.GetCardinality() }
func (Roaring32) Contains(b *roaring.Bitmap, x uint32) bool  { return b.Contains(x) }
func (Roaring32) IsEmpty(b *roaring.Bitmap) bool             { return b.IsEmpty() }
func (Roaring32) Min(b *roaring.Bitmap) uint32               { return b.Minimum() }
func (Roaring32) Max(b *roaring.Bitmap) uint32               { return b.Maximum() }
func (Roaring32) Add(b *roaring.Bitmap, x uint32) bool       { return b.CheckedAdd(x) }
func (Roaring32) Remove(b *roaring.Bitmap, x uint32) bool    { return b.CheckedRemove(x) }
func (Roaring32) AddMany(b *roaring.Bitmap, xs []uint32)     { b.AddMany(xs) }
func (Roaring32) AddRange(b *roaring.Bitmap, lo, hi uint64)  { b.AddRange(lo, hi) }
func (Roaring32) And(dst, src *roaring.Bitmap)               { dst.And(src) }
func (Roaring32) Or(dst, src *roaring.Bitmap)                { dst.Or(src) }
func (Roaring32) Xor(dst, src *roaring.Bitmap)               { dst.Xor(src) }
func (Roaring32) AndNot(dst, src *roaring.Bitmap)            { dst.AndNot(src) }
func (Roaring32) Intersects(a, b *roaring.Bitmap) bool       { return a.Intersects(b) }
func (Roaring32) Equals(a, b *roaring.Bitmap) bool           { return a.Equals(b) }
func (Roaring32) ToArray(b *roaring.Bitmap) []uint32         { return b.ToArray() }
func (Roaring32) RunOptimize(b *roaring.Bitmap)              { b.RunOptimize() }
func (Roaring32) SizeInBytes(b *roaring.Bitmap) uint64       { return b.GetSizeInBytes() }
func (Roaring32) AndCardinality(a, b *roaring.Bitmap) uint64 { return a.AndCardinality(b) }

func (Roaring32) RemoveMany(b *roaring.Bitmap, xs []uint32) {
	for _, x := range xs {
		b.Remove(x)
	}
}

// OrMany uses the library's fast aggregation, which unions lazily and
// repairs cardinalities once at the end.
func (Roaring32) OrMany(bs []*roaring.Bitmap) *roaring.Bitmap {
	return roaring.FastOr(bs...)
}

func (Roaring32) Flip(b *roaring.Bitmap, lo, hi uint64) *roaring.Bitmap {
	return roaring.Flip(b, lo, hi)
}

func (Roaring32) Select(b *roaring.Bitmap, r uint64) (uint32, bool) {
	if r >= b.GetCardinality() {
		return 0, false
	}
	v, err := b.Select(uint32(r))
	if err != nil {
		return 0, false
	}
	return v, true
}

func (Roaring32) Iterator(b *roaring.Bitmap) Iterator[uint32] {
	return b.Iterator()
}

func (Roaring32) WriteTo(b *roaring.Bitmap, w io.Writer) (int64, error) {
	return b.WriteTo(w)
}

func (Roaring32) ReadFrom(b *roaring.Bitmap, r io.Reader) (int64, error) {
	return b.ReadFrom(r)
}

func (Roaring32) SerializedSizeInBytes(b *roaring.Bitmap) uint64 {
	return b.GetSerializedSizeInBytes()
}

func (Roaring32) Stats(b *roaring.Bitmap) Stats {
	st := b.Stats()
	s := Stats{
		Cardinality:           st.Cardinality,
		Containers:            st.Containers,
		ArrayContainers:       st.ArrayContainers,
		ArrayContainerValues:  st.ArrayContainerValues,
		ArrayContainerBytes:   st.ArrayContainerBytes,
		BitsetContainers:      st.BitmapContainers,
		BitsetContainerValues: st.BitmapContainerValues,
		BitsetContainerBytes:  st.BitmapContainerBytes,
		RunContainers:         st.RunContainers,
		RunContainerValues:    st.RunContainerValues,
		RunContainerBytes:     st.RunContainerBytes,
		SizeInBytes:           b.GetSizeInBytes(),
		SerializedSizeInBytes: b.GetSerializedSizeInBytes(),
	}
	if !b.IsEmpty() {
		s.MinValue = uint64(b.Minimum())
		s.MaxValue = uint64(b.Maximum())
	}
	return s
}
