package bitmap

import (
	"io"
	"math"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Roaring64 adapts *roaring64.Bitmap to Backend.
type Roaring64 struct{}

var _ Backend[uint64, *roaring64.Bitmap] = Roaring64{}

func (Roaring64) Name() string           { return "roaring64" }
func (Roaring64) MaxValue() uint64       { return math.MaxUint64 }
func (Roaring64) New() *roaring64.Bitmap { return roaring64.New() }

func (Roaring64) Clone(b *roaring64.Bitmap) *roaring64.Bitmap { return b.Clone() }
func (Roaring64) Clear(b *roaring64.Bitmap)                   { b.Clear() }

func (Roaring64) Cardinality(b *roaring64.Bitmap) uint64       { return b.GetCardinality() }
func (Roaring64) Contains(b *roaring64.Bitmap, x uint64) bool  { return b.Contains(x) }
func (Roaring64) IsEmpty(b *roaring64.Bitmap) bool             { return b.IsEmpty() }
func (Roaring64) Min(b *roaring64.Bitmap) uint64               { return b.Minimum() }
func (Roaring64) Max(b *roaring64.Bitmap) uint64               { return b.Maximum() }
func (Roaring64) Add(b *roaring64.Bitmap, x uint64) bool       { return b.CheckedAdd(x) }
func (Roaring64) Remove(b *roaring64.Bitmap, x uint64) bool    { return b.CheckedRemove(x) }
func (Roaring64) AddMany(b *roaring64.Bitmap, xs []uint64)     { b.AddMany(xs) }
func (Roaring64) AddRange(b *roaring64.Bitmap, lo, hi uint64)  { b.AddRange(lo, hi) }
func (Roaring64) And(dst, src *roaring64.Bitmap)               { dst.And(src) }
func (Roaring64) Or(dst, src *roaring64.Bitmap)                { dst.Or(src) }
func (Roaring64) Xor(dst, src *roaring64.Bitmap)               { dst.Xor(src) }
func (Roaring64) AndNot(dst, src *roaring64.Bitmap)            { dst.AndNot(src) }
func (Roaring64) Intersects(a, b *roaring64.Bitmap) bool       { return a.Intersects(b) }
func (Roaring64) Equals(a, b *roaring64.Bitmap) bool           { return a.Equals(b) }
func (Roaring64) ToArray(b *roaring64.Bitmap) []uint64         { return b.ToArray() }
func (Roaring64) RunOptimize(b *roaring64.Bitmap)              { b.RunOptimize() }
func (Roaring64) SizeInBytes(b *roaring64.Bitmap) uint64       { return b.GetSizeInBytes() }
func (Roaring64) AndCardinality(a, b *roaring64.Bitmap) uint64 { return a.AndCardinality(b) }

func (Roaring64) RemoveMany(b *roaring64.Bitmap, xs []uint64) {
	for _, x := range xs {
		b.Remove(x)
	}
}

func (Roaring64) OrMany(bs []*roaring64.Bitmap) *roaring64.Bitmap {
	out := roaring64.New()
	for _, b := range bs {
		out.Or(b)
	}
	return out
}

func (Roaring64) Flip(b *roaring64.Bitmap, lo, hi uint64) *roaring64.Bitmap {
	out := b.Clone()
	out.Flip(lo, hi)
	return out
}

func (Roaring64) Select(b *roaring64.Bitmap, r uint64) (uint64, bool) {
	if r >= b.GetCardinality() {
		return 0, false
	}
	v, err := b.Select(r)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (Roaring64) Iterator(b *roaring64.Bitmap) Iterator[uint64] {
	return b.Iterator()
}

func (Roaring64) WriteTo(b *roaring64.Bitmap, w io.Writer) (int64, error) {
	return b.WriteTo(w)
}

func (Roaring64) ReadFrom(b *roaring64.Bitmap, r io.Reader) (int64, error) {
	return b.ReadFrom(r)
}

func (Roaring64) SerializedSizeInBytes(b *roaring64.Bitmap) uint64 {
	return b.GetSerializedSizeInBytes()
}

func (Roaring64) Stats(b *roaring64.Bitmap) Stats {
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
		s.MinValue = b.Minimum()
		s.MaxValue = b.Maximum()
	}
	return s
}
