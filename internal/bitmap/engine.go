package bitmap

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Engine runs the N-ary algebra and rank/select queries over one backend.
// It is safe for concurrent use as long as callers do not share bitmaps
// across goroutines without synchronization.
type Engine[T Elem, B comparable] struct {
	be   Backend[T, B]
	pool sync.Pool
}

// NewEngine creates an engine over the given backend.
func NewEngine[T Elem, B comparable](be Backend[T, B]) *Engine[T, B] {
	e := &Engine[T, B]{be: be}
	e.pool.New = func() any { return be.New() }
	return e
}

var (
	r32 = NewEngine[uint32, *roaring.Bitmap](Roaring32{})
	r64 = NewEngine[uint64, *roaring64.Bitmap](Roaring64{})
)

// R32 returns the shared engine for 32-bit bitmaps.
func R32() *Engine[uint32, *roaring.Bitmap] { return r32 }

// R64 returns the shared engine for 64-bit bitmaps.
func R64() *Engine[uint64, *roaring64.Bitmap] { return r64 }

// Backend returns the underlying bitmap backend.
func (e *Engine[T, B]) Backend() Backend[T, B] { return e.be }

// New returns a new empty bitmap.
func (e *Engine[T, B]) New() B { return e.be.New() }

// acquire returns an empty temporary. Pair every call with release.
func (e *Engine[T, B]) acquire() B {
	return e.pool.Get().(B)
}

// release clears a temporary and returns it to the pool.
func (e *Engine[T, B]) release(b B) {
	e.be.Clear(b)
	e.pool.Put(b)
}

// Overwrite makes dst's content equal to src's. src is never modified.
func (e *Engine[T, B]) Overwrite(dst, src B) {
	if dst == src {
		return
	}
	e.be.Clear(dst)
	e.be.Or(dst, src)
}

// Copy returns a new bitmap with the content of b.
func (e *Engine[T, B]) Copy(b B) B {
	return e.be.Clone(b)
}

// indexOf returns the first position of b in ops, or -1.
func indexOf[B comparable](ops []B, b B) int {
	for i, op := range ops {
		if op == b {
			return i
		}
	}
	return -1
}

// aliasedOutside reports whether dst appears in ops at a position other
// than the allowed ones.
func aliasedOutside[B comparable](dst B, ops []B, allowed ...int) bool {
	for i, op := range ops {
		if op != dst {
			continue
		}
		ok := false
		for _, a := range allowed {
			if i == a {
				ok = true
				break
			}
		}
		if !ok {
			return true
		}
	}
	return false
}

// viaScratch computes op into a fresh temporary, then overwrites dst. Used
// when dst aliases an operand in a position the in-place fold would
// clobber before reading it.
func (e *Engine[T, B]) viaScratch(dst B, ops []B, op func(B, []B)) {
	tmp := e.acquire()
	defer e.release(tmp)

	op(tmp, ops)
	e.Overwrite(dst, tmp)
}
