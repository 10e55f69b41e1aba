package bitmap

// NthPresent returns the n-th smallest element of b (1-indexed). It reports
// false when n is zero or exceeds the cardinality.
func (e *Engine[T, B]) NthPresent(b B, n uint64) (T, bool) {
	if n == 0 {
		return 0, false
	}
	it := e.be.Iterator(b)
	for i := uint64(1); it.HasNext(); i++ {
		v := it.Next()
		if i == n {
			return v, true
		}
	}
	return 0, false
}

// NthAbsent returns the n-th smallest integer (1-indexed, counting from 0)
// that is not in b. The gap after the last element is unbounded, so the
// only misses are n == 0 and answers beyond the element domain.
func (e *Engine[T, B]) NthAbsent(b B, n uint64) (T, bool) {
	if n == 0 {
		return 0, false
	}

	var (
		last    T
		hasLast bool
	)
	it := e.be.Iterator(b)
	for it.HasNext() {
		cur := it.Next()

		// Number of absent integers strictly between last and cur.
		var gap uint64
		if hasLast {
			gap = uint64(cur - last - 1)
		} else {
			gap = uint64(cur)
		}

		if n <= gap {
			if hasLast {
				return last + T(n), true
			}
			return T(n - 1), true
		}
		n -= gap
		last, hasLast = cur, true
	}

	limit := uint64(e.be.MaxValue())
	if !hasLast {
		if n-1 > limit {
			return 0, false
		}
		return T(n - 1), true
	}
	if n > limit-uint64(last) {
		return 0, false
	}
	return last + T(n), true
}

// NthAbsentSlow answers the same query as NthAbsent by materializing the
// complement of b over [0, max(b)]. It only sees integers up to max(b) and
// exists to cross-check NthAbsent.
func (e *Engine[T, B]) NthAbsentSlow(b B, n uint64) (T, bool) {
	return e.NthPresent(e.Not(b), n)
}
