package bitmap

// Or stores the union of ops in dst.
func (e *Engine[T, B]) Or(dst B, ops []B) {
	switch len(ops) {
	case 0:
		e.be.Clear(dst)
		return
	case 1:
		e.Overwrite(dst, ops[0])
		return
	}

	if indexOf(ops, dst) < 0 {
		u := e.be.OrMany(ops)
		e.Overwrite(dst, u)
		return
	}

	// dst already holds its own contribution.
	for _, op := range ops {
		if op != dst {
			e.be.Or(dst, op)
		}
	}
}

// And stores the intersection of ops in dst.
func (e *Engine[T, B]) And(dst B, ops []B) {
	switch len(ops) {
	case 0:
		e.be.Clear(dst)
		return
	case 1:
		e.Overwrite(dst, ops[0])
		return
	}

	rest := ops
	if indexOf(ops, dst) < 0 {
		e.Overwrite(dst, ops[0])
		rest = ops[1:]
	}
	for _, op := range rest {
		if op == dst {
			continue
		}
		e.be.And(dst, op)
		if e.be.IsEmpty(dst) {
			return
		}
	}
}

// Xor stores in dst the elements set in an odd number of ops.
func (e *Engine[T, B]) Xor(dst B, ops []B) {
	switch len(ops) {
	case 0:
		e.be.Clear(dst)
		return
	case 1:
		e.Overwrite(dst, ops[0])
		return
	}

	// Parity depends on multiplicity, so dst may only stand in for ops[0].
	if aliasedOutside(dst, ops, 0) {
		e.viaScratch(dst, ops, e.Xor)
		return
	}

	e.Overwrite(dst, ops[0])
	for _, op := range ops[1:] {
		e.be.Xor(dst, op)
	}
}

// AndOr stores ops[0] AND (ops[1] OR ... OR ops[n-1]) in dst.
func (e *Engine[T, B]) AndOr(dst B, ops []B) {
	switch len(ops) {
	case 0:
		e.be.Clear(dst)
		return
	case 1:
		e.Overwrite(dst, ops[0])
		return
	}

	if aliasedOutside(dst, ops, 0, 1) {
		e.viaScratch(dst, ops, e.AndOr)
		return
	}

	base := ops[0]
	if base == dst {
		// dst is about to be overwritten by the union.
		saved := e.acquire()
		defer e.release(saved)
		e.Overwrite(saved, base)
		base = saved
	}

	e.Overwrite(dst, ops[1])
	for _, op := range ops[2:] {
		e.be.Or(dst, op)
	}
	e.be.And(dst, base)
}

// AndNot stores ops[0] minus every other operand in dst.
func (e *Engine[T, B]) AndNot(dst B, ops []B) {
	switch len(ops) {
	case 0:
		e.be.Clear(dst)
		return
	case 1:
		e.Overwrite(dst, ops[0])
		return
	}

	if aliasedOutside(dst, ops, 0) {
		e.viaScratch(dst, ops, e.AndNot)
		return
	}

	e.Overwrite(dst, ops[0])
	for _, op := range ops[1:] {
		if e.be.IsEmpty(dst) {
			return
		}
		e.be.AndNot(dst, op)
	}
}

// OrNot stores (ops[1] OR ... OR ops[n-1]) minus ops[0] in dst. Fewer than
// two operands leave nothing to subtract from, so dst is cleared.
func (e *Engine[T, B]) OrNot(dst B, ops []B) {
	if len(ops) < 2 {
		e.be.Clear(dst)
		return
	}

	if aliasedOutside(dst, ops, 1) {
		e.viaScratch(dst, ops, e.OrNot)
		return
	}

	e.Overwrite(dst, ops[1])
	for _, op := range ops[2:] {
		e.be.Or(dst, op)
	}
	e.be.AndNot(dst, ops[0])
}

// One stores in dst the elements set in exactly one operand.
func (e *Engine[T, B]) One(dst B, ops []B) {
	if len(ops) <= 2 {
		e.Xor(dst, ops)
		return
	}

	if aliasedOutside(dst, ops, 0) {
		e.viaScratch(dst, ops, e.One)
		return
	}

	seen := e.acquire()
	defer e.release(seen)
	both := e.acquire()
	defer e.release(both)

	e.Overwrite(dst, ops[0])
	for _, op := range ops[1:] {
		e.Overwrite(both, dst)
		e.be.And(both, op)
		e.be.Or(seen, both)

		e.be.Xor(dst, op)
		e.be.AndNot(dst, seen)
	}
}

// Not returns the complement of b over [0, max(b)]. The complement of an
// empty bitmap is empty.
func (e *Engine[T, B]) Not(b B) B {
	if e.be.IsEmpty(b) {
		return e.be.New()
	}
	return e.FlipThrough(b, e.be.Max(b))
}

// Flip returns the complement of b over [0, end).
func (e *Engine[T, B]) Flip(b B, end uint64) B {
	return e.be.Flip(b, 0, end)
}

// FlipThrough returns the complement of b over [0, last]. Unlike Flip it
// can reach the largest element of the domain.
func (e *Engine[T, B]) FlipThrough(b B, last T) B {
	out := e.be.Flip(b, 0, uint64(last))
	if e.be.Contains(out, last) {
		e.be.Remove(out, last)
	} else {
		e.be.Add(out, last)
	}
	return out
}
