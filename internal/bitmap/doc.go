// Package bitmap provides the N-ary algebra and rank/select engine that sits
// on top of compressed roaring bitmaps.
//
// The engine is written once, generic over the element width and over the
// bitmap implementation, and instantiated twice:
//
//	bitmap.R32() // *roaring.Bitmap,   uint32 elements
//	bitmap.R64() // *roaring64.Bitmap, uint64 elements
//
// # Operators
//
// Every N-ary operator has the shape op(dst, operands) and writes its result
// into dst. dst may be pointer-identical to any operand; the result is the
// same as if dst had been a fresh bitmap. Operands are never mutated.
//
//	Or      union
//	And     intersection
//	Xor     parity (set in an odd number of operands)
//	AndOr   op0 AND (op1 OR ... OR opN)
//	AndNot  op0 minus op1 minus ... minus opN
//	OrNot   (op1 OR ... OR opN) minus op0
//	One     set in exactly one operand
//
// An empty operand list clears dst.
//
// # Rank and select
//
// NthPresent and NthAbsent answer 1-indexed positional queries. A missing
// answer is reported through the boolean result, never through a zero value.
//
// # Temporaries
//
// Defensive copies and helper bitmaps come from a per-engine pool and are
// released with defer, so no branch of an operator leaks a temporary.
package bitmap
