package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/reroaring/codec"
	"github.com/hupe1980/reroaring/internal/bitmap"
	"github.com/hupe1980/reroaring/internal/keyspace"
)

// MaxRangeSize bounds the span of a RANGEINTARRAY request.
const MaxRangeSize = 100_000_000

// Prefixes of the two command families.
const (
	Prefix32 = "R."
	Prefix64 = "R64."
)

// family implements one command family over a bitmap width.
type family[T bitmap.Elem, B comparable] struct {
	prefix string
	e      *bitmap.Engine[T, B]
	parse  func(arg, name string) (T, error)
	ops    map[string]func(dst B, ops []B)
}

func newFamily[T bitmap.Elem, B comparable](prefix string, e *bitmap.Engine[T, B], parse func(string, string) (T, error)) *family[T, B] {
	return &family[T, B]{
		prefix: prefix,
		e:      e,
		parse:  parse,
		ops: map[string]func(B, []B){
			"AND":   e.And,
			"OR":    e.Or,
			"XOR":   e.Xor,
			"ANDOR": e.AndOr,
			"ONE":   e.One,
			"DIFF":  e.AndNot,
			"DIFF1": e.OrNot,
		},
	}
}

// Bitmap32Commands returns the R. command family.
func Bitmap32Commands() []Spec {
	return newFamily[uint32, *roaring.Bitmap](Prefix32, bitmap.R32(), parseUint32).specs()
}

// Bitmap64Commands returns the R64. command family.
func Bitmap64Commands() []Spec {
	return newFamily[uint64, *roaring64.Bitmap](Prefix64, bitmap.R64(), parseUint64).specs()
}

func (f *family[T, B]) specs() []Spec {
	w, r := FlagWrite, FlagReadOnly
	spec := func(name string, h Handler, flags Flags, arity int) Spec {
		return Spec{Name: f.prefix + name, Handler: h, Flags: flags, Arity: arity, FirstKey: 1, LastKey: 1, KeyStep: 1}
	}

	specs := []Spec{
		spec("SETBIT", f.setBit, w, 4),
		spec("GETBIT", f.getBit, r, 3),
		spec("GETBITS", f.getBits, r, -3),
		spec("CLEARBITS", f.clearBits, w, -3),
		spec("SETINTARRAY", f.setIntArray, w, -3),
		spec("GETINTARRAY", f.getIntArray, r, 2),
		spec("RANGEINTARRAY", f.rangeIntArray, r, 4),
		spec("APPENDINTARRAY", f.appendIntArray, w, -3),
		spec("DELETEINTARRAY", f.deleteIntArray, w, -3),
		spec("SETFULL", f.setFull, w, 2),
		spec("SETRANGE", f.setRange, w, 4),
		spec("SETBITARRAY", f.setBitArray, w, 3),
		spec("GETBITARRAY", f.getBitArray, r, 2),
		spec("BITCOUNT", f.bitCount, r, 2),
		spec("BITPOS", f.bitPos, r, 3),
		spec("MIN", f.minValue, r, 2),
		spec("MAX", f.maxValue, r, 2),
		spec("CLEAR", f.clearKey, w, 2),
		spec("JACCARD", f.jaccard, r, 3),
	}

	diff := spec("DIFF", f.diff, w, 4)
	diff.LastKey = 3
	optimize := spec("OPTIMIZE", f.optimize, w, -2)
	optimize.MaxArity = 3
	stat := spec("STAT", f.stat, r, -2)
	stat.MaxArity = 3
	contains := spec("CONTAINS", f.contains, r, -3)
	contains.MaxArity = 4
	contains.LastKey = 2
	bitop := spec("BITOP", f.bitOp, w, -4)
	bitop.KeysFunc = bitOpKeys

	return append(specs, diff, optimize, stat, contains, bitop)
}

// bitOpKeys returns the destination and source keys of a BITOP call. NOT
// takes a single source followed by an optional bound.
func bitOpKeys(args []string) []string {
	if len(args) < 3 {
		return nil
	}
	if strings.EqualFold(args[1], "NOT") {
		return args[2:min(len(args), 4)]
	}
	return args[2:]
}

// lookup returns the bitmap under key. ok is false for a missing key.
func (f *family[T, B]) lookup(c *Ctx, key string) (B, bool, error) {
	b, ok, err := keyspace.Lookup[B](c.Store, key)
	if errors.Is(err, keyspace.ErrWrongType) {
		return b, false, ErrWrongType
	}
	return b, ok, err
}

// mustExist returns the bitmap under key, treating a missing key as a wrong
// type.
func (f *family[T, B]) mustExist(c *Ctx, key string) (B, error) {
	b, ok, err := f.lookup(c, key)
	if err != nil {
		return b, err
	}
	if !ok {
		return b, ErrWrongType
	}
	return b, nil
}

// getOrCreate returns the bitmap under key, storing a new one if missing.
func (f *family[T, B]) getOrCreate(c *Ctx, key string) (B, error) {
	b, ok, err := f.lookup(c, key)
	if err != nil {
		return b, err
	}
	if !ok {
		b = f.e.New()
		c.Store.Set(key, b)
	}
	return b, nil
}

func (f *family[T, B]) parseAll(args []string, name string) ([]T, error) {
	out := make([]T, len(args))
	for i, arg := range args {
		x, err := f.parse(arg, name)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

func elem[T bitmap.Elem](x T) Reply { return Uint(uint64(x)) }

// SETBIT key offset value
func (f *family[T, B]) setBit(c *Ctx) (Reply, error) {
	key := c.Args[1]
	if _, _, err := f.lookup(c, key); err != nil {
		return Reply{}, err
	}
	offset, err := f.parse(c.Args[2], "offset")
	if err != nil {
		return Reply{}, err
	}
	value, err := parseBit(c.Args[3], "value")
	if err != nil {
		return Reply{}, err
	}

	b, err := f.getOrCreate(c, key)
	if err != nil {
		return Reply{}, err
	}
	be := f.e.Backend()
	old := be.Contains(b, offset)
	if value {
		be.Add(b, offset)
	} else {
		be.Remove(b, offset)
	}
	c.Replicate()
	return Bool(old), nil
}

// GETBIT key offset
func (f *family[T, B]) getBit(c *Ctx) (Reply, error) {
	b, ok, err := f.lookup(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	offset, err := f.parse(c.Args[2], "offset")
	if err != nil {
		return Reply{}, err
	}
	return Bool(ok && f.e.Backend().Contains(b, offset)), nil
}

// GETBITS key offset [offset ...]
func (f *family[T, B]) getBits(c *Ctx) (Reply, error) {
	b, ok, err := f.lookup(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return Array(), nil
	}
	offsets, err := f.parseAll(c.Args[2:], "offset")
	if err != nil {
		return Reply{}, err
	}
	bits := f.e.GetBits(b, offsets)
	out := make([]Reply, len(bits))
	for i, bit := range bits {
		out[i] = Bool(bit)
	}
	return Array(out...), nil
}

// CLEARBITS key offset [offset ...] [COUNT]
func (f *family[T, B]) clearBits(c *Ctx) (Reply, error) {
	b, ok, err := f.lookup(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return Null(), nil
	}

	args := c.Args[2:]
	count := args[len(args)-1] == "COUNT"
	if count {
		args = args[:len(args)-1]
	}
	offsets, err := f.parseAll(args, "offset")
	if err != nil {
		return Reply{}, err
	}

	c.Replicate()
	if count {
		return Uint(f.e.ClearBitsCount(b, offsets)), nil
	}
	f.e.ClearBits(b, offsets)
	return OK, nil
}

// SETINTARRAY key value [value ...]
func (f *family[T, B]) setIntArray(c *Ctx) (Reply, error) {
	if _, _, err := f.lookup(c, c.Args[1]); err != nil {
		return Reply{}, err
	}
	values, err := f.parseAll(c.Args[2:], "value")
	if err != nil {
		return Reply{}, err
	}
	c.Store.Set(c.Args[1], f.e.FromArray(values))
	c.Replicate()
	return OK, nil
}

// GETINTARRAY key
func (f *family[T, B]) getIntArray(c *Ctx) (Reply, error) {
	b, ok, err := f.lookup(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return Array(), nil
	}
	return IntArray(f.e.ToArray(b)), nil
}

// RANGEINTARRAY key start end
func (f *family[T, B]) rangeIntArray(c *Ctx) (Reply, error) {
	b, ok, err := f.lookup(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return Array(), nil
	}
	start, err := f.parse(c.Args[2], "start")
	if err != nil {
		return Reply{}, err
	}
	end, err := f.parse(c.Args[3], "end")
	if err != nil {
		return Reply{}, err
	}
	if start > end {
		return Array(), nil
	}
	if uint64(end-start) >= MaxRangeSize {
		return Reply{}, ErrRangeTooLarge
	}
	return IntArray(f.e.RangeByRank(b, uint64(start), uint64(end))), nil
}

// APPENDINTARRAY key value [value ...]
func (f *family[T, B]) appendIntArray(c *Ctx) (Reply, error) {
	if _, _, err := f.lookup(c, c.Args[1]); err != nil {
		return Reply{}, err
	}
	values, err := f.parseAll(c.Args[2:], "value")
	if err != nil {
		return Reply{}, err
	}
	b, err := f.getOrCreate(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	f.e.Backend().AddMany(b, values)
	c.Replicate()
	return OK, nil
}

// DELETEINTARRAY key value [value ...]
//
// A missing key is created empty without looking at the values.
func (f *family[T, B]) deleteIntArray(c *Ctx) (Reply, error) {
	b, ok, err := f.lookup(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		c.Store.Set(c.Args[1], f.e.New())
		c.Replicate()
		return OK, nil
	}
	values, err := f.parseAll(c.Args[2:], "value")
	if err != nil {
		return Reply{}, err
	}
	f.e.ClearBits(b, values)
	c.Replicate()
	return OK, nil
}

// DIFF dest decreasing deductible
func (f *family[T, B]) diff(c *Ctx) (Reply, error) {
	if _, _, err := f.lookup(c, c.Args[1]); err != nil {
		return Reply{}, err
	}
	a, err := f.mustExist(c, c.Args[2])
	if err != nil {
		return Reply{}, err
	}
	b, err := f.mustExist(c, c.Args[3])
	if err != nil {
		return Reply{}, err
	}
	out := f.e.New()
	f.e.AndNot(out, []B{a, b})
	c.Store.Set(c.Args[1], out)
	c.Replicate()
	return OK, nil
}

// SETFULL key
func (f *family[T, B]) setFull(c *Ctx) (Reply, error) {
	if _, ok := c.Store.Get(c.Args[1]); ok {
		return Reply{}, ErrKeyExists
	}
	c.Store.Set(c.Args[1], f.e.Full())
	c.Replicate()
	return OK, nil
}

// SETRANGE key start end
//
// Adds [start, end). SETRANGE key 0 0 creates an empty bitmap.
func (f *family[T, B]) setRange(c *Ctx) (Reply, error) {
	b, ok, err := f.lookup(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	start, err := f.parse(c.Args[2], "start")
	if err != nil {
		return Reply{}, err
	}
	end, err := f.parse(c.Args[3], "end")
	if err != nil {
		return Reply{}, err
	}
	if end < start {
		return Reply{}, &ArgError{Name: "end", Reason: "must be >= start"}
	}

	if !ok {
		c.Store.Set(c.Args[1], f.e.FromRange(uint64(start), uint64(end)))
	} else if start < end {
		f.e.Backend().AddRange(b, uint64(start), uint64(end))
	}
	c.Replicate()
	return OK, nil
}

// OPTIMIZE key [--mem]
//
// The option is accepted for compatibility; Go bitmaps have no separate
// shrink step.
func (f *family[T, B]) optimize(c *Ctx) (Reply, error) {
	b, ok, err := f.lookup(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return Reply{}, ErrNoSuchKey
	}
	if f.e.Optimize(b) {
		c.Replicate()
	}
	return OK, nil
}

// STAT key [JSON]
func (f *family[T, B]) stat(c *Ctx) (Reply, error) {
	b, ok, err := f.lookup(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return Reply{}, ErrKeyNotExist
	}

	st := f.e.Stats(b)
	if len(c.Args) == 3 {
		if !strings.EqualFold(c.Args[2], "JSON") {
			return Reply{}, ErrSyntax
		}
		data, err := codec.Default.Marshal(st)
		if err != nil {
			return Reply{}, fmt.Errorf("stat: %w", err)
		}
		return Bulk(string(data)), nil
	}
	return Verbatim(FormatStats(st)), nil
}

// FormatStats renders st in the text layout of STAT.
func FormatStats(st bitmap.Stats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "cardinality: %d\n", st.Cardinality)
	fmt.Fprintf(&sb, "number of containers: %d\n", st.Containers)
	fmt.Fprintf(&sb, "max value: %d\n", st.MaxValue)
	fmt.Fprintf(&sb, "min value: %d\n", st.MinValue)

	fmt.Fprintf(&sb, "number of array containers: %d\n", st.ArrayContainers)
	fmt.Fprintf(&sb, "\tarray container values: %d\n", st.ArrayContainerValues)
	fmt.Fprintf(&sb, "\tarray container bytes: %d\n", st.ArrayContainerBytes)

	fmt.Fprintf(&sb, "bitset  containers: %d\n", st.BitsetContainers)
	fmt.Fprintf(&sb, "\tbitset  container values: %d\n", st.BitsetContainerValues)
	fmt.Fprintf(&sb, "\tbitset  container bytes: %d\n", st.BitsetContainerBytes)

	fmt.Fprintf(&sb, "run containers: %d\n", st.RunContainers)
	fmt.Fprintf(&sb, "\trun container values: %d\n", st.RunContainerValues)
	fmt.Fprintf(&sb, "\trun container bytes: %d\n", st.RunContainerBytes)
	return sb.String()
}

// SETBITARRAY key bits
func (f *family[T, B]) setBitArray(c *Ctx) (Reply, error) {
	if _, _, err := f.lookup(c, c.Args[1]); err != nil {
		return Reply{}, err
	}
	c.Store.Set(c.Args[1], f.e.FromBitArray(c.Args[2]))
	c.Replicate()
	return OK, nil
}

// GETBITARRAY key
func (f *family[T, B]) getBitArray(c *Ctx) (Reply, error) {
	b, ok, err := f.lookup(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return Status(""), nil
	}
	bits, err := f.e.BitArray(b)
	if errors.Is(err, bitmap.ErrBitArrayTooLarge) {
		return Reply{}, ErrBitArrayTooLarge
	}
	if err != nil {
		return Reply{}, err
	}
	return Bulk(bits), nil
}

// BITOP op dest src [src ...]
// BITOP NOT dest src [last]
func (f *family[T, B]) bitOp(c *Ctx) (Reply, error) {
	op := strings.ToUpper(c.Args[1])
	if op == "NOT" {
		return f.bitNot(c)
	}
	fn, ok := f.ops[op]
	if !ok {
		return Reply{}, ErrSyntax
	}
	if len(c.Args) < 5 {
		return Reply{}, &ArityError{Command: strings.ToLower(c.Args[0])}
	}

	destKey := c.Args[2]
	dest, destOK, destErr := f.lookup(c, destKey)
	if destErr != nil && !errors.Is(destErr, ErrWrongType) {
		return Reply{}, destErr
	}

	var (
		empty    B
		hasEmpty bool
		destCopy B
		hasCopy  bool
	)
	srcKeys := c.Args[3:]
	ops := make([]B, len(srcKeys))
	for i, key := range srcKeys {
		if key == destKey {
			// The destination cannot feed itself if it holds another kind.
			if destErr != nil {
				return Reply{}, destErr
			}
			if !hasCopy {
				if destOK {
					destCopy = f.e.Copy(dest)
				} else {
					destCopy = f.e.New()
				}
				hasCopy = true
			}
			ops[i] = destCopy
			continue
		}

		b, ok, err := f.lookup(c, key)
		if err != nil {
			return Reply{}, err
		}
		if !ok {
			if !hasEmpty {
				empty, hasEmpty = f.e.New(), true
			}
			b = empty
		}
		ops[i] = b
	}

	if !destOK {
		dest = f.e.New()
		c.Store.Set(destKey, dest)
	}
	fn(dest, ops)
	c.Replicate()
	return Uint(f.e.Backend().Cardinality(dest)), nil
}

// bitNot stores the complement of src over [0, last] in dest, where last is
// the larger of the optional bound and the maximum of src.
func (f *family[T, B]) bitNot(c *Ctx) (Reply, error) {
	if len(c.Args) > 5 {
		return Reply{}, &ArityError{Command: strings.ToLower(c.Args[0])}
	}

	var (
		last    T
		hasLast bool
	)
	if len(c.Args) == 5 {
		x, err := f.parse(c.Args[4], "last")
		if err != nil {
			return Reply{}, err
		}
		last, hasLast = x, true
	}

	if _, _, err := f.lookup(c, c.Args[2]); err != nil {
		return Reply{}, err
	}
	src, ok, err := f.lookup(c, c.Args[3])
	if err != nil {
		return Reply{}, err
	}

	be := f.e.Backend()
	if ok && !be.IsEmpty(src) {
		if mx := be.Max(src); !hasLast || mx > last {
			last, hasLast = mx, true
		}
	}

	var out B
	switch {
	case !hasLast:
		out = f.e.New()
	case !ok:
		out = f.e.FlipThrough(f.e.New(), last)
	default:
		out = f.e.FlipThrough(src, last)
	}
	c.Store.Set(c.Args[2], out)
	c.Replicate()
	return Uint(be.Cardinality(out)), nil
}

// BITCOUNT key
func (f *family[T, B]) bitCount(c *Ctx) (Reply, error) {
	b, ok, err := f.lookup(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return Int(0), nil
	}
	return Uint(f.e.Backend().Cardinality(b)), nil
}

// BITPOS key bit
func (f *family[T, B]) bitPos(c *Ctx) (Reply, error) {
	b, ok, err := f.lookup(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	bit, err := parseBit(c.Args[2], "bit")
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return Int(-1), nil
	}

	var (
		pos   T
		found bool
	)
	if bit {
		pos, found = f.e.NthPresent(b, 1)
	} else {
		pos, found = f.e.NthAbsent(b, 1)
	}
	if !found {
		return Int(-1), nil
	}
	return elem(pos), nil
}

// MIN key
func (f *family[T, B]) minValue(c *Ctx) (Reply, error) {
	return f.extreme(c, f.e.Backend().Min)
}

// MAX key
func (f *family[T, B]) maxValue(c *Ctx) (Reply, error) {
	return f.extreme(c, f.e.Backend().Max)
}

func (f *family[T, B]) extreme(c *Ctx, pick func(B) T) (Reply, error) {
	b, ok, err := f.lookup(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	if !ok || f.e.Backend().IsEmpty(b) {
		return Int(-1), nil
	}
	return elem(pick(b)), nil
}

// CLEAR key
func (f *family[T, B]) clearKey(c *Ctx) (Reply, error) {
	b, ok, err := f.lookup(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return Null(), nil
	}
	be := f.e.Backend()
	n := be.Cardinality(b)
	if n > 0 {
		be.Clear(b)
	}
	c.Replicate()
	return Uint(n), nil
}

// CONTAINS key1 key2 [ALL|ALL_STRICT|EQ]
func (f *family[T, B]) contains(c *Ctx) (Reply, error) {
	b1, err := f.mustExist(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	b2, err := f.mustExist(c, c.Args[2])
	if err != nil {
		return Reply{}, err
	}

	mode := bitmap.ContainsAny
	if len(c.Args) == 4 {
		m, ok := bitmap.ParseContainsMode(c.Args[3])
		if !ok {
			return Reply{}, &ModeError{Mode: c.Args[3]}
		}
		mode = m
	}
	return Bool(f.e.Contains(b1, b2, mode)), nil
}

// JACCARD key1 key2
func (f *family[T, B]) jaccard(c *Ctx) (Reply, error) {
	b1, err := f.mustExist(c, c.Args[1])
	if err != nil {
		return Reply{}, err
	}
	b2, err := f.mustExist(c, c.Args[2])
	if err != nil {
		return Reply{}, err
	}
	return Double(f.e.Jaccard(b1, b2)), nil
}
