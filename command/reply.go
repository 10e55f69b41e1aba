package command

import (
	"math"
	"strconv"
	"strings"

	"github.com/hupe1980/reroaring/internal/bitmap"
)

// ReplyKind is the type of a command reply.
type ReplyKind uint8

const (
	KindStatus ReplyKind = iota
	KindInt
	KindBulk
	KindNull
	KindArray
	KindDouble
	KindVerbatim
	KindBigNumber
)

func (k ReplyKind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindInt:
		return "integer"
	case KindBulk:
		return "bulk"
	case KindNull:
		return "null"
	case KindArray:
		return "array"
	case KindDouble:
		return "double"
	case KindVerbatim:
		return "verbatim"
	case KindBigNumber:
		return "big number"
	default:
		return "unknown"
	}
}

// Reply is the result of a command.
//
// Only the field matching Kind is meaningful: Int for KindInt, Str for
// status, bulk, verbatim and big number replies, Float for KindDouble and
// Array for KindArray.
type Reply struct {
	Kind  ReplyKind
	Int   int64
	Str   string
	Float float64
	Array []Reply
}

// OK is the status reply of most write commands.
var OK = Status("OK")

// Status returns a simple string reply.
func Status(s string) Reply { return Reply{Kind: KindStatus, Str: s} }

// Int returns an integer reply.
func Int(n int64) Reply { return Reply{Kind: KindInt, Int: n} }

// Uint returns an integer reply, or a big number when n does not fit an
// int64.
func Uint(n uint64) Reply {
	if n > math.MaxInt64 {
		return Reply{Kind: KindBigNumber, Str: strconv.FormatUint(n, 10)}
	}
	return Reply{Kind: KindInt, Int: int64(n)}
}

// Bool returns 1 or 0.
func Bool(b bool) Reply {
	if b {
		return Int(1)
	}
	return Int(0)
}

// Bulk returns a binary-safe string reply.
func Bulk(s string) Reply { return Reply{Kind: KindBulk, Str: s} }

// Null returns the null reply.
func Null() Reply { return Reply{Kind: KindNull} }

// Double returns a floating point reply.
func Double(f float64) Reply { return Reply{Kind: KindDouble, Float: f} }

// Verbatim returns a preformatted text reply.
func Verbatim(s string) Reply { return Reply{Kind: KindVerbatim, Str: s} }

// Array returns an array reply. A nil list yields an empty array.
func Array(rs ...Reply) Reply {
	if rs == nil {
		rs = []Reply{}
	}
	return Reply{Kind: KindArray, Array: rs}
}

// IntArray returns an array of integer replies.
func IntArray[T bitmap.Elem](xs []T) Reply {
	out := make([]Reply, len(xs))
	for i, x := range xs {
		out[i] = Uint(uint64(x))
	}
	return Reply{Kind: KindArray, Array: out}
}

// Uint64 returns the reply as an unsigned integer. ok is false for replies
// that are not integers or are negative.
func (r Reply) Uint64() (uint64, bool) {
	switch r.Kind {
	case KindInt:
		if r.Int < 0 {
			return 0, false
		}
		return uint64(r.Int), true
	case KindBigNumber:
		n, err := strconv.ParseUint(r.Str, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// String renders the reply the way redis-cli prints it.
func (r Reply) String() string {
	var sb strings.Builder
	r.format(&sb, "")
	return sb.String()
}

func (r Reply) format(sb *strings.Builder, indent string) {
	switch r.Kind {
	case KindStatus, KindVerbatim:
		sb.WriteString(r.Str)
	case KindInt:
		sb.WriteString("(integer) ")
		sb.WriteString(strconv.FormatInt(r.Int, 10))
	case KindBigNumber:
		sb.WriteString("(big number) ")
		sb.WriteString(r.Str)
	case KindBulk:
		sb.WriteString(strconv.Quote(r.Str))
	case KindNull:
		sb.WriteString("(nil)")
	case KindDouble:
		sb.WriteString("(double) ")
		sb.WriteString(strconv.FormatFloat(r.Float, 'g', -1, 64))
	case KindArray:
		if len(r.Array) == 0 {
			sb.WriteString("(empty array)")
			return
		}
		width := len(strconv.Itoa(len(r.Array)))
		for i, elem := range r.Array {
			if i > 0 {
				sb.WriteByte('\n')
				sb.WriteString(indent)
			}
			n := strconv.Itoa(i + 1)
			sb.WriteString(strings.Repeat(" ", width-len(n)))
			sb.WriteString(n)
			sb.WriteString(") ")
			elem.format(sb, indent+strings.Repeat(" ", width+2))
		}
	}
}
