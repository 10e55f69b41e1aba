// Package client is a typed client for servers that expose the R. and R64.
// bitmap commands, such as Redis with the roaring module loaded.
//
// It works with any go-redis client:
//
//	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{":6379"}})
//	c := client.New(rdb)
//	_ = c.SetIntArray(ctx, "k", 1, 2, 3)
//	n, _ := c.BitOp(ctx, client.OpOr, "dest", "k", "other")
package client

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v9"
)

// Doer sends a raw command. redis.UniversalClient implements it.
type Doer interface {
	Do(ctx context.Context, args ...interface{}) *redis.Cmd
}

// Op is a BITOP operation.
type Op string

// BITOP operations.
const (
	OpAnd   Op = "AND"
	OpOr    Op = "OR"
	OpXor   Op = "XOR"
	OpAndOr Op = "ANDOR"
	OpOne   Op = "ONE"
	OpDiff  Op = "DIFF"
	OpDiff1 Op = "DIFF1"
	OpNot   Op = "NOT"
)

// Mode selects the CONTAINS relation.
type Mode string

// CONTAINS modes.
const (
	// ModeAny reports whether the bitmaps intersect.
	ModeAny       Mode = ""
	ModeAll       Mode = "ALL"
	ModeAllStrict Mode = "ALL_STRICT"
	ModeEq        Mode = "EQ"
)

// Client issues the commands of one family. Offsets and values are
// uint64 for both families; the server rejects values above 2^32-1 for R.
type Client struct {
	rdb    Doer
	prefix string
}

// New returns a client for the 32-bit R. family.
func New(rdb Doer) *Client {
	return &Client{rdb: rdb, prefix: "R."}
}

// New64 returns a client for the 64-bit R64. family.
func New64(rdb Doer) *Client {
	return &Client{rdb: rdb, prefix: "R64."}
}

func (c *Client) do(ctx context.Context, name string, args ...interface{}) *redis.Cmd {
	return c.rdb.Do(ctx, append([]interface{}{c.prefix + name}, args...)...)
}

func keyArgs(key string, values []uint64) []interface{} {
	out := make([]interface{}, 0, len(values)+1)
	out = append(out, key)
	for _, v := range values {
		out = append(out, strconv.FormatUint(v, 10))
	}
	return out
}

func bit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// nilAsZero maps the null reply to the zero value.
func nilAsZero[T any](v T, err error) (T, error) {
	if errors.Is(err, redis.Nil) {
		var zero T
		return zero, nil
	}
	return v, err
}

// SetBit sets or clears offset and returns its previous value.
func (c *Client) SetBit(ctx context.Context, key string, offset uint64, value bool) (bool, error) {
	return c.do(ctx, "SETBIT", key, strconv.FormatUint(offset, 10), bit(value)).Bool()
}

// GetBit reports whether offset is set.
func (c *Client) GetBit(ctx context.Context, key string, offset uint64) (bool, error) {
	return c.do(ctx, "GETBIT", key, strconv.FormatUint(offset, 10)).Bool()
}

// GetBits reports for each offset whether it is set.
func (c *Client) GetBits(ctx context.Context, key string, offsets ...uint64) ([]bool, error) {
	return c.do(ctx, "GETBITS", keyArgs(key, offsets)...).BoolSlice()
}

// ClearBits clears offsets.
func (c *Client) ClearBits(ctx context.Context, key string, offsets ...uint64) error {
	_, err := nilAsZero(c.do(ctx, "CLEARBITS", keyArgs(key, offsets)...).Result())
	return err
}

// ClearBitsCount clears offsets and returns how many were set.
func (c *Client) ClearBitsCount(ctx context.Context, key string, offsets ...uint64) (uint64, error) {
	args := append(keyArgs(key, offsets), "COUNT")
	return nilAsZero(c.do(ctx, "CLEARBITS", args...).Uint64())
}

// SetIntArray replaces the content of key with values.
func (c *Client) SetIntArray(ctx context.Context, key string, values ...uint64) error {
	return c.do(ctx, "SETINTARRAY", keyArgs(key, values)...).Err()
}

// GetIntArray returns the members of key in ascending order.
func (c *Client) GetIntArray(ctx context.Context, key string) ([]uint64, error) {
	return c.do(ctx, "GETINTARRAY", key).Uint64Slice()
}

// RangeIntArray returns the members with ranks start through end.
func (c *Client) RangeIntArray(ctx context.Context, key string, start, end uint64) ([]uint64, error) {
	return c.do(ctx, "RANGEINTARRAY", key, strconv.FormatUint(start, 10), strconv.FormatUint(end, 10)).Uint64Slice()
}

// AppendIntArray adds values to key.
func (c *Client) AppendIntArray(ctx context.Context, key string, values ...uint64) error {
	return c.do(ctx, "APPENDINTARRAY", keyArgs(key, values)...).Err()
}

// DeleteIntArray removes values from key.
func (c *Client) DeleteIntArray(ctx context.Context, key string, values ...uint64) error {
	return c.do(ctx, "DELETEINTARRAY", keyArgs(key, values)...).Err()
}

// Diff stores decreasing minus deductible in dest.
func (c *Client) Diff(ctx context.Context, dest, decreasing, deductible string) error {
	return c.do(ctx, "DIFF", dest, decreasing, deductible).Err()
}

// SetFull fills key with every value of the family.
func (c *Client) SetFull(ctx context.Context, key string) error {
	return c.do(ctx, "SETFULL", key).Err()
}

// SetRange adds [start, end) to key.
func (c *Client) SetRange(ctx context.Context, key string, start, end uint64) error {
	return c.do(ctx, "SETRANGE", key, strconv.FormatUint(start, 10), strconv.FormatUint(end, 10)).Err()
}

// SetBitArray replaces key with the offsets of the '1' characters in bits.
func (c *Client) SetBitArray(ctx context.Context, key, bits string) error {
	return c.do(ctx, "SETBITARRAY", key, bits).Err()
}

// GetBitArray returns key as a string of '0' and '1' up to its maximum.
func (c *Client) GetBitArray(ctx context.Context, key string) (string, error) {
	return c.do(ctx, "GETBITARRAY", key).Text()
}

// BitOp computes op over keys into dest and returns the cardinality of
// dest.
func (c *Client) BitOp(ctx context.Context, op Op, dest string, keys ...string) (uint64, error) {
	args := make([]interface{}, 0, len(keys)+2)
	args = append(args, string(op), dest)
	for _, k := range keys {
		args = append(args, k)
	}
	return c.do(ctx, "BITOP", args...).Uint64()
}

// BitNot stores the complement of src within [0, max(last, max(src))] in
// dest. last < 0 omits the bound.
func (c *Client) BitNot(ctx context.Context, dest, src string, last int64) (uint64, error) {
	args := []interface{}{string(OpNot), dest, src}
	if last >= 0 {
		args = append(args, strconv.FormatInt(last, 10))
	}
	return c.do(ctx, "BITOP", args...).Uint64()
}

// BitCount returns the cardinality of key.
func (c *Client) BitCount(ctx context.Context, key string) (uint64, error) {
	return c.do(ctx, "BITCOUNT", key).Uint64()
}

// BitPos returns the first offset whose bit equals value, or -1.
func (c *Client) BitPos(ctx context.Context, key string, value bool) (int64, error) {
	return c.do(ctx, "BITPOS", key, bit(value)).Int64()
}

// Min returns the smallest member. ok is false for an empty or missing key.
func (c *Client) Min(ctx context.Context, key string) (v uint64, ok bool, err error) {
	return extreme(c.do(ctx, "MIN", key))
}

// Max returns the largest member. ok is false for an empty or missing key.
func (c *Client) Max(ctx context.Context, key string) (v uint64, ok bool, err error) {
	return extreme(c.do(ctx, "MAX", key))
}

func extreme(cmd *redis.Cmd) (uint64, bool, error) {
	if n, err := cmd.Int64(); err == nil && n == -1 {
		return 0, false, nil
	}
	v, err := cmd.Uint64()
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// Clear empties key and returns how many members it had.
func (c *Client) Clear(ctx context.Context, key string) (uint64, error) {
	return nilAsZero(c.do(ctx, "CLEAR", key).Uint64())
}

// Contains relates key1 to key2 according to mode.
func (c *Client) Contains(ctx context.Context, key1, key2 string, mode Mode) (bool, error) {
	args := []interface{}{key1, key2}
	if mode != ModeAny {
		args = append(args, string(mode))
	}
	return c.do(ctx, "CONTAINS", args...).Bool()
}

// Jaccard returns the Jaccard index of key1 and key2, or -1 when both are
// empty.
func (c *Client) Jaccard(ctx context.Context, key1, key2 string) (float64, error) {
	return c.do(ctx, "JACCARD", key1, key2).Float64()
}

// Optimize run-length encodes key where that saves space.
func (c *Client) Optimize(ctx context.Context, key string) error {
	return c.do(ctx, "OPTIMIZE", key).Err()
}

// Stat returns the container statistics of key as text, or as JSON when
// asJSON is set.
func (c *Client) Stat(ctx context.Context, key string, asJSON bool) (string, error) {
	args := []interface{}{key}
	if asJSON {
		args = append(args, "JSON")
	}
	s, err := c.do(ctx, "STAT", args...).Text()
	return strings.TrimPrefix(s, "txt:"), err
}
