package client

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDoer records commands and answers with canned replies.
type fakeDoer struct {
	calls [][]interface{}
	val   interface{}
	err   error
}

func (f *fakeDoer) Do(ctx context.Context, args ...interface{}) *redis.Cmd {
	f.calls = append(f.calls, args)
	cmd := redis.NewCmd(ctx, args...)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(f.val)
	}
	return cmd
}

func (f *fakeDoer) last() []interface{} { return f.calls[len(f.calls)-1] }

func TestCommandsAndReplies(t *testing.T) {
	ctx := context.Background()
	d := &fakeDoer{}
	c := New(d)

	d.val = int64(0)
	old, err := c.SetBit(ctx, "k", 7, true)
	require.NoError(t, err)
	assert.False(t, old)
	assert.Equal(t, []interface{}{"R.SETBIT", "k", "7", "1"}, d.last())

	d.val = "OK"
	require.NoError(t, c.SetIntArray(ctx, "k", 1, 2, 3))
	assert.Equal(t, []interface{}{"R.SETINTARRAY", "k", "1", "2", "3"}, d.last())

	d.val = []interface{}{int64(1), int64(2), int64(3)}
	vals, err := c.GetIntArray(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, vals)

	d.val = []interface{}{int64(1), int64(0)}
	bits, err := c.GetBits(ctx, "k", 1, 9)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, bits)

	d.val = int64(4)
	n, err := c.BitOp(ctx, OpOr, "dest", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)
	assert.Equal(t, []interface{}{"R.BITOP", "OR", "dest", "a", "b"}, d.last())

	_, err = c.BitNot(ctx, "dest", "src", -1)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"R.BITOP", "NOT", "dest", "src"}, d.last())
	_, err = c.BitNot(ctx, "dest", "src", 100)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"R.BITOP", "NOT", "dest", "src", "100"}, d.last())

	d.val = int64(1)
	ok, err := c.Contains(ctx, "a", "b", ModeAllStrict)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []interface{}{"R.CONTAINS", "a", "b", "ALL_STRICT"}, d.last())
	_, err = c.Contains(ctx, "a", "b", ModeAny)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"R.CONTAINS", "a", "b"}, d.last())

	d.val = "0.5"
	j, err := c.Jaccard(ctx, "a", "b")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, j, 1e-9)

	d.val = "txt:cardinality: 3\n"
	st, err := c.Stat(ctx, "k", false)
	require.NoError(t, err)
	assert.Equal(t, "cardinality: 3\n", st)
	_, err = c.Stat(ctx, "k", true)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"R.STAT", "k", "JSON"}, d.last())
}

func TestMinMax(t *testing.T) {
	ctx := context.Background()
	d := &fakeDoer{val: int64(-1)}
	c := New64(d)

	_, ok, err := c.Min(ctx, "empty")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []interface{}{"R64.MIN", "empty"}, d.last())

	d.val = int64(42)
	v, ok, err := c.Max(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), v)
}

func TestNullReplies(t *testing.T) {
	ctx := context.Background()
	d := &fakeDoer{err: redis.Nil}
	c := New(d)

	n, err := c.Clear(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, c.ClearBits(ctx, "missing", 1))
	n, err = c.ClearBitsCount(ctx, "missing", 1, 2)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []interface{}{"R.CLEARBITS", "missing", "1", "2", "COUNT"}, d.last())
}

func TestErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	wrongType := errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	c := New(&fakeDoer{err: wrongType})

	_, err := c.BitCount(ctx, "k")
	assert.ErrorIs(t, err, wrongType)
	assert.ErrorIs(t, c.SetFull(ctx, "k"), wrongType)
	_, err = c.GetIntArray(ctx, "k")
	assert.ErrorIs(t, err, wrongType)
}
