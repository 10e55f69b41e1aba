package command

import (
	"fmt"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/reroaring/internal/keyspace"
)

// DefaultRewriteChunk is the number of values per APPENDINTARRAY line
// emitted by Rewrite.
const DefaultRewriteChunk = 512

// Rewrite emits the shortest command stream that rebuilds s from any prior
// state: FLUSHALL, then per key SETRANGE key 0 0 followed by APPENDINTARRAY
// lines of at most chunk values. The caller must hold s.LockAll.
func Rewrite(s *keyspace.Store, chunk int, emit func(args ...string) error) error {
	if chunk <= 0 {
		chunk = DefaultRewriteChunk
	}
	if err := emit("FLUSHALL"); err != nil {
		return err
	}

	var err error
	s.Range(func(key string, v any) bool {
		switch b := v.(type) {
		case *roaring.Bitmap:
			err = rewriteKey[uint32](Prefix32, key, b.Iterator(), chunk, emit)
		case *roaring64.Bitmap:
			err = rewriteKey[uint64](Prefix64, key, b.Iterator(), chunk, emit)
		default:
			err = fmt.Errorf("rewrite: key %q holds unsupported value %T", key, v)
		}
		return err == nil
	})
	return err
}

type iterator[T uint32 | uint64] interface {
	HasNext() bool
	Next() T
}

func rewriteKey[T uint32 | uint64](prefix, key string, it iterator[T], chunk int, emit func(args ...string) error) error {
	if err := emit(prefix+"SETRANGE", key, "0", "0"); err != nil {
		return err
	}
	args := make([]string, 0, chunk+2)
	args = append(args, prefix+"APPENDINTARRAY", key)
	for it.HasNext() {
		args = append(args, strconv.FormatUint(uint64(it.Next()), 10))
		if len(args)-2 == chunk {
			if err := emit(args...); err != nil {
				return err
			}
			args = args[:2]
		}
	}
	if len(args) > 2 {
		return emit(args...)
	}
	return nil
}
