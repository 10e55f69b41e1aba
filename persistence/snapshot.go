package persistence

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/reroaring/internal/bitmap"
	"github.com/hupe1980/reroaring/internal/keyspace"
)

// Record is one serialized key.
type Record struct {
	Key  string
	Kind keyspace.Kind
	// Data is the portable roaring serialization of the bitmap.
	Data []byte
}

// Snapshot is a serialized keyspace.
type Snapshot struct {
	Header  Header
	Records []Record
}

// Size returns the bytes held by the serialized records.
func (sn *Snapshot) Size() int64 {
	var n int64
	for i := range sn.Records {
		n += int64(len(sn.Records[i].Key) + len(sn.Records[i].Data))
	}
	return n
}

// EstimateSize returns the serialized size of every bitmap in s. The caller
// must hold s.LockAll.
func EstimateSize(s *keyspace.Store) int64 {
	var n int64
	s.Range(func(key string, v any) bool {
		n += int64(len(key))
		switch b := v.(type) {
		case *roaring.Bitmap:
			n += int64(b.GetSerializedSizeInBytes()) //nolint:gosec
		case *roaring64.Bitmap:
			n += int64(b.GetSerializedSizeInBytes()) //nolint:gosec
		}
		return true
	})
	return n
}

// Capture serializes every key of s with up to concurrency goroutines
// (GOMAXPROCS when <= 0). The caller must hold s.LockAll; the snapshot does
// not share memory with s once Capture returns.
func Capture(ctx context.Context, s *keyspace.Store, concurrency int) (*Snapshot, error) {
	type item struct {
		key string
		v   any
	}
	var items []item
	s.Range(func(key string, v any) bool {
		items = append(items, item{key, v})
		return true
	})

	records := make([]Record, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit(concurrency))
	for i, it := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var (
				data []byte
				err  error
			)
			switch b := it.v.(type) {
			case *roaring.Bitmap:
				data, err = bitmap.R32().Marshal(b)
			case *roaring64.Bitmap:
				data, err = bitmap.R64().Marshal(b)
			default:
				err = fmt.Errorf("persistence: key %q holds unsupported value %T", it.key, it.v)
			}
			if err != nil {
				return err
			}
			if len(data) > math.MaxUint32 {
				return fmt.Errorf("persistence: key %q: bitmap too large to snapshot", it.key)
			}
			records[i] = Record{Key: it.key, Kind: keyspace.KindOf(it.v), Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Snapshot{
		Header:  Header{Version: Version, KeyCount: uint64(len(records))},
		Records: records,
	}, nil
}

// Restore decodes the records with up to concurrency goroutines and, only
// if every record decodes, replaces the content of s with them. The caller
// must hold s.LockAll(true).
func (sn *Snapshot) Restore(ctx context.Context, s *keyspace.Store, concurrency int) error {
	values := make([]any, len(sn.Records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit(concurrency))
	for i := range sn.Records {
		rec := &sn.Records[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var (
				v   any
				err error
			)
			switch rec.Kind {
			case keyspace.Kind32:
				v, err = bitmap.R32().Unmarshal(rec.Data)
			case keyspace.Kind64:
				v, err = bitmap.R64().Unmarshal(rec.Data)
			default:
				err = fmt.Errorf("%w: key %q has kind %d", ErrCorrupt, rec.Key, rec.Kind)
			}
			if err != nil {
				return fmt.Errorf("persistence: restore %q: %w", rec.Key, err)
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.Flush()
	for i := range sn.Records {
		s.Set(sn.Records[i].Key, values[i])
	}
	return nil
}

func limit(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}
