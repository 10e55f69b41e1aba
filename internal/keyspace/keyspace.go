// Package keyspace holds the bitmaps stored under string keys.
//
// Keys are spread over shards by murmur3 hash. Callers lock the shards of
// every key a command touches before reading or writing them, shared for
// read-only commands and exclusive for writes. Shards are always locked in
// ascending order so concurrent multi-key commands cannot deadlock.
package keyspace

import (
	"errors"
	"path"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/twmb/murmur3"
)

// ErrWrongType is returned when a key holds a value of another kind.
var ErrWrongType = errors.New("keyspace: wrong value type")

// Kind identifies the value type stored under a key.
type Kind uint8

const (
	// KindNone marks a missing key.
	KindNone Kind = iota
	// Kind32 is a 32-bit roaring bitmap.
	Kind32
	// Kind64 is a 64-bit roaring bitmap.
	Kind64
)

// String returns the type name reported by TYPE.
func (k Kind) String() string {
	switch k {
	case Kind32:
		return "reroaring"
	case Kind64:
		return "roaring64"
	default:
		return "none"
	}
}

// KindOf returns the kind of v.
func KindOf(v any) Kind {
	switch v.(type) {
	case *roaring.Bitmap:
		return Kind32
	case *roaring64.Bitmap:
		return Kind64
	default:
		return KindNone
	}
}

// DefaultShards is the shard count used when New is given zero.
const DefaultShards = 64

type shard struct {
	mu sync.RWMutex
	m  map[string]any
}

// Store maps keys to bitmaps.
type Store struct {
	shards []*shard
}

// New creates a store with n shards.
func New(n int) *Store {
	if n <= 0 {
		n = DefaultShards
	}
	s := &Store{shards: make([]*shard, n)}
	for i := range s.shards {
		s.shards[i] = &shard{m: make(map[string]any)}
	}
	return s
}

// Shards returns the number of shards.
func (s *Store) Shards() int { return len(s.shards) }

// ShardOf returns the shard index of key.
func (s *Store) ShardOf(key string) int {
	return int(murmur3.Sum32([]byte(key)) % uint32(len(s.shards))) //nolint:gosec // shard count fits uint32
}

// Lock locks the shards holding keys and returns the matching unlock
// function. write selects exclusive locks.
func (s *Store) Lock(keys []string, write bool) (unlock func()) {
	idx := make([]int, 0, len(keys))
	seen := make(map[int]struct{}, len(keys))
	for _, k := range keys {
		i := s.ShardOf(k)
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return s.lockShards(idx, write)
}

// LockAll locks every shard.
func (s *Store) LockAll(write bool) (unlock func()) {
	idx := make([]int, len(s.shards))
	for i := range idx {
		idx[i] = i
	}
	return s.lockShards(idx, write)
}

func (s *Store) lockShards(idx []int, write bool) func() {
	for _, i := range idx {
		if write {
			s.shards[i].mu.Lock()
		} else {
			s.shards[i].mu.RLock()
		}
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			if write {
				s.shards[idx[j]].mu.Unlock()
			} else {
				s.shards[idx[j]].mu.RUnlock()
			}
		}
	}
}

// The accessors below assume the caller holds the lock of the key's shard.

// Get returns the raw value under key.
func (s *Store) Get(key string) (any, bool) {
	v, ok := s.shards[s.ShardOf(key)].m[key]
	return v, ok
}

// Set stores v under key, replacing any previous value.
func (s *Store) Set(key string, v any) {
	s.shards[s.ShardOf(key)].m[key] = v
}

// Delete removes key and reports whether it existed.
func (s *Store) Delete(key string) bool {
	sh := s.shards[s.ShardOf(key)]
	if _, ok := sh.m[key]; !ok {
		return false
	}
	delete(sh.m, key)
	return true
}

// Kind returns the kind of the value under key.
func (s *Store) Kind(key string) Kind {
	v, ok := s.Get(key)
	if !ok {
		return KindNone
	}
	return KindOf(v)
}

// Lookup returns the bitmap of type B under key. A missing key reports
// ok == false; a key holding another kind returns ErrWrongType.
func Lookup[B any](s *Store, key string) (b B, ok bool, err error) {
	v, found := s.Get(key)
	if !found {
		return b, false, nil
	}
	b, ok = v.(B)
	if !ok {
		return b, false, ErrWrongType
	}
	return b, true, nil
}

// The methods below assume the caller holds LockAll.

// Len returns the number of keys.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		n += len(sh.m)
	}
	return n
}

// Range calls fn for every key in ascending key order until fn returns
// false.
func (s *Store) Range(fn func(key string, v any) bool) {
	for _, k := range s.Keys("*") {
		v, _ := s.Get(k)
		if !fn(k, v) {
			return
		}
	}
}

// Keys returns the keys matching a glob pattern in ascending order.
// A malformed pattern matches nothing.
func (s *Store) Keys(pattern string) []string {
	var out []string
	for _, sh := range s.shards {
		for k := range sh.m {
			if pattern == "*" {
				out = append(out, k)
				continue
			}
			if ok, err := path.Match(pattern, k); err == nil && ok {
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Flush removes every key.
func (s *Store) Flush() {
	for _, sh := range s.shards {
		clear(sh.m)
	}
}
