// Package mmap maps snapshot files read-only into memory.
//
// A snapshot is decoded straight out of the mapping, so loading a large
// keyspace does not first copy the whole file onto the heap:
//
//	m, err := mmap.Open("snapshot-1700000000000000000.rrb")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// Unix uses mmap(2) and madvise(2). Windows uses MapViewOfFile; Advise is a
// no-op there.
//
// Close is idempotent. Slices returned by Bytes must not be touched after
// Close returns.
package mmap
