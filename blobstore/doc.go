// Package blobstore stores snapshot files.
//
// A Store holds immutable, named blobs. Snapshots are written once, either
// streamed through Create or in one piece through Put, and read back through
// Open. Names are flat; List filters by prefix and returns names in
// ascending order.
//
// # Implementations
//
//   - MemoryStore: in-process map, for tests and ephemeral databases
//   - LocalStore: a directory on the local file system, read through mmap
//   - minio.Store: MinIO and other S3-compatible servers
//   - s3.Store: Amazon S3 with multipart uploads
//
// All implementations are safe for concurrent use. Missing blobs are
// reported as errors that satisfy errors.Is(err, ErrNotFound).
package blobstore
