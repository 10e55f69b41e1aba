// Package s3 stores snapshots in Amazon S3.
//
//	store, err := s3.New(ctx, "my-bucket", "reroaring/prod/")
//	if err != nil { ... }
//	db, err := reroaring.Open(reroaring.WithSnapshotStore(store))
//
// Reads are ranged GETs. Streaming writes go through the SDK upload manager,
// which switches to a multipart upload once a snapshot exceeds one part.
// Whole-blob writes carry a CRC32C checksum that S3 verifies on receipt.
package s3
