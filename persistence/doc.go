// Package persistence writes and reads keyspace snapshots.
//
// A snapshot file is laid out as
//
//	header   48 bytes: magic "RRB1", version, compression, run ID,
//	         creation time, key count, block size
//	frames   [raw size u32][stored size u32][data], ended by a zero frame
//	trailer  CRC32 (IEEE) of everything before it
//
// Frames hold whole records, [kind u8][key len uvarint][key][blob len
// uvarint][portable roaring bytes], and are compressed independently with
// LZ4 or ZSTD. A frame whose compressed form does not save at least a tenth
// of its size is stored raw.
//
// Capture serializes every bitmap of a keyspace in parallel while the caller
// holds the keyspace read locks; Encode and Decode move a Snapshot to and
// from a byte stream; Manager names, stores, lists and prunes snapshots in a
// blobstore.Store.
package persistence
