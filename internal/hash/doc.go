// Package hash provides the CRC32-Castagnoli checksum used by the
// append-only log and by S3 uploads.
//
// Go's hash/crc32 uses the SSE4.2 and ARMv8 CRC instructions for this
// polynomial when the CPU has them.
//
//	sum := hash.CRC32C(entry)
//
//	h := hash.NewCRC32C()
//	h.Write(part1)
//	h.Write(part2)
//	sum = h.Sum32()
package hash
