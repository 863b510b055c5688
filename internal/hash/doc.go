// Package hash provides the CRC32-Castagnoli checksums that protect
// checkpoint parts.
//
//	sum := hash.UpdateCRC32C(hash.CRC32C(header), payload)
//
// Go's hash/crc32 uses SSE4.2 or the ARM CRC extension when available.
package hash
