// Package wire holds the fixed-width byte codec helpers shared by the
// DHM packet engine and the RSA toolkit: big-endian field encoding,
// the little-endian "reversible" numeric fields embedded in RSA block
// headers, and the CRC-32 / SHA-224 / SHA-512 digesters used for
// integrity checking.
package wire

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"hash"
	"hash/crc32"
	"math"
)

// SHASize is the length in bytes of a SHA-224 digest.
const SHASize = sha256.Size224

// Sha224 returns the SHA-224 digest of data.
func Sha224(data []byte) [SHASize]byte {
	return sha256.Sum224(data)
}

// Sha512Size is the length in bytes of a SHA-512 digest.
const Sha512Size = sha512.Size

// Sha512 returns the SHA-512 digest of data.
func Sha512(data []byte) [Sha512Size]byte {
	return sha512.Sum512(data)
}

// crcTable is the standard reflected zlib/PNG polynomial table
// (0xEDB88320), identical to the widely published constant this
// system's CRC field is contractually pinned to. hash/crc32.IEEETable
// is that same table; naming it explicitly documents the intent
// rather than leaving it an unexplained stdlib call.
var crcTable = crc32.IEEETable

// CRC32 computes the zlib/PNG-variant CRC-32 of data: init 0xFFFFFFFF,
// final XOR 0xFFFFFFFF (hash/crc32.ChecksumIEEE already applies both).
func CRC32(data []byte) uint32 {
	return crc32.Checksum(data, crcTable)
}

// NewCRC32 returns a streaming hash.Hash32 over the same table CRC32
// uses, for callers accumulating a checksum across many writes instead
// of hashing one buffer in one shot.
func NewCRC32() hash.Hash32 {
	return crc32.New(crcTable)
}

// PutUint16BE writes v into buf[0:2] big-endian.
func PutUint16BE(buf []byte, v uint16) { binary.BigEndian.PutUint16(buf, v) }

// GetUint16BE reads a big-endian uint16 from buf[0:2].
func GetUint16BE(buf []byte) uint16 { return binary.BigEndian.Uint16(buf) }

// PutUint32BE writes v into buf[0:4] big-endian.
func PutUint32BE(buf []byte, v uint32) { binary.BigEndian.PutUint32(buf, v) }

// GetUint32BE reads a big-endian uint32 from buf[0:4].
func GetUint32BE(buf []byte) uint32 { return binary.BigEndian.Uint32(buf) }

// The time/latitude/longitude fields in fileinfo_header are defined as
// "reversible": little-endian on the wire regardless of host byte
// order. Go gives us no host-endian ambiguity to begin with, so these
// simply always use binary.LittleEndian; the naming documents the
// wire contract rather than a portability workaround.

// PutInt64LE writes v into buf[0:8] little-endian.
func PutInt64LE(buf []byte, v int64) { binary.LittleEndian.PutUint64(buf, uint64(v)) }

// GetInt64LE reads a little-endian int64 from buf[0:8].
func GetInt64LE(buf []byte) int64 { return int64(binary.LittleEndian.Uint64(buf)) }

// PutFloat32LE writes v into buf[0:4] little-endian, IEEE-754 single.
func PutFloat32LE(buf []byte, v float32) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
}

// GetFloat32LE reads a little-endian IEEE-754 single from buf[0:4].
func GetFloat32LE(buf []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf))
}
