// Package framing implements the shared byte-level primitives used by the
// file-transfer protocol engines: CRC-16/CRC-32 checksums, ZDLE escaping,
// and Xmodem block (de)serialization.
package framing

import "hash/crc32"

// crc16Table is the standard CCITT table for polynomial 0x1021, built once
// at init time.
var crc16Table [256]uint16

func init() {
	const poly = 0x1021
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for b := 0; b < 8; b++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		crc16Table[i] = crc
	}
}

// CRC16 computes the CRC-16/XMODEM checksum (poly 0x1021, initial 0x0000)
// used by Xmodem-CRC, Xmodem-1K, Ymodem, and Zmodem BIN16 frames.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = (crc << 8) ^ crc16Table[byte(crc>>8)^b]
	}
	return crc
}

// UpdateCRC16 folds a single byte into a running CRC-16, used by the Zmodem
// frame codec which accumulates CRC across a header and its position bytes.
func UpdateCRC16(crc uint16, b byte) uint16 {
	return (crc << 8) ^ crc16Table[byte(crc>>8)^b]
}

var crc32Table = crc32.MakeTable(crc32.IEEE)

// CRC32 computes the standard ISO/IEEE CRC-32 used by Zmodem BIN32 frames.
func CRC32(data []byte) uint32 {
	return crc32.Checksum(data, crc32Table)
}

// UpdateCRC32 folds a single byte into a running CRC-32.
func UpdateCRC32(crc uint32, b byte) uint32 {
	return crc32.Update(crc, crc32Table, []byte{b})
}

// Checksum8 computes the Xmodem checksum variant's error-detection byte:
// the sum of the payload bytes, mod 256.
func Checksum8(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}
