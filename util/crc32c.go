package util

import (
	"hash/crc32"
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

const maskDelta = uint32(0xa282ead8)

func Extend(crc uint32, data []byte) uint32 {
	return crc32.Update(crc, crcTable, data)
}

func Value(data []byte) uint32 {
	return Extend(0, data)
}

// Mask returns a masked representation of crc. Computing the CRC of a string
// that contains embedded CRCs is problematic, so stored checksums are masked.
func Mask(crc uint32) uint32 {
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

func Unmask(masked uint32) uint32 {
	rot := masked - maskDelta
	return (rot >> 17) | (rot << 15)
}
