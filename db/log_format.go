package db

// Log files are a sequence of 32KiB blocks. Each block holds physical
// records of the form:
//
//	checksum: uint32 // masked crc32c of type and data
//	length: uint16
//	type: uint8 // one of fullType, firstType, middleType, lastType
//	data: uint8[length]
//
// A tail of fewer than headerSize bytes is zero-filled and skipped.
type recordType uint8

const (
	// zeroType is reserved for preallocated files.
	zeroType recordType = iota
	fullType

	// Fragments of records that span blocks.
	firstType
	middleType
	lastType
)

const maxRecordType = lastType

const blockSize = 32768

// headerSize is checksum (4 bytes), length (2 bytes) and type (1 byte).
const headerSize = 4 + 2 + 1
