package table

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"

	"ldb"
	"ldb/util"
)

// MaxBlockHandleEncodedLength is the maximum encoding length of a BlockHandle.
const MaxBlockHandleEncodedLength = 10 + 10

// BlockHandle is a pointer to the extent of a file that stores a data block
// or a meta block. Size excludes the block trailer.
type BlockHandle struct {
	Offset uint64
	Size   uint64
}

func (h BlockHandle) EncodeTo(dst *[]byte) {
	util.PutVarInt64(dst, h.Offset)
	util.PutVarInt64(dst, h.Size)
}

func (h BlockHandle) Encode() []byte {
	dst := make([]byte, 0, MaxBlockHandleEncodedLength)
	h.EncodeTo(&dst)
	return dst
}

func (h *BlockHandle) DecodeFrom(input *[]byte) error {
	if util.GetVarInt64(input, &h.Offset) && util.GetVarInt64(input, &h.Size) {
		return nil
	}
	return util.CorruptionError1("bad block handle")
}

func DecodeBlockHandle(b []byte) (BlockHandle, error) {
	var h BlockHandle
	err := h.DecodeFrom(&b)
	return h, err
}

// FooterEncodedLength is two padded handles followed by the magic number.
const FooterEncodedLength = 2*MaxBlockHandleEncodedLength + 8

const TableMagicNumber = uint64(0xdb4775248b80fb57)

// BlockTrailerSize is the 1-byte compression type plus a 4-byte masked
// CRC32C of the stored block and type byte.
const BlockTrailerSize = 5

// Footer encapsulates the fixed information stored at the tail end of every
// table file.
type Footer struct {
	MetaIndexHandle BlockHandle
	IndexHandle     BlockHandle
}

func (f *Footer) EncodeTo(dst *[]byte) {
	originalSize := len(*dst)
	f.MetaIndexHandle.EncodeTo(dst)
	f.IndexHandle.EncodeTo(dst)
	// Padding
	*dst = append(*dst, make([]byte, originalSize+2*MaxBlockHandleEncodedLength-len(*dst))...)
	util.PutFixed64(dst, TableMagicNumber)
}

func (f *Footer) DecodeFrom(input []byte) error {
	if len(input) < FooterEncodedLength {
		return util.CorruptionError1("footer is too short")
	}
	input = input[len(input)-FooterEncodedLength:]
	magic := util.DecodeFixed64(input[FooterEncodedLength-8:])
	if magic != TableMagicNumber {
		return util.CorruptionError1("not an sstable (bad magic number)")
	}
	handles := input[:FooterEncodedLength-8]
	if err := f.MetaIndexHandle.DecodeFrom(&handles); err != nil {
		return err
	}
	return f.IndexHandle.DecodeFrom(&handles)
}

type blockContents struct {
	data []byte
	// cachable is false when data is a view into the file mapping, which
	// must not outlive the table.
	cachable bool
}

// readBlock reads the block identified by handle, verifying its checksum if
// asked to and decompressing it.
func readBlock(file ldb.RandomAccessFile, verifyChecksums bool, handle BlockHandle) (*blockContents, error) {
	n := int(handle.Size)
	contents, err := file.Read(int64(handle.Offset), n+BlockTrailerSize)
	if err != nil {
		return nil, util.CorruptionError2("truncated block read", err.Error())
	}
	if verifyChecksums {
		crc := util.Unmask(util.DecodeFixed32(contents[n+1:]))
		actual := util.Value(contents[:n+1])
		if crc != actual {
			return nil, util.CorruptionError1("block checksum mismatch")
		}
	}
	data := contents[:n]
	switch t := ldb.CompressionType(contents[n]); t {
	case ldb.NoCompression:
		return &blockContents{data: data, cachable: false}, nil
	case ldb.SnappyCompression:
		return nil, util.NotSupportedError1("snappy compressed blocks are not supported")
	case ldb.ZlibCompression:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, util.CorruptionError2("corrupted compressed block contents", err.Error())
		}
		defer r.Close()
		return inflate(r)
	default:
		r := flate.NewReader(bytes.NewReader(data))
		defer r.Close()
		return inflate(r)
	}
}

func inflate(r io.Reader) (*blockContents, error) {
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, util.CorruptionError2("corrupted compressed block contents", err.Error())
	}
	return &blockContents{data: out, cachable: true}, nil
}

// compressBlock returns the stored form of raw under t. It falls back to no
// compression when that saves less than 12.5%.
func compressBlock(raw []byte, t ldb.CompressionType) ([]byte, ldb.CompressionType, error) {
	var buf bytes.Buffer
	switch t {
	case ldb.NoCompression:
		return raw, ldb.NoCompression, nil
	case ldb.SnappyCompression:
		return nil, t, util.NotSupportedError1("snappy compression is not supported for writing")
	case ldb.ZlibCompression:
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, t, err
		}
		if err := w.Close(); err != nil {
			return nil, t, err
		}
	default:
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, t, err
		}
		if _, err := w.Write(raw); err != nil {
			return nil, t, err
		}
		if err := w.Close(); err != nil {
			return nil, t, err
		}
	}
	if buf.Len() >= len(raw)-len(raw)/8 {
		return raw, ldb.NoCompression, nil
	}
	return buf.Bytes(), t, nil
}
