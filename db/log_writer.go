package db

import (
	"ldb"
	"ldb/util"
)

type logWriter struct {
	dest        ldb.WritableFile
	blockOffset int
	// crc32c values for all supported record types, pre-computed to reduce
	// the overhead of computing the crc of the type stored in the header.
	typeCrc [maxRecordType + 1]uint32
}

func newLogWriter(dest ldb.WritableFile) *logWriter {
	return newLogWriterWithLength(dest, 0)
}

// newLogWriterWithLength returns a writer that appends to dest, which
// already holds length bytes of log data.
func newLogWriterWithLength(dest ldb.WritableFile, length uint64) *logWriter {
	w := &logWriter{
		dest:        dest,
		blockOffset: int(length % blockSize),
	}
	t := make([]byte, 1)
	for i := range w.typeCrc {
		t[0] = byte(i)
		w.typeCrc[i] = util.Value(t)
	}
	return w
}

var trailerPadding [headerSize - 1]byte

// addRecord fragments data into physical records. An empty record is still
// written as one zero-length fullType record.
func (w *logWriter) addRecord(data []byte) error {
	left := len(data)
	begin := true
	for {
		leftover := blockSize - w.blockOffset
		if leftover < headerSize {
			// Switch to a new block, filling the trailer with zeroes.
			if leftover > 0 {
				if err := w.dest.Append(trailerPadding[:leftover]); err != nil {
					return err
				}
			}
			w.blockOffset = 0
		}

		// Invariant: we never leave less than headerSize bytes in a block.
		avail := blockSize - w.blockOffset - headerSize
		fragmentLength := left
		if fragmentLength > avail {
			fragmentLength = avail
		}
		end := left == fragmentLength
		var t recordType
		switch {
		case begin && end:
			t = fullType
		case begin:
			t = firstType
		case end:
			t = lastType
		default:
			t = middleType
		}
		start := len(data) - left
		if err := w.emitPhysicalRecord(t, data[start:start+fragmentLength]); err != nil {
			return err
		}
		left -= fragmentLength
		begin = false
		if end {
			return nil
		}
	}
}

func (w *logWriter) emitPhysicalRecord(t recordType, data []byte) error {
	if len(data) > 0xffff {
		panic("logWriter: fragment does not fit in two bytes")
	}
	if w.blockOffset+headerSize+len(data) > blockSize {
		panic("logWriter: fragment overflows block")
	}
	var buf [headerSize]byte
	buf[4] = byte(len(data))
	buf[5] = byte(len(data) >> 8)
	buf[6] = byte(t)
	crc := util.Mask(util.Extend(w.typeCrc[t], data))
	util.EncodeFixed32(buf[:], crc)

	err := w.dest.Append(buf[:])
	if err == nil {
		if err = w.dest.Append(data); err == nil {
			err = w.dest.Flush()
		}
	}
	w.blockOffset += headerSize + len(data)
	return err
}
