package db

import (
	"fmt"
	"io"
	"log"

	"ldb"
	"ldb/util"
)

// Extended record types returned by readPhysicalRecord.
const (
	eofType = maxRecordType + 1 + iota
	// badRecordType marks a physical record that was dropped: a zero-length
	// record, or a length overrunning the block.
	badRecordType
)

// reporter is told about bytes dropped while reading, such as a block with a
// bad record length or a fragment chain broken mid-way.
type reporter interface {
	corruption(bytes int, err error)
}

type logReader struct {
	file     ldb.SequentialFile
	reporter reporter
	checksum bool
	backing  []byte
	buffer   []byte
	eof      bool
	// resyncing skips fragments until the start of the next record, after
	// a dropped block.
	resyncing bool
}

// newLogReader returns a reader over file. When checksum is set, every
// physical record's crc is verified and a mismatch fails the read.
func newLogReader(file ldb.SequentialFile, reporter reporter, checksum bool) *logReader {
	return &logReader{
		file:     file,
		reporter: reporter,
		checksum: checksum,
		backing:  make([]byte, blockSize),
	}
}

// readRecord returns the next logical record, or io.EOF when the log is
// exhausted. The record is only valid until the next call.
func (r *logReader) readRecord() ([]byte, error) {
	var record []byte
	inFragmentedRecord := false
	for {
		fragment, t, err := r.readPhysicalRecord()
		if err != nil {
			return nil, err
		}
		if r.resyncing {
			if t == middleType || t == lastType {
				continue
			}
			r.resyncing = false
		}

		switch t {
		case fullType:
			if inFragmentedRecord && len(record) > 0 {
				r.reportCorruption(len(record), "partial record without end(1)")
			}
			return fragment, nil
		case firstType:
			// Writers may emit an empty firstType record at the tail end of
			// a block; only a non-empty one is left unfinished here.
			if inFragmentedRecord && len(record) > 0 {
				r.reportCorruption(len(record), "partial record without end(2)")
			}
			record = append(record[:0], fragment...)
			inFragmentedRecord = true
		case middleType:
			if !inFragmentedRecord {
				r.reportCorruption(len(fragment), "missing start of fragmented record(1)")
			} else {
				record = append(record, fragment...)
			}
		case lastType:
			if !inFragmentedRecord {
				r.reportCorruption(len(fragment), "missing start of fragmented record(2)")
			} else {
				return append(record, fragment...), nil
			}
		case eofType:
			// A writer dying between fragments leaves a partial record,
			// which is ignored.
			return nil, io.EOF
		case badRecordType:
			if inFragmentedRecord {
				r.reportCorruption(len(record), "error in middle of record")
				inFragmentedRecord = false
				record = record[:0]
			}
		default:
			dropped := len(fragment)
			if inFragmentedRecord {
				dropped += len(record)
			}
			r.reportCorruption(dropped, fmt.Sprintf("unknown record type %d", t))
			inFragmentedRecord = false
			record = record[:0]
		}
	}
}

func (r *logReader) readPhysicalRecord() ([]byte, recordType, error) {
	for {
		if len(r.buffer) < headerSize {
			if r.eof {
				// A truncated header at the end of the file is left by a
				// writer crashing mid-header and reads as the end.
				r.buffer = nil
				return nil, eofType, nil
			}
			n, err := io.ReadFull(r.file, r.backing)
			r.buffer = r.backing[:n]
			switch err {
			case nil:
			case io.EOF, io.ErrUnexpectedEOF:
				r.eof = true
			default:
				r.buffer = nil
				r.eof = true
				return nil, eofType, util.WrapIOError(err, "log")
			}
			continue
		}

		length := int(r.buffer[4]) | int(r.buffer[5])<<8
		t := recordType(r.buffer[6])
		if headerSize+length > len(r.buffer) {
			dropped := len(r.buffer)
			r.buffer = nil
			if !r.eof {
				r.reportCorruption(dropped, "bad record length")
				r.resyncing = true
				return nil, badRecordType, nil
			}
			// The writer died in the middle of writing the record.
			return nil, eofType, nil
		}

		if t == zeroType && length == 0 {
			// Preallocated space; the rest of the block holds nothing.
			r.buffer = nil
			return nil, badRecordType, nil
		}

		if r.checksum {
			expected := util.Unmask(util.DecodeFixed32(r.buffer))
			actual := util.Value(r.buffer[6 : headerSize+length])
			if expected != actual {
				r.buffer = nil
				return nil, badRecordType, util.CorruptionError1("log record checksum mismatch")
			}
		}

		fragment := r.buffer[headerSize : headerSize+length]
		r.buffer = r.buffer[headerSize+length:]
		return fragment, t, nil
	}
}

func (r *logReader) reportCorruption(bytes int, reason string) {
	if r.reporter != nil {
		r.reporter.corruption(bytes, util.CorruptionError1(reason))
	}
}

// logReporter logs dropped bytes and remembers the first drop.
type logReporter struct {
	logger  *log.Logger
	name    string
	err     error
	dropped int
}

func (r *logReporter) corruption(bytes int, err error) {
	ldb.Log(r.logger, "%s: dropping %d bytes; %v", r.name, bytes, err)
	r.dropped += bytes
	if r.err == nil {
		r.err = err
	}
}
