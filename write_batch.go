package ldb

import (
	"ldb/util"
)

// WriteBatchHeader is the 8-byte sequence number followed by a 4-byte count.
const WriteBatchHeader = 12

// WriteBatch holds a group of updates applied atomically.
//
//	rep :=
//	   sequence: fixed64
//	   count: fixed32
//	   data: record[count]
//	record :=
//	   TypeValue varstring varstring |
//	   TypeDeletion varstring
//	varstring :=
//	   len: varint32
//	   data: uint8[len]
type WriteBatch struct {
	rep []byte
}

func NewWriteBatch() *WriteBatch {
	wb := new(WriteBatch)
	wb.Clear()
	return wb
}

type WriteBatchHandler interface {
	Put(key, value []byte)
	Delete(key []byte)
}

func (b *WriteBatch) Put(key, value []byte) {
	b.SetCount(b.Count() + 1)
	b.rep = append(b.rep, byte(TypeValue))
	util.PutLengthPrefixedSlice(&b.rep, key)
	util.PutLengthPrefixedSlice(&b.rep, value)
}

func (b *WriteBatch) Delete(key []byte) {
	b.SetCount(b.Count() + 1)
	b.rep = append(b.rep, byte(TypeDeletion))
	util.PutLengthPrefixedSlice(&b.rep, key)
}

func (b *WriteBatch) Clear() {
	b.rep = make([]byte, WriteBatchHeader)
}

func (b *WriteBatch) ApproximateSize() int {
	return len(b.rep)
}

func (b *WriteBatch) Append(src *WriteBatch) {
	b.SetCount(b.Count() + src.Count())
	b.rep = append(b.rep, src.rep[WriteBatchHeader:]...)
}

// Iterate decodes the batch, invoking handler for each record in order.
func (b *WriteBatch) Iterate(handler WriteBatchHandler) error {
	input := b.rep
	if len(input) < WriteBatchHeader {
		return util.CorruptionError1("malformed WriteBatch (too small)")
	}
	input = input[WriteBatchHeader:]
	found := 0
	for len(input) > 0 {
		found++
		tag := ValueType(input[0])
		input = input[1:]
		var key, value []byte
		var ok bool
		switch tag {
		case TypeValue:
			if key, input, ok = util.DecodeLengthPrefixedSlice(input); ok {
				value, input, ok = util.DecodeLengthPrefixedSlice(input)
			}
			if !ok {
				return util.CorruptionError1("bad WriteBatch Put")
			}
			handler.Put(key, value)
		case TypeDeletion:
			if key, input, ok = util.DecodeLengthPrefixedSlice(input); !ok {
				return util.CorruptionError1("bad WriteBatch Delete")
			}
			handler.Delete(key)
		default:
			return util.CorruptionError1("unknown WriteBatch tag")
		}
	}
	if found != b.Count() {
		return util.CorruptionError1("WriteBatch has wrong count")
	}
	return nil
}

func (b *WriteBatch) Count() int {
	return int(util.DecodeFixed32(b.rep[8:]))
}

func (b *WriteBatch) SetCount(n int) {
	util.EncodeFixed32(b.rep[8:], uint32(n))
}

func (b *WriteBatch) Sequence() SequenceNumber {
	return SequenceNumber(util.DecodeFixed64(b.rep))
}

func (b *WriteBatch) SetSequence(seq SequenceNumber) {
	util.EncodeFixed64(b.rep, uint64(seq))
}

func (b *WriteBatch) Contents() []byte {
	return b.rep
}

// SetContents replaces the batch with a copy of an encoded batch.
func (b *WriteBatch) SetContents(contents []byte) error {
	if len(contents) < WriteBatchHeader {
		return util.CorruptionError1("malformed WriteBatch (too small)")
	}
	b.rep = append(b.rep[:0], contents...)
	return nil
}
