package table

import (
	"ldb"
	"ldb/util"
)

// blockBuilder generates blocks where keys are prefix-compressed:
//
// When we store a key, we drop the prefix shared with the previous string.
// Once every restartInterval keys we do not apply the prefix compression and
// store the entire key. We call this a restart point. The tail end of the
// block stores the offsets of all of the restart points, and can be used to
// do a binary search when looking for a particular key.
//
// An entry for a particular key-value pair has the form:
//
//	shared_bytes: varint32
//	unshared_bytes: varint32
//	value_length: varint32
//	key_delta: char[unshared_bytes]
//	value: char[value_length]
//
// The trailer of the block has the form:
//
//	restarts: uint32[num_restarts]
//	num_restarts: uint32
type blockBuilder struct {
	comparator      ldb.Comparator
	restartInterval int
	buffer          []byte
	restarts        []uint32
	counter         int
	lastKey         []byte
}

func newBlockBuilder(comparator ldb.Comparator, restartInterval int) *blockBuilder {
	if restartInterval < 1 {
		panic("blockBuilder: restartInterval < 1")
	}
	b := &blockBuilder{
		comparator:      comparator,
		restartInterval: restartInterval,
	}
	b.reset()
	return b
}

func (b *blockBuilder) reset() {
	b.buffer = make([]byte, 0, 4096)
	b.restarts = []uint32{0}
	b.counter = 0
	b.lastKey = b.lastKey[:0]
}

func (b *blockBuilder) currentSizeEstimate() int {
	return len(b.buffer) + len(b.restarts)*4 + 4
}

func (b *blockBuilder) empty() bool {
	return len(b.buffer) == 0
}

// finish appends the restart array and returns the encoded block. The
// builder is reset and may be reused.
func (b *blockBuilder) finish() []byte {
	for _, restart := range b.restarts {
		util.PutFixed32(&b.buffer, restart)
	}
	util.PutFixed32(&b.buffer, uint32(len(b.restarts)))
	result := b.buffer
	b.reset()
	return result
}

func (b *blockBuilder) add(key, value []byte) error {
	if len(key) == 0 {
		return util.InvalidArgumentError1("block key must not be empty")
	}
	if !b.empty() && b.comparator.Compare(key, b.lastKey) <= 0 {
		return util.InvalidArgumentError2("keys added out of order", util.EscapeString(key))
	}
	shared := 0
	if b.counter < b.restartInterval {
		minLength := len(b.lastKey)
		if minLength > len(key) {
			minLength = len(key)
		}
		for shared < minLength && b.lastKey[shared] == key[shared] {
			shared++
		}
	} else {
		b.restarts = append(b.restarts, uint32(len(b.buffer)))
		b.counter = 0
	}
	nonShared := len(key) - shared

	util.PutVarInt32(&b.buffer, uint32(shared))
	util.PutVarInt32(&b.buffer, uint32(nonShared))
	util.PutVarInt32(&b.buffer, uint32(len(value)))
	b.buffer = append(b.buffer, key[shared:]...)
	b.buffer = append(b.buffer, value...)

	b.lastKey = append(b.lastKey[:shared], key[shared:]...)
	b.counter++
	return nil
}
