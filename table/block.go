package table

import (
	"ldb"
	"ldb/util"
)

type block struct {
	data          []byte
	restartOffset int
	numRestarts   int
	malformed     bool
}

func newBlock(data []byte) *block {
	b := &block{data: data}
	if len(data) < 4 {
		b.malformed = true
		return b
	}
	maxRestartsAllowed := (len(data) - 4) / 4
	numRestarts := int(util.DecodeFixed32(data[len(data)-4:]))
	if numRestarts > maxRestartsAllowed {
		b.malformed = true
		return b
	}
	b.numRestarts = numRestarts
	b.restartOffset = len(data) - (1+numRestarts)*4
	return b
}

func (b *block) size() int {
	return len(b.data)
}

func (b *block) newIterator(comparator ldb.Comparator) ldb.Iterator {
	if b.malformed {
		return NewErrorIterator(util.CorruptionError1("bad block contents"))
	}
	if b.numRestarts == 0 {
		return NewEmptyIterator()
	}
	return newBlockIterator(comparator, b.data, b.restartOffset, b.numRestarts)
}

// decodeEntry decodes the entry header at the front of data and returns the
// header length, or -1 if the entry does not fit in data.
func decodeEntry(data []byte) (shared, nonShared, valueLength uint32, n int) {
	if len(data) < 3 {
		return 0, 0, 0, -1
	}
	shared, nonShared, valueLength = uint32(data[0]), uint32(data[1]), uint32(data[2])
	if shared|nonShared|valueLength < 128 {
		n = 3
	} else {
		p := util.GetVarInt32Ptr(data, &shared)
		if p == -1 {
			return 0, 0, 0, -1
		}
		n = p
		if p = util.GetVarInt32Ptr(data[n:], &nonShared); p == -1 {
			return 0, 0, 0, -1
		}
		n += p
		if p = util.GetVarInt32Ptr(data[n:], &valueLength); p == -1 {
			return 0, 0, 0, -1
		}
		n += p
	}
	if uint64(len(data)-n) < uint64(nonShared)+uint64(valueLength) {
		return 0, 0, 0, -1
	}
	return shared, nonShared, valueLength, n
}

// blockIterator walks the entries of one block. It serves both sequential
// enumeration and restart-point binary search.
type blockIterator struct {
	CleanUpIterator
	comparator   ldb.Comparator
	data         []byte
	restarts     int // offset of the restart array
	numRestarts  int
	current      int // offset of the current entry, restarts if invalid
	nextOffset   int
	restartIndex int
	key          []byte
	value        []byte
	err          error
}

func newBlockIterator(comparator ldb.Comparator, data []byte, restarts int, numRestarts int) *blockIterator {
	return &blockIterator{
		comparator:   comparator,
		data:         data,
		restarts:     restarts,
		numRestarts:  numRestarts,
		current:      restarts,
		nextOffset:   restarts,
		restartIndex: numRestarts,
	}
}

func (i *blockIterator) getRestartPoint(index int) int {
	return int(util.DecodeFixed32(i.data[i.restarts+index*4:]))
}

func (i *blockIterator) seekToRestartPoint(index int) {
	i.key = i.key[:0]
	i.restartIndex = index
	i.nextOffset = i.getRestartPoint(index)
}

func (i *blockIterator) IsValid() bool {
	return i.current < i.restarts
}

func (i *blockIterator) GetStatus() error {
	return i.err
}

func (i *blockIterator) GetKey() []byte {
	if !i.IsValid() {
		panic("blockIterator: not valid")
	}
	return i.key
}

func (i *blockIterator) GetValue() []byte {
	if !i.IsValid() {
		panic("blockIterator: not valid")
	}
	return i.value
}

func (i *blockIterator) Next() {
	if !i.IsValid() {
		panic("blockIterator: not valid")
	}
	i.parseNextKey()
}

func (i *blockIterator) Prev() {
	if !i.IsValid() {
		panic("blockIterator: not valid")
	}
	// Scan backwards to a restart point before current.
	original := i.current
	for i.getRestartPoint(i.restartIndex) >= original {
		if i.restartIndex == 0 {
			i.markInvalid()
			return
		}
		i.restartIndex--
	}
	i.seekToRestartPoint(i.restartIndex)
	for i.parseNextKey() && i.nextOffset < original {
	}
}

func (i *blockIterator) Seek(target []byte) {
	// Binary search in restart array to find the last restart point with a
	// key < target.
	left, right := 0, i.numRestarts-1
	for left < right {
		mid := (left + right + 1) / 2
		regionOffset := i.getRestartPoint(mid)
		if regionOffset >= i.restarts {
			i.corruptionError()
			return
		}
		shared, nonShared, _, n := decodeEntry(i.data[regionOffset:i.restarts])
		if n == -1 || shared != 0 {
			i.corruptionError()
			return
		}
		start := regionOffset + n
		if i.comparator.Compare(i.data[start:start+int(nonShared)], target) < 0 {
			left = mid
		} else {
			right = mid - 1
		}
	}

	// Linear search within the restart block for the first key >= target.
	i.seekToRestartPoint(left)
	for i.parseNextKey() {
		if i.comparator.Compare(i.key, target) >= 0 {
			return
		}
	}
}

func (i *blockIterator) SeekToFirst() {
	i.seekToRestartPoint(0)
	i.parseNextKey()
}

func (i *blockIterator) SeekToLast() {
	i.seekToRestartPoint(i.numRestarts - 1)
	for i.parseNextKey() && i.nextOffset < i.restarts {
	}
}

func (i *blockIterator) markInvalid() {
	i.current = i.restarts
	i.restartIndex = i.numRestarts
}

func (i *blockIterator) corruptionError() {
	i.markInvalid()
	i.err = util.CorruptionError1("bad entry in block")
	i.key = i.key[:0]
	i.value = nil
}

func (i *blockIterator) parseNextKey() bool {
	i.current = i.nextOffset
	if i.current >= i.restarts {
		i.markInvalid()
		return false
	}
	shared, nonShared, valueLength, n := decodeEntry(i.data[i.current:i.restarts])
	if n == -1 || len(i.key) < int(shared) {
		i.corruptionError()
		return false
	}
	start := i.current + n
	i.key = append(i.key[:shared], i.data[start:start+int(nonShared)]...)
	i.value = i.data[start+int(nonShared) : start+int(nonShared)+int(valueLength)]
	i.nextOffset = start + int(nonShared) + int(valueLength)
	for i.restartIndex+1 < i.numRestarts && i.getRestartPoint(i.restartIndex+1) < i.current {
		i.restartIndex++
	}
	return true
}
