package table

import (
	"ldb"
	"ldb/util"
)

// A filter block is stored near the end of a table file. It contains one
// filter for every 2KiB of data block offsets, followed by the offsets of
// each filter, the offset of that array and the base lg.
const (
	filterBaseLg = 11
	filterBase   = 1 << filterBaseLg
)

type filterBlockBuilder struct {
	policy        ldb.FilterPolicy
	keys          []byte // Flattened key contents
	start         []int  // Starting index in keys of each key
	result        []byte // Filter data computed so far
	filterOffsets []uint32
}

func newFilterBlockBuilder(policy ldb.FilterPolicy) *filterBlockBuilder {
	return &filterBlockBuilder{policy: policy}
}

func (b *filterBlockBuilder) startBlock(blockOffset uint64) {
	filterIndex := blockOffset / filterBase
	if filterIndex < uint64(len(b.filterOffsets)) {
		panic("filterBlockBuilder: blocks must be started in order")
	}
	for filterIndex > uint64(len(b.filterOffsets)) {
		b.generateFilter()
	}
}

func (b *filterBlockBuilder) addKey(key []byte) {
	b.start = append(b.start, len(b.keys))
	b.keys = append(b.keys, key...)
}

func (b *filterBlockBuilder) finish() []byte {
	if len(b.start) != 0 {
		b.generateFilter()
	}
	arrayOffset := uint32(len(b.result))
	for _, off := range b.filterOffsets {
		util.PutFixed32(&b.result, off)
	}
	util.PutFixed32(&b.result, arrayOffset)
	b.result = append(b.result, filterBaseLg)
	return b.result
}

func (b *filterBlockBuilder) generateFilter() {
	numKeys := len(b.start)
	b.filterOffsets = append(b.filterOffsets, uint32(len(b.result)))
	if numKeys == 0 {
		return
	}
	b.start = append(b.start, len(b.keys))
	tmpKeys := make([][]byte, numKeys)
	for i := 0; i < numKeys; i++ {
		tmpKeys[i] = b.keys[b.start[i]:b.start[i+1]]
	}
	b.policy.CreateFilter(tmpKeys, &b.result)
	b.keys = b.keys[:0]
	b.start = b.start[:0]
}

type filterBlockReader struct {
	policy ldb.FilterPolicy
	data   []byte
	offset uint32 // beginning of the offset array
	num    uint32 // number of entries in the offset array
	baseLg uint
}

func newFilterBlockReader(policy ldb.FilterPolicy, contents []byte) *filterBlockReader {
	r := &filterBlockReader{policy: policy}
	n := len(contents)
	// 1 byte for baseLg and 4 for the start of the offset array.
	if n < 5 {
		return r
	}
	r.baseLg = uint(contents[n-1])
	lastWord := util.DecodeFixed32(contents[n-5:])
	if int(lastWord) > n-5 {
		return r
	}
	r.data = contents
	r.offset = lastWord
	r.num = uint32(n-5-int(lastWord)) / 4
	return r
}

func (r *filterBlockReader) keyMayMatch(blockOffset uint64, key []byte) bool {
	index := blockOffset >> r.baseLg
	if index < uint64(r.num) {
		start := util.DecodeFixed32(r.data[r.offset+uint32(index)*4:])
		limit := util.DecodeFixed32(r.data[r.offset+uint32(index)*4+4:])
		if start <= limit && limit <= r.offset {
			return r.policy.KeyMayMatch(key, r.data[start:limit])
		} else if start == limit {
			// Empty filters do not match any keys.
			return false
		}
	}
	// Errors are treated as potential matches.
	return true
}
