package table

import (
	"ldb"
	"ldb/util"
)

// Builder writes a table file. Keys must be internal keys added in
// increasing order.
type Builder struct {
	options           *ldb.Options
	file              ldb.WritableFile
	offset            uint64
	err               error
	dataBlock         *blockBuilder
	indexBlock        *blockBuilder
	lastKey           []byte
	numEntries        int64
	closed            bool
	filterBlock       *filterBlockBuilder
	pendingIndexEntry bool
	pendingHandle     BlockHandle
}

// NewBuilder returns a Builder that appends to file. The caller is
// responsible for closing file after Finish or Abandon.
func NewBuilder(options *ldb.Options, file ldb.WritableFile) *Builder {
	options = internalOptions(options)
	b := &Builder{
		options:    options,
		file:       file,
		dataBlock:  newBlockBuilder(options.Comparator, options.BlockRestartInterval),
		indexBlock: newBlockBuilder(options.Comparator, 1),
	}
	if options.FilterPolicy != nil {
		b.filterBlock = newFilterBlockBuilder(options.FilterPolicy)
		b.filterBlock.startBlock(0)
	}
	return b
}

func (b *Builder) ok() bool {
	return b.err == nil
}

// Add appends key/value. key must sort after every previously added key.
func (b *Builder) Add(key, value []byte) error {
	if b.closed {
		panic("tableBuilder: already closed")
	}
	if !b.ok() {
		return b.err
	}
	if b.numEntries > 0 && b.options.Comparator.Compare(key, b.lastKey) <= 0 {
		b.err = util.InvalidArgumentError2("table keys added out of order", ldb.InternalKeyDebugString(key))
		return b.err
	}
	if b.pendingIndexEntry {
		b.addIndexEntry()
	}
	if b.filterBlock != nil {
		b.filterBlock.addKey(key)
	}
	b.lastKey = append(b.lastKey[:0], key...)
	b.numEntries++
	if b.err = b.dataBlock.add(key, value); b.err != nil {
		return b.err
	}
	if b.dataBlock.currentSizeEstimate() >= b.options.BlockSize {
		return b.Flush()
	}
	return nil
}

// addIndexEntry records the last key of the block just written. Index
// entries keep the full key rather than a shortened separator.
func (b *Builder) addIndexEntry() {
	b.err = b.indexBlock.add(b.lastKey, b.pendingHandle.Encode())
	b.pendingIndexEntry = false
}

// Flush writes the buffered data block, if any.
func (b *Builder) Flush() error {
	if b.closed {
		panic("tableBuilder: already closed")
	}
	if !b.ok() || b.dataBlock.empty() {
		return b.err
	}
	b.pendingHandle = b.writeBlock(b.dataBlock)
	if b.ok() {
		b.pendingIndexEntry = true
		b.err = b.file.Flush()
	}
	if b.filterBlock != nil {
		b.filterBlock.startBlock(b.offset)
	}
	return b.err
}

func (b *Builder) Status() error {
	return b.err
}

// Finish writes the filter, metaindex and index blocks and the footer.
func (b *Builder) Finish() error {
	if err := b.Flush(); err != nil {
		b.closed = true
		return err
	}
	b.closed = true
	var filterBlockHandle, metaIndexBlockHandle, indexBlockHandle BlockHandle
	if b.ok() && b.filterBlock != nil {
		filterBlockHandle = b.writeRawBlock(b.filterBlock.finish(), ldb.NoCompression)
	}

	if b.ok() {
		metaIndexBlock := newBlockBuilder(ldb.BytewiseComparator, b.options.BlockRestartInterval)
		if b.filterBlock != nil {
			key := "filter." + b.options.FilterPolicy.Name()
			b.err = metaIndexBlock.add([]byte(key), filterBlockHandle.Encode())
		}
		if b.ok() {
			metaIndexBlockHandle = b.writeBlock(metaIndexBlock)
		}
	}

	if b.ok() {
		if b.pendingIndexEntry {
			b.addIndexEntry()
		}
		if b.ok() {
			indexBlockHandle = b.writeBlock(b.indexBlock)
		}
	}
	if b.ok() {
		footer := Footer{MetaIndexHandle: metaIndexBlockHandle, IndexHandle: indexBlockHandle}
		footerEncoding := make([]byte, 0, FooterEncodedLength)
		footer.EncodeTo(&footerEncoding)
		if b.err = b.file.Append(footerEncoding); b.ok() {
			b.offset += uint64(len(footerEncoding))
		}
	}
	return b.err
}

// Abandon stops building. The contents of the file are left as they are.
func (b *Builder) Abandon() {
	if b.closed {
		panic("tableBuilder: already closed")
	}
	b.closed = true
}

func (b *Builder) NumEntries() int64 {
	return b.numEntries
}

// FileSize is the size of the file generated so far. After a successful
// Finish it is the size of the final file.
func (b *Builder) FileSize() uint64 {
	return b.offset
}

// writeBlock compresses and writes a block. The file holds a sequence of
// blocks, each followed by:
//
//	type: uint8
//	crc: uint32
func (b *Builder) writeBlock(block *blockBuilder) BlockHandle {
	raw := block.finish()
	contents, t, err := compressBlock(raw, b.options.CompressionType)
	if err != nil {
		b.err = err
		return BlockHandle{}
	}
	return b.writeRawBlock(contents, t)
}

func (b *Builder) writeRawBlock(contents []byte, t ldb.CompressionType) BlockHandle {
	handle := BlockHandle{Offset: b.offset, Size: uint64(len(contents))}
	if b.err = b.file.Append(contents); !b.ok() {
		return handle
	}
	var trailer [BlockTrailerSize]byte
	trailer[0] = byte(t)
	crc := util.Extend(util.Value(contents), trailer[:1])
	util.EncodeFixed32(trailer[1:], util.Mask(crc))
	if b.err = b.file.Append(trailer[:]); b.ok() {
		b.offset += uint64(len(contents)) + BlockTrailerSize
	}
	return handle
}
