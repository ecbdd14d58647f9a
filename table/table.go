package table

import (
	"bytes"

	"ldb"
	"ldb/util"
)

// Table is an immutable, sorted map from internal keys to values. Open reads
// the footer, index and filter eagerly; afterwards a Table is safe for
// concurrent reads.
type Table struct {
	options         *ldb.Options
	comparator      *ldb.InternalKeyComparator
	file            ldb.RandomAccessFile
	cacheID         uint64
	filter          *filterBlockReader
	metaIndexHandle BlockHandle
	indexBlock      *block
}

// internalOptions returns a copy of options whose comparator and filter
// policy operate on internal keys.
func internalOptions(options *ldb.Options) *ldb.Options {
	o := *options
	if o.Comparator == nil {
		o.Comparator = ldb.BytewiseComparator
	}
	if _, ok := o.Comparator.(*ldb.InternalKeyComparator); !ok {
		o.Comparator = ldb.NewInternalKeyComparator(o.Comparator)
	}
	if o.FilterPolicy != nil {
		if _, ok := o.FilterPolicy.(*ldb.InternalFilterPolicy); !ok {
			o.FilterPolicy = ldb.NewInternalFilterPolicy(o.FilterPolicy)
		}
	}
	if o.BlockRestartInterval < 1 {
		o.BlockRestartInterval = 16
	}
	return &o
}

// Open reads the metadata of the table stored in the first size bytes of
// file. The Table takes ownership of file and closes it on Close.
func Open(options *ldb.Options, file ldb.RandomAccessFile, size uint64) (*Table, error) {
	if size < FooterEncodedLength {
		return nil, util.CorruptionError1("file is too short to be an sstable")
	}
	footerInput, err := file.Read(int64(size-FooterEncodedLength), FooterEncodedLength)
	if err != nil {
		return nil, err
	}
	var footer Footer
	if err = footer.DecodeFrom(footerInput); err != nil {
		return nil, err
	}

	options = internalOptions(options)
	contents, err := readBlock(file, true, footer.IndexHandle)
	if err != nil {
		return nil, err
	}
	t := &Table{
		options:         options,
		comparator:      options.Comparator.(*ldb.InternalKeyComparator),
		file:            file,
		metaIndexHandle: footer.MetaIndexHandle,
		indexBlock:      newBlock(contents.data),
	}
	if options.BlockCache != nil {
		t.cacheID = options.BlockCache.NewID()
	}
	if err = t.readMeta(footer); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) Close() error {
	return t.file.Close()
}

func (t *Table) verifyChecksums(options *ldb.ReadOptions) bool {
	return t.options.ParanoidChecks || (options != nil && options.VerifyChecksums)
}

// readMeta loads the filter named in the metaindex block. A table without
// a matching filter is served without one.
func (t *Table) readMeta(footer Footer) error {
	if t.options.FilterPolicy == nil {
		return nil
	}
	contents, err := readBlock(t.file, true, footer.MetaIndexHandle)
	if err != nil {
		if ldb.IsCorruption(err) && !t.options.ParanoidChecks {
			ldb.Log(t.options.InfoLog, "ignoring unreadable metaindex block: %v", err)
			return nil
		}
		return err
	}
	meta := newBlock(contents.data)
	iter := meta.newIterator(ldb.BytewiseComparator)
	defer iter.Close()
	key := []byte("filter." + t.options.FilterPolicy.Name())
	iter.Seek(key)
	if iter.IsValid() && bytes.Equal(iter.GetKey(), key) {
		return t.readFilter(iter.GetValue())
	}
	return iter.GetStatus()
}

func (t *Table) readFilter(filterHandleValue []byte) error {
	filterHandle, err := DecodeBlockHandle(filterHandleValue)
	if err != nil {
		return err
	}
	contents, err := readBlock(t.file, true, filterHandle)
	if err != nil {
		return err
	}
	t.filter = newFilterBlockReader(t.options.FilterPolicy, contents.data)
	return nil
}

func (t *Table) blockCacheKey(offset uint64) []byte {
	key := make([]byte, 16)
	util.EncodeFixed64(key, t.cacheID)
	util.EncodeFixed64(key[8:], offset)
	return key
}

func releaseBlock(arg1, arg2 interface{}) {
	arg1.(ldb.Cache).Release(arg2)
}

// openBlock decodes an index value into a BlockHandle and iterates the
// block it names, through the block cache when there is one.
func (t *Table) openBlock(options *ldb.ReadOptions, indexValue []byte) ldb.Iterator {
	handle, err := DecodeBlockHandle(indexValue)
	if err != nil {
		return NewErrorIterator(err)
	}
	blockCache := t.options.BlockCache
	if blockCache == nil {
		contents, err := readBlock(t.file, t.verifyChecksums(options), handle)
		if err != nil {
			return NewErrorIterator(err)
		}
		return newBlock(contents.data).newIterator(t.comparator)
	}

	key := t.blockCacheKey(handle.Offset)
	if cacheHandle := blockCache.Lookup(key); cacheHandle != nil {
		iter := blockCache.Value(cacheHandle).(*block).newIterator(t.comparator)
		iter.RegisterCleanUp(releaseBlock, blockCache, cacheHandle)
		return iter
	}
	contents, err := readBlock(t.file, t.verifyChecksums(options), handle)
	if err != nil {
		return NewErrorIterator(err)
	}
	b := newBlock(contents.data)
	iter := b.newIterator(t.comparator)
	if contents.cachable && (options == nil || options.FillCache) {
		cacheHandle := blockCache.Insert(key, b, b.size(), nil)
		iter.RegisterCleanUp(releaseBlock, blockCache, cacheHandle)
	}
	return iter
}

// NewIterator returns an iterator over the internal keys of the table.
func (t *Table) NewIterator(options *ldb.ReadOptions) ldb.Iterator {
	return NewIndexedIterator(t.indexBlock.newIterator(t.comparator), BlockOpenerFunc(t.openBlock), options)
}

// InternalGet seeks to key and calls handle with each entry until handle
// returns false or the table is exhausted. Entries ruled out by the filter
// are skipped without reading their block.
func (t *Table) InternalGet(options *ldb.ReadOptions, key []byte, handle func(k, v []byte) bool) error {
	indexIter := t.indexBlock.newIterator(t.comparator)
	defer indexIter.Close()
	indexIter.Seek(key)
	if !indexIter.IsValid() {
		return indexIter.GetStatus()
	}
	if t.filter != nil {
		h, err := DecodeBlockHandle(indexIter.GetValue())
		if err == nil && !t.filter.keyMayMatch(h.Offset, key) {
			return nil
		}
	}
	iter := t.NewIterator(options)
	defer iter.Close()
	for iter.Seek(key); iter.IsValid(); iter.Next() {
		if !handle(iter.GetKey(), iter.GetValue()) {
			break
		}
	}
	return iter.GetStatus()
}

// Get looks up userKey. Every stored version of the key is examined and the
// one with the highest sequence number decides the result. The returned
// data is owned by the caller.
func (t *Table) Get(options *ldb.ReadOptions, userKey []byte) (ldb.ResultStatus, error) {
	result := ldb.NotFoundResult
	var best ldb.SequenceNumber
	ucmp := t.comparator.UserComparator
	var parseErr error
	err := t.InternalGet(options, ldb.MakeLookupKey(userKey), func(k, v []byte) bool {
		var parsed ldb.ParsedInternalKey
		if !ldb.ParseInternalKey(k, &parsed) {
			parseErr = util.CorruptionError2("bad internal key in table", util.EscapeString(k))
			return false
		}
		if ucmp.Compare(parsed.UserKey, userKey) != 0 {
			return false
		}
		if result.State == ldb.StateNotFound || parsed.Sequence > best {
			best = parsed.Sequence
			if parsed.ValueType == ldb.TypeValue {
				result = ldb.ExistResult(append([]byte(nil), v...))
			} else {
				result = ldb.DeletedResult
			}
		}
		return true
	})
	if err == nil {
		err = parseErr
	}
	if err != nil {
		return ldb.NotFoundResult, err
	}
	return result, nil
}

// ApproximateOffsetOf returns the approximate file offset at which the data
// for key begins.
func (t *Table) ApproximateOffsetOf(key []byte) uint64 {
	indexIter := t.indexBlock.newIterator(t.comparator)
	defer indexIter.Close()
	indexIter.Seek(key)
	if indexIter.IsValid() {
		if handle, err := DecodeBlockHandle(indexIter.GetValue()); err == nil {
			return handle.Offset
		}
	}
	// The key is past the last key in the file, or the index entry is
	// unreadable. The metaindex block sits right near the end of the file.
	return t.metaIndexHandle.Offset
}
